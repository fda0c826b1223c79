package config

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"
)

type ChatConfig struct {
	DefaultRadius float64       `mapstructure:"default_radius"`
	RateLimit     int           `mapstructure:"rate_limit"`
	RateInterval  time.Duration `mapstructure:"rate_interval"`
}

type Config struct {
	Mode        string        `mapstructure:"mode"`
	Port        int           `mapstructure:"port"`
	ReadLimit   int64         `mapstructure:"read_limit"`
	PingPeriod  time.Duration `mapstructure:"ping_period"`
	Secret      string        `mapstructure:"secret"`
	IceServers  []string      `mapstructure:"ice_servers"`
	AllowGuests bool          `mapstructure:"allow_guests"`
	Chat        ChatConfig    `mapstructure:"chat"`
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	env := os.Getenv("CONFIG_ENV")
	if env == "" {
		env = "dev"
	}
	fileName := fmt.Sprintf("config/config.%s.yaml", env)

	v.SetConfigFile(fileName)
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	v.SetDefault("mode", "release")
	v.SetDefault("port", 8080)
	v.SetDefault("read_limit", 32768)
	v.SetDefault("ping_period", "54s")
	v.SetDefault("ice_servers", []string{"stun:stun.l.google.com:19302"})
	v.SetDefault("allow_guests", true)
	v.SetDefault("chat.default_radius", 100.0)
	v.SetDefault("chat.rate_limit", 20)
	v.SetDefault("chat.rate_interval", "10s")

	if err := v.ReadInConfig(); err != nil {
		fmt.Printf("config file not found (%s), using defaults\n", fileName)
	} else {
		fmt.Printf("loaded config: %s\n", fileName)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return &cfg, nil
}
