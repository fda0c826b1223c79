// Package ortc binds the media.Engine boundary to pion's ORTC API. One
// engine plays the router role: it hands out transports and routes
// data/media between producers and consumers created on them. It is a
// development-grade SFU, not a hardened one.
package ortc

import (
	"context"
	"fmt"
	"sync"

	"github.com/pion/webrtc/v4"

	"github.com/atriumspace/atrium/internal/media"
)

type Config struct {
	IceServers []string
}

type Engine struct {
	api        *webrtc.API
	iceServers []webrtc.ICEServer

	mu            sync.Mutex
	dataProducers map[string]*dataProducer
	producers     map[string]*producer
}

func NewEngine(cfg Config) (*Engine, error) {
	m := &webrtc.MediaEngine{}
	if err := m.RegisterDefaultCodecs(); err != nil {
		return nil, fmt.Errorf("register codecs: %w", err)
	}
	se := webrtc.SettingEngine{}
	api := webrtc.NewAPI(webrtc.WithMediaEngine(m), webrtc.WithSettingEngine(se))

	servers := make([]webrtc.ICEServer, 0, len(cfg.IceServers))
	for _, u := range cfg.IceServers {
		servers = append(servers, webrtc.ICEServer{URLs: []string{u}})
	}

	return &Engine{
		api:           api,
		iceServers:    servers,
		dataProducers: make(map[string]*dataProducer),
		producers:     make(map[string]*producer),
	}, nil
}

func (e *Engine) RtpCapabilities() webrtc.RTPCapabilities {
	return webrtc.RTPCapabilities{Codecs: []webrtc.RTPCodecCapability{
		{MimeType: webrtc.MimeTypeOpus, ClockRate: 48000, Channels: 2},
		{MimeType: webrtc.MimeTypeVP8, ClockRate: 90000},
	}}
}

func (e *Engine) CreateTransport(ctx context.Context, dir media.Direction) (media.Transport, error) {
	return newTransport(ctx, e, dir)
}

func (e *Engine) CanConsume(producerID string, caps webrtc.RTPCapabilities) bool {
	p, ok := e.producer(producerID)
	if !ok {
		return false
	}
	return media.CapabilitiesCompatible(p.rtp, caps)
}

func (e *Engine) registerDataProducer(dp *dataProducer) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.dataProducers[dp.id] = dp
}

func (e *Engine) unregisterDataProducer(id string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.dataProducers, id)
}

// dataProducer resolves a live producer; dead entries are evicted on
// sight so the map never accumulates closed producers across reconnect
// cycles.
func (e *Engine) dataProducer(id string) (*dataProducer, bool) {
	e.mu.Lock()
	dp, ok := e.dataProducers[id]
	e.mu.Unlock()
	if !ok {
		return nil, false
	}
	if dp.Closed() {
		e.unregisterDataProducer(id)
		return nil, false
	}
	return dp, true
}

func (e *Engine) registerProducer(p *producer) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.producers[p.id] = p
}

func (e *Engine) unregisterProducer(id string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.producers, id)
}

func (e *Engine) producer(id string) (*producer, bool) {
	e.mu.Lock()
	p, ok := e.producers[id]
	e.mu.Unlock()
	if !ok {
		return nil, false
	}
	if p.Closed() {
		e.unregisterProducer(id)
		return nil, false
	}
	return p, true
}
