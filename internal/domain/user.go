// Package domain holds the plain identity and spatial types shared by
// every layer.
package domain

import "errors"

const (
	MaxUserIDLen     = 36
	MaxAvatarNameLen = 36
)

var (
	ErrUserIDEmpty   = errors.New("user id empty")
	ErrUserIDTooLong = errors.New("user id too long")
)

type UserID string

type User struct {
	ID         UserID `json:"id"`
	AvatarName string `json:"avatarName"`
}

// NewUser validates the externally supplied id; the id arrives on the
// connection URL and is only checked for existence, never minted here.
func NewUser(id string, avatarName string) (*User, error) {
	if len(id) == 0 {
		return nil, ErrUserIDEmpty
	}
	if len(id) > MaxUserIDLen {
		return nil, ErrUserIDTooLong
	}
	return &User{ID: UserID(id), AvatarName: avatarName}, nil
}
