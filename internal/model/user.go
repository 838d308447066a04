package model

import (
	"errors"
	"strings"
	"time"
)

var (
	ErrAccountExists = errors.New("account already registered")
)

type User struct {
	UserID      string `json:"user_id"`
	Email       string `json:"email,omitempty"`
	DisplayName string `json:"display_name,omitempty"`
}

func (u User) Authenticated() bool {
	return u.UserID != ""
}

// Name is the display name, falling back to the local part of the email.
func (u User) Name() string {
	if u.DisplayName != "" {
		return u.DisplayName
	}
	if u.Email != "" {
		name, _, _ := strings.Cut(u.Email, "@")
		return name
	}
	return u.UserID
}

// AuthSession is a signed-in account session. The access token scopes
// remote chat rows to the account owner.
type AuthSession struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresAt    time.Time `json:"expires_at"`
	User         User      `json:"user"`
}

func (s AuthSession) Valid() bool {
	return s.RefreshToken != "" && s.User.Authenticated()
}
