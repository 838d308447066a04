package supabase

import (
	"errors"
	"fmt"
	"github.com/supabase-community/supabase-go"
)

var (
	ErrURLRequired     = errors.New("supabase URL is required")
	ErrAnonKeyRequired = errors.New("supabase anon key is required")
)

// Config holds Supabase connection configuration
type Config struct {
	URL     string
	AnonKey string
}

// NewClient creates the client shared by ChatStorage and Auth.
func NewClient(cfg Config) (*supabase.Client, error) {
	if cfg.URL == "" {
		return nil, ErrURLRequired
	}
	if cfg.AnonKey == "" {
		return nil, ErrAnonKeyRequired
	}
	client, err := supabase.NewClient(cfg.URL, cfg.AnonKey, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create supabase client: %w", err)
	}
	return client, nil
}
