package supabase

import (
	"context"
	"fmt"
	"github.com/google/uuid"
	"github.com/iamvkosarev/vedai/internal/model"
	"github.com/supabase-community/gotrue-go/types"
	"github.com/supabase-community/supabase-go"
	"strings"
	"time"
)

const (
	displayNameKey         = "display_name"
	alreadyRegisteredError = "already registered"
)

// Auth signs accounts in through Supabase Auth. A signed-in session is
// installed on the shared client, so ChatStorage queries run as that user.
// Calls must not overlap with ChatStorage requests.
type Auth struct {
	client  *supabase.Client
	anonKey string
}

func NewAuth(client *supabase.Client, anonKey string) *Auth {
	return &Auth{
		client:  client,
		anonKey: anonKey,
	}
}

func (a *Auth) SignIn(_ context.Context, email, password string) (model.AuthSession, error) {
	session, err := a.client.SignInWithEmailPassword(email, password)
	if err != nil {
		return model.AuthSession{}, fmt.Errorf("failed to sign in %s: %w", email, err)
	}
	return toAuthSession(session), nil
}

// SignUp registers an account. It does not sign the account in.
func (a *Auth) SignUp(_ context.Context, email, password, displayName string) error {
	_, err := a.client.Auth.Signup(
		types.SignupRequest{
			Email:    email,
			Password: password,
			Data:     map[string]interface{}{displayNameKey: displayName},
		},
	)
	if err != nil {
		if strings.Contains(strings.ToLower(err.Error()), alreadyRegisteredError) {
			return fmt.Errorf("failed to sign up %s: %w", email, model.ErrAccountExists)
		}
		return fmt.Errorf("failed to sign up %s: %w", email, err)
	}
	return nil
}

func (a *Auth) Refresh(_ context.Context, refreshToken string) (model.AuthSession, error) {
	session, err := a.client.RefreshToken(refreshToken)
	if err != nil {
		return model.AuthSession{}, fmt.Errorf("failed to refresh session: %w", err)
	}
	return toAuthSession(session), nil
}

func (a *Auth) ResetPassword(_ context.Context, email string) error {
	if err := a.client.Auth.Recover(types.RecoverRequest{Email: email}); err != nil {
		return fmt.Errorf("failed to send password reset to %s: %w", email, err)
	}
	return nil
}

func (a *Auth) UpdateDisplayName(_ context.Context, name string) (model.User, error) {
	resp, err := a.client.Auth.UpdateUser(
		types.UpdateUserRequest{
			Data: map[string]interface{}{displayNameKey: name},
		},
	)
	if err != nil {
		return model.User{}, fmt.Errorf("failed to update profile: %w", err)
	}
	return toUser(resp.User), nil
}

// SignOut revokes the session and puts the client back on the anon key.
func (a *Auth) SignOut(_ context.Context) error {
	err := a.client.Auth.Logout()
	a.client.UpdateAuthSession(types.Session{AccessToken: a.anonKey})
	if err != nil {
		return fmt.Errorf("failed to sign out: %w", err)
	}
	return nil
}

func toAuthSession(session types.Session) model.AuthSession {
	expiresAt := time.Unix(session.ExpiresAt, 0)
	if session.ExpiresAt == 0 {
		expiresAt = time.Now().Add(time.Duration(session.ExpiresIn) * time.Second)
	}
	return model.AuthSession{
		AccessToken:  session.AccessToken,
		RefreshToken: session.RefreshToken,
		ExpiresAt:    expiresAt,
		User:         toUser(session.User),
	}
}

func toUser(user types.User) model.User {
	if user.ID == uuid.Nil {
		return model.User{Email: user.Email}
	}
	displayName, _ := user.UserMetadata[displayNameKey].(string)
	return model.User{
		UserID:      user.ID.String(),
		Email:       user.Email,
		DisplayName: displayName,
	}
}
