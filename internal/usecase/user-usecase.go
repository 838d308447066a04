package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"github.com/iamvkosarev/vedai/internal/model"
	"log/slog"
	"strings"
	"sync"
	"time"
)

const (
	UserKey    = "vedai_user"
	SessionKey = "vedai_session"

	MinPasswordLength    = 6
	sessionRefreshMargin = time.Minute
)

var (
	ErrEmailRequired       = errors.New("email is required")
	ErrPasswordTooShort    = errors.New("password is too short")
	ErrPasswordMismatch    = errors.New("passwords do not match")
	ErrDisplayNameRequired = errors.New("display name is required")
	ErrAccountsUnavailable = errors.New("accounts are not available with this chat store")
	ErrNotSignedIn         = errors.New("not signed in")
)

// Authenticator signs accounts in against the remote chat store. The session
// it returns is what scopes chat rows to their owner.
type Authenticator interface {
	SignIn(ctx context.Context, email, password string) (model.AuthSession, error)
	SignUp(ctx context.Context, email, password, displayName string) error
	Refresh(ctx context.Context, refreshToken string) (model.AuthSession, error)
	ResetPassword(ctx context.Context, email string) error
	UpdateDisplayName(ctx context.Context, name string) (model.User, error)
	SignOut(ctx context.Context) error
}

type UserUsecaseDeps struct {
	// LocalStorage remembers the signed-in user between runs. Optional.
	LocalStorage LocalStorage
	// Auth enables account sign-in. Without it any user id is accepted.
	Auth Authenticator
}

// UserUsecase holds the identity of the signed-in user, if any.
type UserUsecase struct {
	UserUsecaseDeps
	now func() time.Time

	mu      sync.RWMutex
	user    model.User
	session model.AuthSession
}

// NewUserUsecase starts as userID when given, otherwise as the remembered
// user. With accounts enabled userID is ignored; call Restore to resume the
// remembered session.
func NewUserUsecase(deps UserUsecaseDeps, userID string) *UserUsecase {
	u := &UserUsecase{
		UserUsecaseDeps: deps,
		now:             time.Now,
	}
	if deps.Auth != nil {
		if userID != "" {
			slog.Warn("user id is ignored when accounts are enabled", "user_id", userID)
		}
		return u
	}
	if userID == "" && deps.LocalStorage != nil {
		stored, ok, err := deps.LocalStorage.GetItem(UserKey)
		if err != nil {
			slog.Warn("failed to read signed-in user", "error", err)
		} else if ok {
			userID = stored
		}
	}
	u.user = model.User{UserID: userID}
	return u
}

func (u *UserUsecase) AccountsEnabled() bool {
	return u.Auth != nil
}

func (u *UserUsecase) CurrentUser() model.User {
	u.mu.RLock()
	defer u.mu.RUnlock()
	return u.user
}

// Restore resumes the remembered account session. A session that can no
// longer be refreshed is forgotten.
func (u *UserUsecase) Restore(ctx context.Context) {
	if u.Auth == nil || u.LocalStorage == nil {
		return
	}
	raw, ok, err := u.LocalStorage.GetItem(SessionKey)
	if err != nil {
		slog.Warn("failed to read account session", "error", err)
		return
	}
	if !ok || raw == "" {
		return
	}
	var stored model.AuthSession
	if err = json.Unmarshal([]byte(raw), &stored); err != nil || !stored.Valid() {
		slog.Warn("stored account session is unreadable", "error", err)
		u.forgetSession()
		return
	}
	session, err := u.Auth.Refresh(ctx, stored.RefreshToken)
	if err != nil {
		slog.Warn("failed to resume account session", "user_id", stored.User.UserID, "error", err)
		u.forgetSession()
		return
	}
	u.setSession(session)
	slog.Info("account session resumed", "user_id", session.User.UserID)
}

// SignIn signs in with an account email and password, or, without accounts,
// takes login as the user id.
func (u *UserUsecase) SignIn(ctx context.Context, login, password string) error {
	login = strings.TrimSpace(login)
	if login == "" {
		return ErrEmailRequired
	}
	if u.Auth == nil {
		u.mu.Lock()
		defer u.mu.Unlock()
		u.user = model.User{UserID: login}
		u.remember(UserKey, login)
		return nil
	}
	session, err := u.Auth.SignIn(ctx, login, password)
	if err != nil {
		return err
	}
	u.setSession(session)
	slog.Info("signed in", "user_id", session.User.UserID)
	return nil
}

// SignUp registers an account. The account still has to sign in afterwards.
func (u *UserUsecase) SignUp(ctx context.Context, email, password, confirmPassword, displayName string) error {
	if u.Auth == nil {
		return ErrAccountsUnavailable
	}
	email = strings.TrimSpace(email)
	switch {
	case email == "":
		return ErrEmailRequired
	case password != confirmPassword:
		return ErrPasswordMismatch
	case len(password) < MinPasswordLength:
		return ErrPasswordTooShort
	case strings.TrimSpace(displayName) == "":
		return ErrDisplayNameRequired
	}
	return u.Auth.SignUp(ctx, email, password, strings.TrimSpace(displayName))
}

func (u *UserUsecase) ResetPassword(ctx context.Context, email string) error {
	if u.Auth == nil {
		return ErrAccountsUnavailable
	}
	email = strings.TrimSpace(email)
	if email == "" {
		return ErrEmailRequired
	}
	return u.Auth.ResetPassword(ctx, email)
}

// UpdateDisplayName renames the signed-in account.
func (u *UserUsecase) UpdateDisplayName(ctx context.Context, name string) error {
	if u.Auth == nil {
		return ErrAccountsUnavailable
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return ErrDisplayNameRequired
	}
	if !u.CurrentUser().Authenticated() {
		return ErrNotSignedIn
	}
	user, err := u.Auth.UpdateDisplayName(ctx, name)
	if err != nil {
		return err
	}

	u.mu.Lock()
	defer u.mu.Unlock()
	u.user.DisplayName = user.DisplayName
	u.session.User.DisplayName = user.DisplayName
	u.rememberSession(u.session)
	return nil
}

func (u *UserUsecase) SignOut(ctx context.Context) {
	if u.Auth == nil {
		u.mu.Lock()
		defer u.mu.Unlock()
		u.user = model.User{}
		u.remember(UserKey, "")
		return
	}
	if u.CurrentUser().Authenticated() {
		if err := u.Auth.SignOut(ctx); err != nil {
			slog.Warn("failed to revoke account session", "error", err)
		}
	}
	u.forgetSession()
}

// SessionExpiring reports whether the account session has to be refreshed
// before the next remote call.
func (u *UserUsecase) SessionExpiring() bool {
	u.mu.RLock()
	defer u.mu.RUnlock()
	if u.Auth == nil || !u.session.Valid() {
		return false
	}
	return !u.now().Add(sessionRefreshMargin).Before(u.session.ExpiresAt)
}

func (u *UserUsecase) RefreshSession(ctx context.Context) error {
	u.mu.RLock()
	refreshToken := u.session.RefreshToken
	u.mu.RUnlock()
	if u.Auth == nil || refreshToken == "" {
		return nil
	}
	session, err := u.Auth.Refresh(ctx, refreshToken)
	if err != nil {
		return fmt.Errorf("failed to refresh account session: %w", err)
	}
	u.setSession(session)
	return nil
}

func (u *UserUsecase) setSession(session model.AuthSession) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.session = session
	u.user = session.User
	u.rememberSession(session)
}

func (u *UserUsecase) forgetSession() {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.session = model.AuthSession{}
	u.user = model.User{}
	u.remember(SessionKey, "")
}

func (u *UserUsecase) rememberSession(session model.AuthSession) {
	raw, err := json.Marshal(session)
	if err != nil {
		slog.Warn("failed to encode account session", "error", err)
		return
	}
	u.remember(SessionKey, string(raw))
}

func (u *UserUsecase) remember(key, value string) {
	if u.LocalStorage == nil {
		return
	}
	if err := u.LocalStorage.SetItem(key, value); err != nil {
		slog.Warn("failed to save signed-in user", "key", key, "error", err)
	}
}
