package usecase

import (
	"log/slog"
	"strconv"
)

const (
	GuestCountKey = "guest_msg_count"
	GuestLimit    = 5
)

type GuestUsecaseDeps struct {
	LocalStorage LocalStorage
}

// GuestUsecase counts messages sent without authentication.
type GuestUsecase struct {
	GuestUsecaseDeps
	limit int
}

func NewGuestUsecase(deps GuestUsecaseDeps) *GuestUsecase {
	return &GuestUsecase{
		GuestUsecaseDeps: deps,
		limit:            GuestLimit,
	}
}

func (g *GuestUsecase) Count() int {
	raw, ok, err := g.LocalStorage.GetItem(GuestCountKey)
	if err != nil {
		slog.Warn("failed to read guest counter", "error", err)
		return 0
	}
	if !ok {
		return 0
	}
	count, err := strconv.Atoi(raw)
	if err != nil || count < 0 {
		return 0
	}
	return count
}

func (g *GuestUsecase) LimitReached() bool {
	return g.Count() >= g.limit
}

// TryConsume records one guest message. It returns false without recording
// when the limit has been reached.
func (g *GuestUsecase) TryConsume() bool {
	count := g.Count()
	if count >= g.limit {
		return false
	}
	if err := g.LocalStorage.SetItem(GuestCountKey, strconv.Itoa(count+1)); err != nil {
		slog.Warn("failed to save guest counter", "error", err)
	}
	return true
}
