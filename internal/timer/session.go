package timer

import (
	"time"

	"github.com/goodtune/tokentimer/internal/wallet"
	"github.com/google/uuid"
)

// Session is the single live countdown. Derived quantities are computed
// against an explicit instant rather than the wall clock.
type Session struct {
	ID                  string
	OriginalTokens      int
	TotalMinutes        int
	StartTime           time.Time
	IsActive            bool
	IsPaused            bool
	PausedAt            *time.Time
	TotalPausedDuration time.Duration
}

// Split is the outcome of ending a session early.
type Split struct {
	Returned      int
	Redeemed      int
	InGracePeriod bool
}

// NewSession creates a running session worth tokens, started at now.
func NewSession(tokens int, now time.Time) Session {
	return Session{
		ID:             uuid.NewString(),
		OriginalTokens: tokens,
		TotalMinutes:   tokens * wallet.MinutesPerToken,
		StartTime:      now,
		IsActive:       true,
	}
}

// EndTime is when the session completes if it is not paused again.
func (s Session) EndTime() time.Time {
	return s.StartTime.Add(time.Duration(s.TotalMinutes)*time.Minute + s.TotalPausedDuration)
}

// Remaining returns the time left at now, frozen at the pause instant while
// paused and never negative.
func (s Session) Remaining(now time.Time) time.Duration {
	ref := now
	if s.IsPaused {
		if s.PausedAt == nil {
			return 0
		}
		ref = *s.PausedAt
	}
	return max(0, s.EndTime().Sub(ref))
}

// RemainingMinutes is Remaining truncated to whole minutes.
func (s Session) RemainingMinutes(now time.Time) int {
	return int(s.Remaining(now) / time.Minute)
}

// EffectiveElapsed is the running (unpaused) time since start.
func (s Session) EffectiveElapsed(now time.Time) time.Duration {
	elapsed := now.Sub(s.StartTime) - s.TotalPausedDuration
	if s.IsPaused && s.PausedAt != nil {
		elapsed -= now.Sub(*s.PausedAt)
	}
	return elapsed
}

// InGracePeriod reports whether ending now would refund every token.
func (s Session) InGracePeriod(gracePeriodMinutes int, now time.Time) bool {
	return s.EffectiveElapsed(now) <= time.Duration(gracePeriodMinutes)*time.Minute
}

// IsCompleted reports whether a running session has reached its end time.
// Paused sessions never complete.
func (s Session) IsCompleted(now time.Time) bool {
	if s.IsPaused {
		return false
	}
	return !now.Before(s.EndTime())
}

// RefundSplit computes how many tokens go back to the wallet if the session
// ended at now. Partial tokens are forfeited.
func (s Session) RefundSplit(gracePeriodMinutes int, now time.Time) Split {
	if s.InGracePeriod(gracePeriodMinutes, now) {
		return Split{Returned: s.OriginalTokens, InGracePeriod: true}
	}

	returned := s.RemainingMinutes(now) / wallet.MinutesPerToken
	returned = min(returned, s.OriginalTokens)
	return Split{
		Returned: returned,
		Redeemed: s.OriginalTokens - returned,
	}
}
