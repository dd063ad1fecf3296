package timer

import (
	"errors"
	"fmt"
	"time"

	"github.com/goodtune/tokentimer/internal/wallet"
	"github.com/rs/zerolog"
)

var (
	// ErrNoSession is returned when an operation needs a live session.
	ErrNoSession = errors.New("timer: no active session")

	// ErrSessionActive is returned when starting while a session exists.
	ErrSessionActive = errors.New("timer: session already active")

	// ErrInvalidTransition is returned for pause/resume in the wrong state.
	ErrInvalidTransition = errors.New("timer: invalid state transition")

	// ErrInvalidTokens is returned when starting with a non-positive count.
	ErrInvalidTokens = errors.New("timer: token count must be positive")
)

// fastForwardLead is how far in the future a fast-forwarded session ends.
const fastForwardLead = 5 * time.Second

// State is the externally visible engine state.
type State int

const (
	StateIdle State = iota
	StateRunning
	StatePaused
)

func (s State) String() string {
	switch s {
	case StateRunning:
		return "running"
	case StatePaused:
		return "paused"
	default:
		return "idle"
	}
}

// EventKind identifies a transition.
type EventKind int

const (
	EventStarted EventKind = iota + 1
	EventPaused
	EventResumed
	EventCompleted
	EventEndedEarly
	EventUpdated
	EventRestored
)

func (k EventKind) String() string {
	switch k {
	case EventStarted:
		return "started"
	case EventPaused:
		return "paused"
	case EventResumed:
		return "resumed"
	case EventCompleted:
		return "completed"
	case EventEndedEarly:
		return "ended_early"
	case EventUpdated:
		return "updated"
	case EventRestored:
		return "restored"
	default:
		return fmt.Sprintf("unknown(%d)", int(k))
	}
}

// Event is emitted on every public transition. Returned, Redeemed and
// WasInGracePeriod are only meaningful for EventCompleted and EventEndedEarly.
type Event struct {
	Kind             EventKind
	At               time.Time
	Session          Session
	Returned         int
	Redeemed         int
	WasInGracePeriod bool
}

// Listener receives engine events synchronously.
type Listener func(Event)

// CorruptSessionError reports a persisted session that cannot be resumed.
// Refund is the best-effort number of tokens to give back.
type CorruptSessionError struct {
	SessionID string
	Refund    int
}

func (e *CorruptSessionError) Error() string {
	return fmt.Sprintf("timer: corrupted session %s (refund %d tokens)", e.SessionID, e.Refund)
}

// Engine owns the single live session. It performs no I/O; hosts subscribe
// to its events. Engine is not safe for concurrent use.
type Engine struct {
	session      *Session
	listeners    []Listener
	lastActivity time.Time
	logger       zerolog.Logger
}

// NewEngine creates an idle engine.
func NewEngine(logger zerolog.Logger) *Engine {
	return &Engine{
		logger: logger.With().Str("component", "timer").Logger(),
	}
}

// Subscribe registers a listener for all subsequent events.
func (e *Engine) Subscribe(l Listener) {
	e.listeners = append(e.listeners, l)
}

// Session returns a copy of the live session, or nil when idle.
func (e *Engine) Session() *Session {
	if e.session == nil {
		return nil
	}
	s := *e.session
	return &s
}

// State returns the current state.
func (e *Engine) State() State {
	switch {
	case e.session == nil:
		return StateIdle
	case e.session.IsPaused:
		return StatePaused
	default:
		return StateRunning
	}
}

// Start creates a running session. The caller must already have redeemed
// tokens from the wallet.
func (e *Engine) Start(tokens int, now time.Time) (Session, error) {
	if tokens <= 0 {
		return Session{}, ErrInvalidTokens
	}
	if e.session != nil {
		return Session{}, ErrSessionActive
	}

	s := NewSession(tokens, now)
	e.session = &s
	e.lastActivity = now

	e.logger.Info().
		Str("session_id", s.ID).
		Int("tokens", tokens).
		Time("end_time", s.EndTime()).
		Msg("Timer started")

	e.emit(Event{Kind: EventStarted, At: now, Session: s})
	return s, nil
}

// Tick completes the session once its end time has passed. It reports
// whether a completion happened.
func (e *Engine) Tick(now time.Time) bool {
	s := e.session
	if s == nil || s.IsPaused || !s.IsActive {
		return false
	}
	if s.Remaining(now) > 0 {
		return false
	}

	e.complete(now)
	return true
}

// Pause freezes a running session.
func (e *Engine) Pause(now time.Time) error {
	if e.session == nil {
		return ErrNoSession
	}
	if e.session.IsPaused {
		return fmt.Errorf("pause paused session: %w", ErrInvalidTransition)
	}

	at := now
	e.session.IsPaused = true
	e.session.PausedAt = &at

	e.logger.Debug().
		Str("session_id", e.session.ID).
		Dur("remaining", e.session.Remaining(now)).
		Msg("Timer paused")

	e.emit(Event{Kind: EventPaused, At: now, Session: *e.session})
	return nil
}

// Resume restarts a paused session, accumulating the paused interval.
func (e *Engine) Resume(now time.Time) error {
	if e.session == nil {
		return ErrNoSession
	}
	if !e.session.IsPaused {
		return fmt.Errorf("resume running session: %w", ErrInvalidTransition)
	}

	if e.session.PausedAt != nil {
		if paused := now.Sub(*e.session.PausedAt); paused > 0 {
			e.session.TotalPausedDuration += paused
		}
	}
	e.session.IsPaused = false
	e.session.PausedAt = nil
	e.lastActivity = now

	e.logger.Debug().
		Str("session_id", e.session.ID).
		Dur("total_paused", e.session.TotalPausedDuration).
		Msg("Timer resumed")

	e.emit(Event{Kind: EventResumed, At: now, Session: *e.session})
	return nil
}

// EndEarly terminates the session and reports the refund split. It is a
// no-op returning false when no session exists.
func (e *Engine) EndEarly(gracePeriodMinutes int, now time.Time) (Split, bool) {
	if e.session == nil {
		return Split{}, false
	}

	s := *e.session
	split := s.RefundSplit(gracePeriodMinutes, now)
	e.session = nil

	s.IsActive = false
	e.logger.Info().
		Str("session_id", s.ID).
		Int("returned", split.Returned).
		Int("redeemed", split.Redeemed).
		Bool("grace", split.InGracePeriod).
		Msg("Timer ended early")

	e.emit(Event{
		Kind:             EventEndedEarly,
		At:               now,
		Session:          s,
		Returned:         split.Returned,
		Redeemed:         split.Redeemed,
		WasInGracePeriod: split.InGracePeriod,
	})
	return split, true
}

// FastForward moves the session so it completes shortly after now. This is
// the only operation allowed to shrink the accumulated paused duration.
func (e *Engine) FastForward(now time.Time) error {
	if e.session == nil {
		return ErrNoSession
	}

	s := e.session
	target := now.Add(fastForwardLead)
	s.TotalPausedDuration = target.Sub(s.StartTime) - time.Duration(s.TotalMinutes)*time.Minute
	if s.IsPaused {
		at := now
		s.PausedAt = &at
	}

	e.logger.Warn().Str("session_id", s.ID).Msg("Timer fast-forwarded")
	e.emit(Event{Kind: EventUpdated, At: now, Session: *s})
	return nil
}

// LastActivity returns the last recorded user activity.
func (e *Engine) LastActivity() time.Time {
	return e.lastActivity
}

// RecordActivity marks user activity for auto-pause purposes.
func (e *Engine) RecordActivity(now time.Time) {
	e.lastActivity = now
}

// CheckInactivity pauses a running session after autoPauseMinutes without
// activity. It reports whether the session was paused.
func (e *Engine) CheckInactivity(now time.Time, enabled bool, autoPauseMinutes int) bool {
	if !enabled || autoPauseMinutes <= 0 || e.State() != StateRunning {
		return false
	}
	if now.Sub(e.lastActivity) < time.Duration(autoPauseMinutes)*time.Minute {
		return false
	}

	e.logger.Info().
		Str("session_id", e.session.ID).
		Dur("inactive", now.Sub(e.lastActivity)).
		Msg("Auto-pausing inactive timer")

	return e.Pause(now) == nil
}

// Restore installs a persisted session and emits EventRestored. Sessions
// that are inactive or past their end time are completed immediately;
// corrupted sessions are discarded and reported through a
// *CorruptSessionError.
func (e *Engine) Restore(s *Session, now time.Time) error {
	if s == nil {
		return nil
	}
	if e.session != nil {
		return ErrSessionActive
	}

	if s.OriginalTokens <= 0 || s.TotalMinutes <= 0 {
		refund := max(1, s.OriginalTokens-usedTokens(*s, now))
		e.logger.Error().
			Str("session_id", s.ID).
			Int("original_tokens", s.OriginalTokens).
			Int("total_minutes", s.TotalMinutes).
			Int("refund", refund).
			Msg("Discarding corrupted session")
		return &CorruptSessionError{SessionID: s.ID, Refund: refund}
	}

	restored := *s
	e.session = &restored
	e.lastActivity = now

	if !s.IsActive || s.IsCompleted(now) {
		at := now
		if end := s.EndTime(); s.IsActive && end.Before(now) {
			at = end
		}
		e.logger.Info().
			Str("session_id", s.ID).
			Time("end_time", s.EndTime()).
			Msg("Restored session already finished")
		e.complete(at)
		return nil
	}

	e.logger.Info().
		Str("session_id", s.ID).
		Bool("paused", s.IsPaused).
		Dur("remaining", s.Remaining(now)).
		Msg("Restored active session")
	e.emit(Event{Kind: EventRestored, At: now, Session: restored})
	return nil
}

func (e *Engine) complete(at time.Time) {
	s := *e.session
	e.session = nil
	s.IsActive = false

	e.logger.Info().
		Str("session_id", s.ID).
		Int("tokens", s.OriginalTokens).
		Msg("Timer completed")

	e.emit(Event{
		Kind:     EventCompleted,
		At:       at,
		Session:  s,
		Redeemed: s.OriginalTokens,
	})
}

func (e *Engine) emit(ev Event) {
	for _, l := range e.listeners {
		l(ev)
	}
}

// usedTokens rounds effective elapsed time up to whole tokens.
func usedTokens(s Session, now time.Time) int {
	elapsed := s.EffectiveElapsed(now)
	if elapsed <= 0 {
		return 0
	}
	per := time.Duration(wallet.MinutesPerToken) * time.Minute
	return int((elapsed + per - 1) / per)
}
