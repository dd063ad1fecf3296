package wallet

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MinutesPerToken is the fixed value of a single token.
const MinutesPerToken = 15

var (
	// ErrInsufficientTokens is returned when a redemption exceeds the balance.
	ErrInsufficientTokens = errors.New("wallet: insufficient tokens")

	// ErrInvalidAmount is returned for non-positive credits or debits.
	ErrInvalidAmount = errors.New("wallet: amount must be positive")
)

// EntryKind is the accounting side of a journal entry.
type EntryKind string

const (
	EntryCredit EntryKind = "CREDIT"
	EntryDebit  EntryKind = "DEBIT"
)

// Reason records why the balance moved.
type Reason string

const (
	ReasonManual Reason = "manual"
	ReasonGrant  Reason = "grant"
	ReasonRedeem Reason = "redeem"
	ReasonRefund Reason = "refund"
	ReasonReset  Reason = "reset"
)

// Entry is a single balance movement.
type Entry struct {
	ID        string
	Timestamp time.Time
	Kind      EntryKind
	Reason    Reason
	Amount    int
	Balance   int
}

// Ledger owns the token balance. All mutations are serialized by its mutex,
// so Redeem is a single check-then-debit step for concurrent callers.
type Ledger struct {
	mu      sync.Mutex
	balance int
	pending []Entry
}

// NewLedger creates a ledger holding balance tokens. Negative balances are
// clamped to zero.
func NewLedger(balance int) *Ledger {
	if balance < 0 {
		balance = 0
	}
	return &Ledger{balance: balance}
}

// Balance returns the current token count.
func (l *Ledger) Balance() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.balance
}

// AddTokens credits count tokens unconditionally.
func (l *Ledger) AddTokens(count int, reason Reason, at time.Time) error {
	if count <= 0 {
		return fmt.Errorf("add %d tokens: %w", count, ErrInvalidAmount)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.credit(count, reason, at)
	return nil
}

// AddTokensUpToMax credits at most enough tokens to reach maxTokens and
// returns the amount actually added. A nil or non-positive maxTokens means
// no limit.
func (l *Ledger) AddTokensUpToMax(count int, maxTokens *int, reason Reason, at time.Time) int {
	if count <= 0 {
		return 0
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if maxTokens == nil || *maxTokens <= 0 {
		l.credit(count, reason, at)
		return count
	}

	space := max(0, *maxTokens-l.balance)
	added := min(count, space)
	if added > 0 {
		l.credit(added, reason, at)
	}
	return added
}

// CanRedeem reports whether count tokens are available.
func (l *Ledger) CanRedeem(count int) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.balance >= count
}

// Redeem debits count tokens if the balance allows it. On failure the
// balance is untouched.
func (l *Ledger) Redeem(count int, at time.Time) error {
	if count <= 0 {
		return fmt.Errorf("redeem %d tokens: %w", count, ErrInvalidAmount)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.balance < count {
		return fmt.Errorf("redeem %d tokens with %d available: %w", count, l.balance, ErrInsufficientTokens)
	}
	l.balance -= count
	l.journal(EntryDebit, ReasonRedeem, count, at)
	return nil
}

// Reset empties the wallet.
func (l *Ledger) Reset(at time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.balance == 0 {
		return
	}
	amount := l.balance
	l.balance = 0
	l.journal(EntryDebit, ReasonReset, amount, at)
}

// DrainJournal returns and clears the entries recorded since the last drain.
func (l *Ledger) DrainJournal() []Entry {
	l.mu.Lock()
	defer l.mu.Unlock()

	entries := l.pending
	l.pending = nil
	return entries
}

func (l *Ledger) credit(count int, reason Reason, at time.Time) {
	l.balance += count
	l.journal(EntryCredit, reason, count, at)
}

func (l *Ledger) journal(kind EntryKind, reason Reason, amount int, at time.Time) {
	l.pending = append(l.pending, Entry{
		ID:        uuid.NewString(),
		Timestamp: at,
		Kind:      kind,
		Reason:    reason,
		Amount:    amount,
		Balance:   l.balance,
	})
}
