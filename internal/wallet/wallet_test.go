package wallet

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2025, 7, 22, 12, 0, 0, 0, time.UTC)

func intPtr(v int) *int { return &v }

func TestAddTokensUpToMax(t *testing.T) {
	tests := []struct {
		name      string
		balance   int
		count     int
		max       *int
		wantAdded int
		wantTotal int
	}{
		{"cap partially filled", 3, 10, intPtr(5), 2, 5},
		{"cap already reached", 5, 4, intPtr(5), 0, 5},
		{"over cap stays put", 8, 4, intPtr(5), 0, 8},
		{"nil means unlimited", 3, 10, nil, 10, 13},
		{"zero means unlimited", 3, 10, intPtr(0), 10, 13},
		{"fits under cap", 1, 2, intPtr(10), 2, 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := NewLedger(tt.balance)
			added := l.AddTokensUpToMax(tt.count, tt.max, ReasonManual, testNow)
			assert.Equal(t, tt.wantAdded, added)
			assert.Equal(t, tt.wantTotal, l.Balance())
		})
	}
}

func TestRedeem(t *testing.T) {
	l := NewLedger(4)

	require.True(t, l.CanRedeem(4))
	require.NoError(t, l.Redeem(4, testNow))
	assert.Equal(t, 0, l.Balance())

	err := l.Redeem(1, testNow)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInsufficientTokens))
	assert.Equal(t, 0, l.Balance(), "failed redeem must not mutate")

	assert.ErrorIs(t, l.Redeem(0, testNow), ErrInvalidAmount)
	assert.ErrorIs(t, l.AddTokens(-1, ReasonManual, testNow), ErrInvalidAmount)
}

func TestJournalConservation(t *testing.T) {
	l := NewLedger(0)

	require.NoError(t, l.AddTokens(4, ReasonManual, testNow))
	require.NoError(t, l.Redeem(3, testNow))
	require.NoError(t, l.AddTokens(2, ReasonRefund, testNow))
	l.AddTokensUpToMax(5, intPtr(4), ReasonGrant, testNow)

	entries := l.DrainJournal()
	require.Len(t, entries, 4)

	balance := 0
	for _, e := range entries {
		switch e.Kind {
		case EntryCredit:
			balance += e.Amount
		case EntryDebit:
			balance -= e.Amount
		}
		assert.Equal(t, balance, e.Balance)
	}
	assert.Equal(t, l.Balance(), balance)
	assert.Empty(t, l.DrainJournal())
}

func TestConcurrentRedeemNeverOverdraws(t *testing.T) {
	l := NewLedger(10)

	var wg sync.WaitGroup
	var mu sync.Mutex
	succeeded := 0
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if l.Redeem(1, testNow) == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 10, succeeded)
	assert.Equal(t, 0, l.Balance())
}

func TestReset(t *testing.T) {
	l := NewLedger(7)
	l.Reset(testNow)
	assert.Equal(t, 0, l.Balance())

	entries := l.DrainJournal()
	require.Len(t, entries, 1)
	assert.Equal(t, ReasonReset, entries[0].Reason)
	assert.Equal(t, 7, entries[0].Amount)
}
