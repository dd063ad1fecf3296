package settings

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultsValidate(t *testing.T) {
	s := Defaults()
	require.NoError(t, s.Validate())
	assert.Equal(t, 2, s.GracePeriodMinutes)
	assert.Nil(t, s.MaxWalletTokens)
	assert.Nil(t, s.DailyGoalMinutes)
}

func TestValidateRejects(t *testing.T) {
	neg := -1
	tests := []struct {
		name   string
		mutate func(*Settings)
	}{
		{"negative grace", func(s *Settings) { s.GracePeriodMinutes = -1 }},
		{"enabled auto-pause without minutes", func(s *Settings) { s.AutoPauseMinutes = 0 }},
		{"negative cap", func(s *Settings) { s.MaxWalletTokens = &neg }},
		{"bad display", func(s *Settings) { s.TimeDisplay = "seconds" }},
		{"bad week start", func(s *Settings) { s.WeekStart = 9 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := Defaults()
			tt.mutate(&s)
			assert.Error(t, s.Validate())
		})
	}
}

func TestLimit(t *testing.T) {
	assert.Nil(t, Limit(0))
	assert.Nil(t, Limit(-3))
	require.NotNil(t, Limit(5))
	assert.Equal(t, 5, *Limit(5))
}

func TestParseTimeDisplay(t *testing.T) {
	d, err := ParseTimeDisplay("HoursMinutes")
	require.NoError(t, err)
	assert.Equal(t, HoursMinutes, d)

	_, err = ParseTimeDisplay("days")
	assert.Error(t, err)
}
