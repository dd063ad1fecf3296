package redis

import (
	"fmt"
	"strconv"
	"time"

	"github.com/goodtune/tokentimer/internal/storage"
)

// parseWallet converts a Redis hash to Wallet
func parseWallet(data map[string]string) (*storage.Wallet, error) {
	if len(data) == 0 {
		return nil, storage.ErrNotFound
	}

	total, err := strconv.Atoi(data["total_tokens"])
	if err != nil {
		return nil, fmt.Errorf("failed to parse total_tokens: %w", err)
	}

	updatedAt, err := parseOptionalTime(data["updated_at"])
	if err != nil {
		return nil, fmt.Errorf("failed to parse updated_at: %w", err)
	}

	return &storage.Wallet{TotalTokens: total, UpdatedAt: updatedAt}, nil
}

// sessionFields flattens a TimerSession into Redis hash fields
func sessionFields(session storage.TimerSession) map[string]any {
	pausedAt := ""
	if session.PausedAt != nil {
		pausedAt = session.PausedAt.Format(time.RFC3339Nano)
	}
	return map[string]any{
		"id":                   session.ID,
		"original_tokens":      session.OriginalTokens,
		"total_minutes":        session.TotalMinutes,
		"start_time":           session.StartTime.Format(time.RFC3339Nano),
		"is_active":            strconv.FormatBool(session.IsActive),
		"is_paused":            strconv.FormatBool(session.IsPaused),
		"paused_at":            pausedAt,
		"total_paused_seconds": strconv.FormatFloat(session.TotalPausedSeconds, 'f', -1, 64),
		"last_activity":        session.LastActivity.Format(time.RFC3339Nano),
	}
}

// parseTimerSession converts a Redis hash to TimerSession
func parseTimerSession(data map[string]string) (*storage.TimerSession, error) {
	if len(data) == 0 {
		return nil, storage.ErrNotFound
	}

	originalTokens, err := strconv.Atoi(data["original_tokens"])
	if err != nil {
		return nil, fmt.Errorf("failed to parse original_tokens: %w", err)
	}

	totalMinutes, err := strconv.Atoi(data["total_minutes"])
	if err != nil {
		return nil, fmt.Errorf("failed to parse total_minutes: %w", err)
	}

	startTime, err := time.Parse(time.RFC3339Nano, data["start_time"])
	if err != nil {
		return nil, fmt.Errorf("failed to parse start_time: %w", err)
	}

	isActive, err := strconv.ParseBool(data["is_active"])
	if err != nil {
		return nil, fmt.Errorf("failed to parse is_active: %w", err)
	}

	isPaused, err := strconv.ParseBool(data["is_paused"])
	if err != nil {
		return nil, fmt.Errorf("failed to parse is_paused: %w", err)
	}

	var pausedAt *time.Time
	if raw := data["paused_at"]; raw != "" {
		t, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			return nil, fmt.Errorf("failed to parse paused_at: %w", err)
		}
		pausedAt = &t
	}

	pausedSeconds, err := strconv.ParseFloat(data["total_paused_seconds"], 64)
	if err != nil {
		return nil, fmt.Errorf("failed to parse total_paused_seconds: %w", err)
	}

	lastActivity, err := parseOptionalTime(data["last_activity"])
	if err != nil {
		return nil, fmt.Errorf("failed to parse last_activity: %w", err)
	}

	return &storage.TimerSession{
		ID:                 data["id"],
		OriginalTokens:     originalTokens,
		TotalMinutes:       totalMinutes,
		StartTime:          startTime,
		IsActive:           isActive,
		IsPaused:           isPaused,
		PausedAt:           pausedAt,
		TotalPausedSeconds: pausedSeconds,
		LastActivity:       lastActivity,
	}, nil
}

func parseOptionalTime(raw string) (time.Time, error) {
	if raw == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.RFC3339Nano, raw)
}
