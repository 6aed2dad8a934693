package model

import (
	"math"
	"time"

	"billing-lifecycle/internal/domain"
)

// WindowState classifies where a service sits relative to its renewal window.
type WindowState string

const (
	WindowFuture   WindowState = "future"
	WindowInWindow WindowState = "in_window"
	WindowExpired  WindowState = "expired"
)

// DaysUntilDue returns ceil((expiration - now) / 24h). Partial days round
// toward the boundary that delays the transition, so a service is never
// classified expired early.
func DaysUntilDue(now, expiration time.Time) int {
	return int(math.Ceil(expiration.Sub(now).Hours() / 24))
}

// ClassifyWindow places a service in {Future, InWindow, Expired}. Boundaries
// are inclusive on the window side: daysUntilDue == reminderDays and
// daysUntilDue == -graceDays are both InWindow.
func ClassifyWindow(now, expiration time.Time, reminderDays, graceDays int) (WindowState, error) {
	if reminderDays < 0 || graceDays < 0 {
		return "", domain.ErrInvalidArgument
	}
	days := DaysUntilDue(now, expiration)
	switch {
	case days > reminderDays:
		return WindowFuture, nil
	case days >= -graceDays:
		return WindowInWindow, nil
	default:
		return WindowExpired, nil
	}
}
