package domain

import "time"

type WaitlistStatus string

const (
	WaitlistStatusWaiting   WaitlistStatus = "waiting"
	WaitlistStatusNotified  WaitlistStatus = "notified"
	WaitlistStatusExpired   WaitlistStatus = "expired"
	WaitlistStatusConverted WaitlistStatus = "converted"
)

// WaitlistEntry queues a user for a full event. Position is a per-event
// monotonic sequence assigned at enqueue time and never reused, so FIFO
// order survives promotion churn. "Next in line" is always the WAITING
// entry with the smallest position.
type WaitlistEntry struct {
	ID         string         `json:"id"`
	EventID    string         `json:"event_id"`
	UserID     string         `json:"user_id"`
	Position   int64          `json:"position"`
	Status     WaitlistStatus `json:"status"`
	EnqueuedAt time.Time      `json:"enqueued_at"`
	NotifiedAt *time.Time     `json:"notified_at,omitempty"`
	ExpiresAt  *time.Time     `json:"expires_at,omitempty"`
}

// IsActive reports whether the entry still occupies a slot in the queue.
func (w *WaitlistEntry) IsActive() bool {
	return w.Status == WaitlistStatusWaiting || w.Status == WaitlistStatusNotified
}

// IsTerminal reports whether the entry left the queue for good.
func (w *WaitlistEntry) IsTerminal() bool {
	return w.Status == WaitlistStatusExpired || w.Status == WaitlistStatusConverted
}

// ClaimableAt reports whether a promoted entry can still be converted into
// a registration at the given instant. The 24h window is a soft deadline:
// it is checked on access and by the expiry sweeper, never by a timer.
func (w *WaitlistEntry) ClaimableAt(now time.Time) bool {
	return w.Status == WaitlistStatusNotified && w.ExpiresAt != nil && now.Before(*w.ExpiresAt)
}

// OverdueAt reports whether a promoted entry outlived its claim window.
func (w *WaitlistEntry) OverdueAt(now time.Time) bool {
	return w.Status == WaitlistStatusNotified && w.ExpiresAt != nil && !now.Before(*w.ExpiresAt)
}
