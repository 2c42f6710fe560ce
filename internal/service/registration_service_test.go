package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/vogiaan1904/ticketbottle-registration/internal/domain"
	pkgLog "github.com/vogiaan1904/ticketbottle-registration/pkg/logger"
)

func TestCancelFreesSeatAndPromotes(t *testing.T) {
	svc, _, store, disp := newTestServices(testEvent("ev-1", intPtr(1)))
	ctx := context.Background()

	_, err := svc.Register(ctx, RegisterInput{EventID: "ev-1", UserID: "u1", AttendeeCount: 1})
	require.NoError(t, err)
	_, err = svc.Register(ctx, RegisterInput{EventID: "ev-1", UserID: "u2", AttendeeCount: 1})
	require.NoError(t, err)

	cancelled, err := svc.Cancel(ctx, "ev-1", "u1")
	require.NoError(t, err)
	require.Equal(t, domain.RegistrationStatusCancelled, cancelled.Status)
	require.NotNil(t, cancelled.CancelledAt)

	// The freed seat is offered to the queue head before Cancel returns.
	entry := store.entryByUser("ev-1", "u2")
	require.Equal(t, domain.WaitlistStatusNotified, entry.Status)

	promos := disp.promotionEvents()
	require.Len(t, promos, 1)
	require.Equal(t, "u2", promos[0].UserID)

	// Cancellation ack goes out before the count update and the promotion.
	order := disp.callOrder()
	require.Equal(t, []string{
		"new_registration", "attendees_count_update", // u1 registers
		"registration_cancelled", "attendees_count_update", "availability_changed", "waitlist_promotion",
	}, order)
}

func TestCancelIdempotent(t *testing.T) {
	svc, _, store, disp := newTestServices(testEvent("ev-1", intPtr(1)))
	ctx := context.Background()

	_, err := svc.Register(ctx, RegisterInput{EventID: "ev-1", UserID: "u1", AttendeeCount: 1})
	require.NoError(t, err)
	for _, uID := range []string{"u2", "u3"} {
		_, err := svc.Register(ctx, RegisterInput{EventID: "ev-1", UserID: uID, AttendeeCount: 1})
		require.NoError(t, err)
	}

	_, err = svc.Cancel(ctx, "ev-1", "u1")
	require.NoError(t, err)

	// Second cancel is rejected and must not trigger another promotion.
	_, err = svc.Cancel(ctx, "ev-1", "u1")
	require.ErrorIs(t, err, ErrAlreadyCancelled)

	require.Len(t, disp.promotionEvents(), 1)
	entry := store.entryByUser("ev-1", "u3")
	require.Equal(t, domain.WaitlistStatusWaiting, entry.Status)
}

func TestCancelUnknownRegistration(t *testing.T) {
	svc, _, _, _ := newTestServices(testEvent("ev-1", intPtr(1)))

	_, err := svc.Cancel(context.Background(), "ev-1", "nobody")
	require.ErrorIs(t, err, ErrRegistrationNotFound)
}

func TestCancelEmptyWaitlistNoPromotion(t *testing.T) {
	svc, _, _, disp := newTestServices(testEvent("ev-1", intPtr(5)))
	ctx := context.Background()

	_, err := svc.Register(ctx, RegisterInput{EventID: "ev-1", UserID: "u1", AttendeeCount: 1})
	require.NoError(t, err)

	_, err = svc.Cancel(ctx, "ev-1", "u1")
	require.NoError(t, err)
	require.Empty(t, disp.promotionEvents())
}

func TestCancelThenReRegister(t *testing.T) {
	svc, _, _, _ := newTestServices(testEvent("ev-1", intPtr(5)))
	ctx := context.Background()

	_, err := svc.Register(ctx, RegisterInput{EventID: "ev-1", UserID: "u1", AttendeeCount: 1})
	require.NoError(t, err)
	_, err = svc.Cancel(ctx, "ev-1", "u1")
	require.NoError(t, err)

	// Cancelled rows do not block a new signup by the same user.
	res, err := svc.Register(ctx, RegisterInput{EventID: "ev-1", UserID: "u1", AttendeeCount: 1})
	require.NoError(t, err)
	require.Equal(t, OutcomeRegistered, res.Kind)
}

func TestConfirmRegistration(t *testing.T) {
	svc, _, _, _ := newTestServices(testEvent("ev-1", intPtr(5)))
	ctx := context.Background()

	_, err := svc.Register(ctx, RegisterInput{EventID: "ev-1", UserID: "u1", AttendeeCount: 1})
	require.NoError(t, err)

	confirmed, err := svc.Confirm(ctx, "ev-1", "u1")
	require.NoError(t, err)
	require.Equal(t, domain.RegistrationStatusConfirmed, confirmed.Status)
	require.NotNil(t, confirmed.ConfirmedAt)

	// Confirming twice is a no-op returning the existing row.
	again, err := svc.Confirm(ctx, "ev-1", "u1")
	require.NoError(t, err)
	require.Equal(t, confirmed.ID, again.ID)
	require.Equal(t, domain.RegistrationStatusConfirmed, again.Status)

	_, err = svc.Confirm(ctx, "ev-1", "nobody")
	require.ErrorIs(t, err, ErrRegistrationNotFound)
}

// failingPromoteWaitlist wraps a real manager but fails every promotion.
type failingPromoteWaitlist struct {
	WaitlistManager
}

func (w failingPromoteWaitlist) PromoteNext(context.Context, string) (*domain.WaitlistEntry, error) {
	return nil, errors.New("promotion backend down")
}

// recordingStatsCache records invalidations and never hits.
type recordingStatsCache struct {
	mu          sync.Mutex
	invalidated []string
}

func (c *recordingStatsCache) GetStats(context.Context, string) (*domain.EventStats, error) {
	return nil, nil
}

func (c *recordingStatsCache) SetStats(context.Context, *domain.EventStats) error {
	return nil
}

func (c *recordingStatsCache) InvalidateOwner(_ context.Context, _ string, eID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.invalidated = append(c.invalidated, eID)
	return nil
}

func (c *recordingStatsCache) reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.invalidated = nil
}

func (c *recordingStatsCache) invalidations() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.invalidated))
	copy(out, c.invalidated)
	return out
}

func TestCancelInvalidatesStatsWhenPromotionFails(t *testing.T) {
	store := newMemStore(testEvent("ev-1", intPtr(1)))
	disp := &recordingDispatcher{}
	statsCache := &recordingStatsCache{}
	l := pkgLog.InitializeTestZapLogger()

	wl := NewWaitlistManager(wlView{store}, disp, 24*time.Hour, l)
	adm := NewAdmissionController(store, wlView{store}, wl, l)
	tracker := NewCapacityTracker(store, store, nil, l)
	svc := NewRegistrationService(store, store, adm, failingPromoteWaitlist{wl}, tracker, disp, statsCache, l)

	ctx := context.Background()
	_, err := svc.Register(ctx, RegisterInput{EventID: "ev-1", UserID: "u1", AttendeeCount: 1})
	require.NoError(t, err)
	_, err = svc.Register(ctx, RegisterInput{EventID: "ev-1", UserID: "u2", AttendeeCount: 1})
	require.NoError(t, err)
	statsCache.reset()

	_, err = svc.Cancel(ctx, "ev-1", "u1")
	require.Error(t, err)

	// The cancellation itself committed, so the dashboard cache must be
	// dropped even though the promotion failed.
	reg, err := store.GetLatestByEventAndUser(ctx, "ev-1", "u1")
	require.NoError(t, err)
	require.Equal(t, domain.RegistrationStatusCancelled, reg.Status)
	require.Contains(t, statsCache.invalidations(), "ev-1")
}

func TestStatsReflectsActivity(t *testing.T) {
	svc, _, _, _ := newTestServices(testEvent("ev-1", intPtr(2)))
	ctx := context.Background()

	for _, uID := range []string{"u1", "u2", "u3"} {
		_, err := svc.Register(ctx, RegisterInput{EventID: "ev-1", UserID: uID, AttendeeCount: 1})
		require.NoError(t, err)
	}
	_, err := svc.Confirm(ctx, "ev-1", "u1")
	require.NoError(t, err)

	stats, err := svc.Stats(ctx, "ev-1")
	require.NoError(t, err)
	require.Equal(t, 2, stats.TotalActive)
	require.Equal(t, 1, stats.ConfirmedCount)
	require.Equal(t, 1, stats.WaitlistedCount)
	require.NotNil(t, stats.Capacity)
	require.Equal(t, 2, *stats.Capacity)
}
