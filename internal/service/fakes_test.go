package service

import (
	"context"
	"sync"
	"time"

	"github.com/vogiaan1904/ticketbottle-registration/internal/delivery/kafka"
	"github.com/vogiaan1904/ticketbottle-registration/internal/domain"
	repo "github.com/vogiaan1904/ticketbottle-registration/internal/repository/postgres"
	pkgLog "github.com/vogiaan1904/ticketbottle-registration/pkg/logger"
)

// memStore is an in-memory stand-in for the Postgres repositories. A single
// mutex plays the role of the event row lock: count-then-insert is atomic
// under it, exactly the guarantee the real store provides per event.
type memStore struct {
	mu      sync.Mutex
	events  map[string]*domain.Event
	regs    []*domain.Registration
	entries []*domain.WaitlistEntry
	nextPos map[string]int64
}

func newMemStore(events ...*domain.Event) *memStore {
	s := &memStore{
		events:  make(map[string]*domain.Event),
		nextPos: make(map[string]int64),
	}
	for _, e := range events {
		s.events[e.ID] = e
	}
	return s
}

// EventRepository

func (s *memStore) GetByID(_ context.Context, eID string) (*domain.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.events[eID]
	if !ok {
		return nil, repo.ErrNotFound
	}
	cp := *e
	return &cp, nil
}

func (s *memStore) Stats(_ context.Context, eID string) (*domain.EventStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.events[eID]
	if !ok {
		return nil, repo.ErrNotFound
	}

	stats := &domain.EventStats{EventID: eID, Capacity: e.Capacity}
	for _, r := range s.regs {
		if r.EventID != eID {
			continue
		}
		if r.IsActive() {
			stats.TotalActive++
		}
		if r.Status == domain.RegistrationStatusConfirmed {
			stats.ConfirmedCount++
		}
		if r.CheckedInAt != nil {
			stats.CheckedInCount++
		}
	}
	for _, w := range s.entries {
		if w.EventID == eID && w.IsActive() {
			stats.WaitlistedCount++
		}
	}
	return stats, nil
}

// RegistrationRepository

func (s *memStore) CreateIfCapacity(_ context.Context, reg *domain.Registration, force bool) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.events[reg.EventID]
	if !ok {
		return false, repo.ErrNotFound
	}

	for _, r := range s.regs {
		if r.EventID == reg.EventID && r.UserID == reg.UserID && r.IsActive() {
			return false, repo.ErrDuplicateRegistration
		}
	}

	if !force && e.Capacity != nil {
		active := 0
		for _, r := range s.regs {
			if r.EventID == reg.EventID && r.IsActive() {
				active += r.AttendeeCount
			}
		}
		if active+reg.AttendeeCount > *e.Capacity {
			return false, nil
		}
	}

	cp := *reg
	s.regs = append(s.regs, &cp)
	return true, nil
}

func (s *memStore) GetActiveByEventAndUser(_ context.Context, eID, uID string) (*domain.Registration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, r := range s.regs {
		if r.EventID == eID && r.UserID == uID && r.IsActive() {
			cp := *r
			return &cp, nil
		}
	}
	return nil, repo.ErrNotFound
}

func (s *memStore) GetLatestByEventAndUser(_ context.Context, eID, uID string) (*domain.Registration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := len(s.regs) - 1; i >= 0; i-- {
		r := s.regs[i]
		if r.EventID == eID && r.UserID == uID {
			cp := *r
			return &cp, nil
		}
	}
	return nil, repo.ErrNotFound
}

func (s *memStore) MarkCancelled(_ context.Context, regID string, at time.Time) (*domain.Registration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, r := range s.regs {
		if r.ID == regID && r.IsActive() {
			r.Status = domain.RegistrationStatusCancelled
			r.CancelledAt = &at
			cp := *r
			return &cp, nil
		}
	}
	return nil, repo.ErrNotFound
}

func (s *memStore) MarkConfirmed(_ context.Context, regID string, at time.Time) (*domain.Registration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, r := range s.regs {
		if r.ID == regID && r.Status == domain.RegistrationStatusPending {
			r.Status = domain.RegistrationStatusConfirmed
			r.ConfirmedAt = &at
			cp := *r
			return &cp, nil
		}
	}
	return nil, repo.ErrNotFound
}

func (s *memStore) ActiveAttendeeCount(_ context.Context, eID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	count := 0
	for _, r := range s.regs {
		if r.EventID == eID && r.IsActive() {
			count += r.AttendeeCount
		}
	}
	return count, nil
}

// WaitlistRepository

func (s *memStore) Enqueue(_ context.Context, entry *domain.WaitlistEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.events[entry.EventID]; !ok {
		return repo.ErrNotFound
	}

	for _, w := range s.entries {
		if w.EventID == entry.EventID && w.UserID == entry.UserID && w.IsActive() {
			return repo.ErrDuplicateWaitlistEntry
		}
	}

	s.nextPos[entry.EventID]++
	entry.Position = s.nextPos[entry.EventID]

	cp := *entry
	s.entries = append(s.entries, &cp)
	return nil
}

func (s *memStore) ClaimNextWaiting(_ context.Context, eID string, notifiedAt, expiresAt time.Time) (*domain.WaitlistEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var next *domain.WaitlistEntry
	for _, w := range s.entries {
		if w.EventID == eID && w.Status == domain.WaitlistStatusWaiting {
			if next == nil || w.Position < next.Position {
				next = w
			}
		}
	}
	if next == nil {
		return nil, repo.ErrNotFound
	}

	next.Status = domain.WaitlistStatusNotified
	na, ea := notifiedAt, expiresAt
	next.NotifiedAt = &na
	next.ExpiresAt = &ea

	cp := *next
	return &cp, nil
}

func (s *memStore) GetActiveByEventAndUserWaitlist(_ context.Context, eID, uID string) (*domain.WaitlistEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, w := range s.entries {
		if w.EventID == eID && w.UserID == uID && w.IsActive() {
			cp := *w
			return &cp, nil
		}
	}
	return nil, repo.ErrNotFound
}

func (s *memStore) MarkConverted(_ context.Context, entryID string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, w := range s.entries {
		if w.ID == entryID && w.Status == domain.WaitlistStatusNotified {
			w.Status = domain.WaitlistStatusConverted
			if w.NotifiedAt == nil {
				w.NotifiedAt = &at
			}
			return nil
		}
	}
	return repo.ErrNotFound
}

func (s *memStore) MarkExpired(_ context.Context, entryID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, w := range s.entries {
		if w.ID == entryID && w.Status == domain.WaitlistStatusNotified {
			w.Status = domain.WaitlistStatusExpired
			return nil
		}
	}
	return repo.ErrNotFound
}

func (s *memStore) ListOverdue(_ context.Context, now time.Time, limit int) ([]domain.WaitlistEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []domain.WaitlistEntry
	for _, w := range s.entries {
		if w.OverdueAt(now) {
			out = append(out, *w)
			if len(out) >= limit {
				break
			}
		}
	}
	return out, nil
}

func (s *memStore) CountActive(_ context.Context, eID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	count := 0
	for _, w := range s.entries {
		if w.EventID == eID && w.IsActive() {
			count++
		}
	}
	return count, nil
}

// entryByUser reads an entry directly for assertions.
func (s *memStore) entryByUser(eID, uID string) *domain.WaitlistEntry {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := len(s.entries) - 1; i >= 0; i-- {
		w := s.entries[i]
		if w.EventID == eID && w.UserID == uID {
			cp := *w
			return &cp
		}
	}
	return nil
}

func (s *memStore) entryByID(entryID string) *domain.WaitlistEntry {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, w := range s.entries {
		if w.ID == entryID {
			cp := *w
			return &cp
		}
	}
	return nil
}

// forceExpire rewinds a notified entry's deadline for expiry tests.
func (s *memStore) forceExpire(entryID string, deadline time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, w := range s.entries {
		if w.ID == entryID {
			w.ExpiresAt = &deadline
		}
	}
}

// wlView adapts memStore to the WaitlistRepository interface; the waitlist
// GetActiveByEventAndUser collides with the registration one on the shared
// struct, so the adapter renames it.
type wlView struct{ *memStore }

func (v wlView) GetActiveByEventAndUser(ctx context.Context, eID, uID string) (*domain.WaitlistEntry, error) {
	return v.memStore.GetActiveByEventAndUserWaitlist(ctx, eID, uID)
}

// recordingDispatcher captures notifications in call order.
type recordingDispatcher struct {
	mu    sync.Mutex
	calls []string

	created    []kafka.RegistrationCreatedEvent
	cancelled  []kafka.RegistrationCancelledEvent
	counts     []kafka.AttendeeCountUpdatedEvent
	promotions []kafka.WaitlistPromotedEvent
	available  []kafka.AvailabilityChangedEvent
}

func (d *recordingDispatcher) NewRegistration(_ context.Context, e kafka.RegistrationCreatedEvent) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls = append(d.calls, "new_registration")
	d.created = append(d.created, e)
}

func (d *recordingDispatcher) RegistrationCancelled(_ context.Context, e kafka.RegistrationCancelledEvent) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls = append(d.calls, "registration_cancelled")
	d.cancelled = append(d.cancelled, e)
}

func (d *recordingDispatcher) AttendeesCountUpdate(_ context.Context, e kafka.AttendeeCountUpdatedEvent) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls = append(d.calls, "attendees_count_update")
	d.counts = append(d.counts, e)
}

func (d *recordingDispatcher) WaitlistPromotion(_ context.Context, e kafka.WaitlistPromotedEvent) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls = append(d.calls, "waitlist_promotion")
	d.promotions = append(d.promotions, e)
}

func (d *recordingDispatcher) AvailabilityChanged(_ context.Context, e kafka.AvailabilityChangedEvent) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls = append(d.calls, "availability_changed")
	d.available = append(d.available, e)
}

func (d *recordingDispatcher) callOrder() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]string, len(d.calls))
	copy(out, d.calls)
	return out
}

func (d *recordingDispatcher) promotionEvents() []kafka.WaitlistPromotedEvent {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]kafka.WaitlistPromotedEvent, len(d.promotions))
	copy(out, d.promotions)
	return out
}

// newTestServices wires the full service graph over the in-memory store.
func newTestServices(events ...*domain.Event) (RegistrationService, WaitlistManager, *memStore, *recordingDispatcher) {
	store := newMemStore(events...)
	disp := &recordingDispatcher{}
	l := pkgLog.InitializeTestZapLogger()

	wl := NewWaitlistManager(wlView{store}, disp, 24*time.Hour, l)
	adm := NewAdmissionController(store, wlView{store}, wl, l)
	tracker := NewCapacityTracker(store, store, nil, l)
	svc := NewRegistrationService(store, store, adm, wl, tracker, disp, nil, l)

	return svc, wl, store, disp
}

func intPtr(v int) *int { return &v }

func testEvent(id string, capacity *int) *domain.Event {
	return &domain.Event{
		ID:       id,
		OwnerID:  "organizer-1",
		Name:     "Test Event",
		Capacity: capacity,
		Status:   domain.EventStatusScheduled,
		StartsAt: time.Now().Add(48 * time.Hour),
	}
}
