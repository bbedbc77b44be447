package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/chenwt/key-reservation/internal/model"
	"github.com/chenwt/key-reservation/internal/repository"
	"github.com/chenwt/key-reservation/internal/validate"
)

// LeaseStore is the persistence contract the booking service needs.  The
// MySQL implementation lives in internal/repository; tests substitute an
// in-memory fake.
type LeaseStore interface {
	// CreateIfFree atomically runs the conflict check and, when no slot
	// overlaps a slot-holding lease on the same key and date, persists the
	// lease.  It returns the overlapping slot names otherwise.
	CreateIfFree(ctx context.Context, l *model.Lease) ([]string, error)
	// ListByKey returns the leases for a key in insertion order, optionally
	// restricted to one date.
	ListByKey(ctx context.Context, keyID string, date *time.Time) ([]model.Lease, error)
	// FindByOwner returns the first lease matching (key, phone, date),
	// optionally restricted to a status, or repository.ErrLeaseNotFound.
	FindByOwner(ctx context.Context, keyID, phone string, date time.Time, status *model.Status) (*model.Lease, error)
	// UpdateStatus moves a lease between statuses, re-checking the expected
	// current status, and stamps returnedAt when provided.
	UpdateStatus(ctx context.Context, id uint64, from, to model.Status, returnedAt *time.Time) error
}

// KeyStore is the persistence contract for the key catalog.
type KeyStore interface {
	List(ctx context.Context) ([]model.Key, error)
	ReplaceAll(ctx context.Context, keys []model.Key) (int, error)
}

// EventPublisher receives lifecycle notifications.  Publishing is
// best-effort: failures are the publisher's problem and never fail the
// request that triggered them.
type EventPublisher interface {
	LeaseRequested(ctx context.Context, l *model.Lease)
	LeaseReturned(ctx context.Context, l *model.Lease)
}

// Booking is the booking engine plus the lease lifecycle.  All policy
// (the shared password list, the wrong-password delay, the event sink)
// arrives through the constructor.
type Booking struct {
	leases    LeaseStore
	keys      KeyStore
	passwords map[string]bool
	failDelay time.Duration
	events    EventPublisher
	now       func() time.Time
}

// NewBooking constructs the booking service.  events may be nil when no
// broker is configured.
func NewBooking(leases LeaseStore, keys KeyStore, memberPasswords []string, failDelay time.Duration, events EventPublisher) *Booking {
	if leases == nil || keys == nil {
		panic("nil store passed to NewBooking")
	}
	pw := make(map[string]bool, len(memberPasswords))
	for _, p := range memberPasswords {
		pw[p] = true
	}
	return &Booking{
		leases:    leases,
		keys:      keys,
		passwords: pw,
		failDelay: failDelay,
		events:    events,
		now:       time.Now,
	}
}

// DateLayout is the wire format for calendar dates.
const DateLayout = "2006-01-02"

// RentRequest carries one rent submission.  Phone doubles as the member's
// return credential, so its shape is enforced strictly.
type RentRequest struct {
	Name     string   `validate:"required,max=100"`
	Phone    string   `validate:"required,len=10,number"`
	Email    string   `validate:"required,max=40"`
	Password string   `validate:"required"`
	KeyID    string   `validate:"required,max=64"`
	Date     string   `validate:"required"`
	Slots    []string `validate:"required,min=1"`
}

// SubmitRent validates the request, applies the shared-password gate and
// the slot conflict check, and creates the lease in PENDING_REVIEW.  A key
// outside the catalog is accepted and simply starts its own booking bucket;
// the catalog only drives the picker UI.
func (b *Booking) SubmitRent(ctx context.Context, req RentRequest) (*model.Lease, error) {
	if err := validate.Struct(req); err != nil {
		return nil, validationf("%v", err)
	}
	date, err := time.ParseInLocation(DateLayout, req.Date, time.UTC)
	if err != nil {
		return nil, validationf("date: want %s, got %q", DateLayout, req.Date)
	}
	slots, unknown := model.NormalizeSlots(req.Slots)
	if len(unknown) > 0 {
		return nil, validationf("slots: unknown period %q", unknown[0])
	}
	if len(slots) == 0 {
		return nil, validationf("slots: at least one period required")
	}
	if !b.passwords[req.Password] {
		// Crude brute-force throttle.  The duration is configuration,
		// not contract.
		if err := b.sleep(ctx); err != nil {
			return nil, err
		}
		return nil, ErrBadPassword
	}

	lease := &model.Lease{
		KeyID:      req.KeyID,
		RenterName: req.Name,
		Phone:      req.Phone,
		Email:      req.Email,
		LeaseDate:  date,
		Slots:      slots,
		Status:     model.StatusPendingReview,
		CreatedAt:  b.now().UTC(),
	}
	overlap, err := b.leases.CreateIfFree(ctx, lease)
	if err != nil {
		return nil, err
	}
	if len(overlap) > 0 {
		return nil, &ConflictError{KeyID: req.KeyID, Slots: overlap}
	}
	if b.events != nil {
		b.events.LeaseRequested(ctx, lease)
	}
	return lease, nil
}

// ReturnRequest carries one return submission.  Returns are matched by the
// full (phone, key, date) triple; matching by phone alone was ambiguous
// when a member held the same key on several dates.
type ReturnRequest struct {
	Phone string `validate:"required,len=10,number"`
	KeyID string `validate:"required,max=64"`
	Date  string `validate:"required"`
}

// SubmitReturn moves the member's checked-out lease to PENDING_RETURN.
// Only a lease currently in CHECKED_OUT qualifies; anything else is
// reported as not found so the caller cannot probe lease states.
func (b *Booking) SubmitReturn(ctx context.Context, req ReturnRequest) (*model.Lease, error) {
	if err := validate.Struct(req); err != nil {
		return nil, validationf("%v", err)
	}
	date, err := time.ParseInLocation(DateLayout, req.Date, time.UTC)
	if err != nil {
		return nil, validationf("date: want %s, got %q", DateLayout, req.Date)
	}

	want := model.StatusCheckedOut
	lease, err := b.leases.FindByOwner(ctx, req.KeyID, req.Phone, date, &want)
	if err != nil {
		if errors.Is(err, repository.ErrLeaseNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if !model.CanTransition(lease.Status, model.StatusPendingReturn, model.ActorMember) {
		return nil, ErrNotFound
	}
	if err := b.leases.UpdateStatus(ctx, lease.ID, lease.Status, model.StatusPendingReturn, nil); err != nil {
		if errors.Is(err, repository.ErrStaleLease) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	lease.Status = model.StatusPendingReturn
	return lease, nil
}

// AdminUpdateStatus applies an administrator transition to the lease
// matching (key, phone, date).  The transition table permits any move
// except away from RETURNED; reaching RETURNED stamps the actual return
// time and freezes the lease.
func (b *Booking) AdminUpdateStatus(ctx context.Context, keyID, phone, dateStr, target string) (*model.Lease, error) {
	to, ok := model.ParseStatus(target)
	if !ok {
		return nil, validationf("status: unknown value %q", target)
	}
	date, err := time.ParseInLocation(DateLayout, dateStr, time.UTC)
	if err != nil {
		return nil, validationf("date: want %s, got %q", DateLayout, dateStr)
	}

	lease, err := b.leases.FindByOwner(ctx, keyID, phone, date, nil)
	if err != nil {
		if errors.Is(err, repository.ErrLeaseNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if lease.Status.Terminal() {
		return nil, ErrFrozen
	}
	if !model.CanTransition(lease.Status, to, model.ActorAdmin) {
		return nil, ErrBadTransition
	}

	var returnedAt *time.Time
	if to == model.StatusReturned {
		t := b.now().UTC()
		returnedAt = &t
	}
	if err := b.leases.UpdateStatus(ctx, lease.ID, lease.Status, to, returnedAt); err != nil {
		if errors.Is(err, repository.ErrStaleLease) {
			return nil, ErrBadTransition
		}
		return nil, err
	}
	lease.Status = to
	lease.ReturnedAt = returnedAt
	if to == model.StatusReturned && b.events != nil {
		b.events.LeaseReturned(ctx, lease)
	}
	return lease, nil
}

// ListLeases returns the leases for a key, optionally filtered to one
// date, for the administrator's review screen.
func (b *Booking) ListLeases(ctx context.Context, keyID, dateStr string) ([]model.Lease, error) {
	if keyID == "" {
		return nil, validationf("key_id: required")
	}
	var date *time.Time
	if dateStr != "" {
		d, err := time.ParseInLocation(DateLayout, dateStr, time.UTC)
		if err != nil {
			return nil, validationf("date: want %s, got %q", DateLayout, dateStr)
		}
		date = &d
	}
	return b.leases.ListByKey(ctx, keyID, date)
}

// ListKeys returns the catalog in stored order.
func (b *Booking) ListKeys(ctx context.Context) ([]model.Key, error) {
	return b.keys.List(ctx)
}

// KeyEntry is one catalog entry in a replace request.
type KeyEntry struct {
	KeyID    string `json:"key_id"`
	Label    string `json:"label"`
	ImageURL string `json:"image_url"`
}

// ReplaceKeys wholesale-replaces the catalog.  Entries with a blank or
// duplicate key id are silently dropped rather than rejected, so a sloppy
// editor payload shrinks the catalog instead of failing it.  It returns
// the number of entries kept.
func (b *Booking) ReplaceKeys(ctx context.Context, entries []KeyEntry) (int, error) {
	keys := make([]model.Key, 0, len(entries))
	seen := make(map[string]bool, len(entries))
	for _, e := range entries {
		id := strings.TrimSpace(e.KeyID)
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		k := model.Key{KeyID: id, Label: strings.TrimSpace(e.Label)}
		if u := strings.TrimSpace(e.ImageURL); u != "" {
			k.ImageURL = &u
		}
		keys = append(keys, k)
	}
	return b.keys.ReplaceAll(ctx, keys)
}

// sleep blocks for the configured wrong-password delay, honoring context
// cancellation so a dropped connection does not pin a goroutine.
func (b *Booking) sleep(ctx context.Context) error {
	if b.failDelay <= 0 {
		return nil
	}
	t := time.NewTimer(b.failDelay)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
