package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chenwt/key-reservation/internal/model"
	"github.com/chenwt/key-reservation/internal/repository"
)

func newTestBooking(t *testing.T) (*Booking, *repository.MemStore) {
	t.Helper()
	store := repository.NewMemStore()
	b := NewBooking(store, store, []string{"A1b2", "K9p3"}, 0, nil)
	return b, store
}

func rentReq(overrides func(*RentRequest)) RentRequest {
	req := RentRequest{
		Name:     "林小明",
		Phone:    "0912345678",
		Email:    "ming@example.com",
		Password: "A1b2",
		KeyID:    "K001",
		Date:     "2024-02-12",
		Slots:    []string{"第一節"},
	}
	if overrides != nil {
		overrides(&req)
	}
	return req
}

func TestSubmitRentCreatesPendingLease(t *testing.T) {
	b, _ := newTestBooking(t)
	ctx := context.Background()

	lease, err := b.SubmitRent(ctx, rentReq(nil))
	require.NoError(t, err)
	assert.Equal(t, model.StatusPendingReview, lease.Status)
	assert.Equal(t, []string{"第一節"}, lease.Slots)
	assert.Equal(t, "星期一", lease.Weekday())
	assert.False(t, lease.CreatedAt.IsZero())

	// Round-trip: the created lease is visible when listing that key+date.
	listed, err := b.ListLeases(ctx, "K001", "2024-02-12")
	require.NoError(t, err)
	require.Len(t, listed, 1)
	assert.Equal(t, lease.ID, listed[0].ID)
	assert.Equal(t, model.StatusPendingReview, listed[0].Status)
}

func TestSubmitRentValidation(t *testing.T) {
	b, _ := newTestBooking(t)
	ctx := context.Background()

	tests := []struct {
		name string
		mod  func(*RentRequest)
	}{
		{"phone too short", func(r *RentRequest) { r.Phone = "091234567" }},
		{"phone too long", func(r *RentRequest) { r.Phone = "09123456789" }},
		{"phone not numeric", func(r *RentRequest) { r.Phone = "09123A5678" }},
		{"phone with sign", func(r *RentRequest) { r.Phone = "-123456789" }},
		{"phone with decimal point", func(r *RentRequest) { r.Phone = "091234.678" }},
		{"missing name", func(r *RentRequest) { r.Name = "" }},
		{"missing email", func(r *RentRequest) { r.Email = "" }},
		{"email too long", func(r *RentRequest) { r.Email = "a123456789a123456789a123456789a1234567@x.com" }},
		{"bad date format", func(r *RentRequest) { r.Date = "12/02/2024" }},
		{"not a calendar date", func(r *RentRequest) { r.Date = "2024-02-31" }},
		{"no slots", func(r *RentRequest) { r.Slots = nil }},
		{"unknown slot", func(r *RentRequest) { r.Slots = []string{"第八節"} }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := b.SubmitRent(ctx, rentReq(tt.mod))
			assert.ErrorIs(t, err, ErrValidation)
		})
	}

	// Nothing was persisted by any rejected request.
	listed, err := b.ListLeases(ctx, "K001", "")
	require.NoError(t, err)
	assert.Empty(t, listed)
}

func TestSubmitRentBadPassword(t *testing.T) {
	store := repository.NewMemStore()
	delay := 30 * time.Millisecond
	b := NewBooking(store, store, []string{"A1b2"}, delay, nil)

	start := time.Now()
	_, err := b.SubmitRent(context.Background(), rentReq(func(r *RentRequest) { r.Password = "wrong" }))
	assert.ErrorIs(t, err, ErrBadPassword)
	assert.GreaterOrEqual(t, time.Since(start), delay, "wrong password is throttled")
}

func TestSubmitRentBadPasswordHonorsCancellation(t *testing.T) {
	store := repository.NewMemStore()
	b := NewBooking(store, store, []string{"A1b2"}, time.Hour, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err := b.SubmitRent(ctx, rentReq(func(r *RentRequest) { r.Password = "wrong" }))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestSubmitRentConflict(t *testing.T) {
	b, _ := newTestBooking(t)
	ctx := context.Background()

	_, err := b.SubmitRent(ctx, rentReq(nil))
	require.NoError(t, err)

	// Second booking overlaps on 第一節 only; the error names just that slot.
	_, err = b.SubmitRent(ctx, rentReq(func(r *RentRequest) {
		r.Phone = "0987654321"
		r.Slots = []string{"第一節", "第二節"}
	}))
	var conflict *ConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, "K001", conflict.KeyID)
	assert.Equal(t, []string{"第一節"}, conflict.Slots)

	// Same slots on a different date or key are fine.
	_, err = b.SubmitRent(ctx, rentReq(func(r *RentRequest) { r.Date = "2024-02-13" }))
	assert.NoError(t, err)
	_, err = b.SubmitRent(ctx, rentReq(func(r *RentRequest) { r.KeyID = "K002" }))
	assert.NoError(t, err)
}

func TestReturnedLeaseFreesItsSlots(t *testing.T) {
	// Full lifecycle scenario: book, approve, return, rebook the freed slot.
	b, _ := newTestBooking(t)
	ctx := context.Background()

	_, err := b.SubmitRent(ctx, rentReq(nil))
	require.NoError(t, err)

	_, err = b.AdminUpdateStatus(ctx, "K001", "0912345678", "2024-02-12", "CHECKED_OUT")
	require.NoError(t, err)

	lease, err := b.AdminUpdateStatus(ctx, "K001", "0912345678", "2024-02-12", "RETURNED")
	require.NoError(t, err)
	require.NotNil(t, lease.ReturnedAt, "terminal return stamps the actual return time")

	// 第一節 is free again for the same key and date.
	again, err := b.SubmitRent(ctx, rentReq(func(r *RentRequest) { r.Phone = "0955555555" }))
	require.NoError(t, err)
	assert.Equal(t, model.StatusPendingReview, again.Status)

	assertDisjointActiveSlots(t, b, "K001", "2024-02-12")
}

func TestRebookingAfterReturnIsReachableByAdmin(t *testing.T) {
	// Same member rents the same key and date again after a completed
	// return.  The frozen lease must not shadow the new one when the
	// administrator looks it up by the same triple.
	b, _ := newTestBooking(t)
	ctx := context.Background()

	_, err := b.SubmitRent(ctx, rentReq(nil))
	require.NoError(t, err)
	_, err = b.AdminUpdateStatus(ctx, "K001", "0912345678", "2024-02-12", "RETURNED")
	require.NoError(t, err)

	again, err := b.SubmitRent(ctx, rentReq(nil))
	require.NoError(t, err)

	lease, err := b.AdminUpdateStatus(ctx, "K001", "0912345678", "2024-02-12", "CHECKED_OUT")
	require.NoError(t, err)
	assert.Equal(t, again.ID, lease.ID)
	assert.Equal(t, model.StatusCheckedOut, lease.Status)

	// Once the rebooking is returned too, the triple is frozen again.
	_, err = b.AdminUpdateStatus(ctx, "K001", "0912345678", "2024-02-12", "RETURNED")
	require.NoError(t, err)
	_, err = b.AdminUpdateStatus(ctx, "K001", "0912345678", "2024-02-12", "CHECKED_OUT")
	assert.ErrorIs(t, err, ErrFrozen)
}

func TestRejectedLeaseStillHoldsItsSlots(t *testing.T) {
	b, _ := newTestBooking(t)
	ctx := context.Background()

	_, err := b.SubmitRent(ctx, rentReq(nil))
	require.NoError(t, err)
	_, err = b.AdminUpdateStatus(ctx, "K001", "0912345678", "2024-02-12", "REJECTED")
	require.NoError(t, err)

	// Rejection alone does not free the slot; every non-RETURNED lease
	// stays in the conflict set.
	_, err = b.SubmitRent(ctx, rentReq(func(r *RentRequest) { r.Phone = "0955555555" }))
	var conflict *ConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, []string{"第一節"}, conflict.Slots)

	// Moving the rejected lease to RETURNED releases the slot.
	_, err = b.AdminUpdateStatus(ctx, "K001", "0912345678", "2024-02-12", "RETURNED")
	require.NoError(t, err)
	_, err = b.SubmitRent(ctx, rentReq(func(r *RentRequest) { r.Phone = "0955555555" }))
	assert.NoError(t, err)
	assertDisjointActiveSlots(t, b, "K001", "2024-02-12")
}

func TestSubmitReturn(t *testing.T) {
	b, _ := newTestBooking(t)
	ctx := context.Background()

	_, err := b.SubmitRent(ctx, rentReq(nil))
	require.NoError(t, err)

	ret := ReturnRequest{Phone: "0912345678", KeyID: "K001", Date: "2024-02-12"}

	// Not checked out yet: the lease is invisible to returns.
	_, err = b.SubmitReturn(ctx, ret)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = b.AdminUpdateStatus(ctx, "K001", "0912345678", "2024-02-12", "CHECKED_OUT")
	require.NoError(t, err)

	lease, err := b.SubmitReturn(ctx, ret)
	require.NoError(t, err)
	assert.Equal(t, model.StatusPendingReturn, lease.Status)

	// A second return attempt no longer matches a checked-out lease.
	_, err = b.SubmitReturn(ctx, ret)
	assert.ErrorIs(t, err, ErrNotFound)

	// Wrong phone never matches.
	_, err = b.SubmitReturn(ctx, ReturnRequest{Phone: "0900000000", KeyID: "K001", Date: "2024-02-12"})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestAdminUpdateStatus(t *testing.T) {
	b, _ := newTestBooking(t)
	ctx := context.Background()

	_, err := b.SubmitRent(ctx, rentReq(nil))
	require.NoError(t, err)

	t.Run("unknown status", func(t *testing.T) {
		_, err := b.AdminUpdateStatus(ctx, "K001", "0912345678", "2024-02-12", "LOST")
		assert.ErrorIs(t, err, ErrValidation)
	})
	t.Run("no matching lease", func(t *testing.T) {
		_, err := b.AdminUpdateStatus(ctx, "K009", "0912345678", "2024-02-12", "CHECKED_OUT")
		assert.ErrorIs(t, err, ErrNotFound)
	})
	t.Run("returned lease is frozen", func(t *testing.T) {
		_, err := b.AdminUpdateStatus(ctx, "K001", "0912345678", "2024-02-12", "RETURNED")
		require.NoError(t, err)
		for _, target := range []string{"CHECKED_OUT", "PENDING_REVIEW", "RETURNED", "REJECTED"} {
			_, err := b.AdminUpdateStatus(ctx, "K001", "0912345678", "2024-02-12", target)
			assert.ErrorIs(t, err, ErrFrozen, "target %s must not thaw a returned lease", target)
		}
	})
}

func TestAdminReturnStampsInjectedClock(t *testing.T) {
	store := repository.NewMemStore()
	b := NewBooking(store, store, []string{"A1b2"}, 0, nil)
	fixed := time.Date(2024, 2, 12, 16, 5, 0, 0, time.UTC)
	b.now = func() time.Time { return fixed }

	ctx := context.Background()
	_, err := b.SubmitRent(ctx, rentReq(nil))
	require.NoError(t, err)

	lease, err := b.AdminUpdateStatus(ctx, "K001", "0912345678", "2024-02-12", "RETURNED")
	require.NoError(t, err)
	require.NotNil(t, lease.ReturnedAt)
	assert.True(t, lease.ReturnedAt.Equal(fixed))
}

func TestReplaceAndListKeys(t *testing.T) {
	b, _ := newTestBooking(t)
	ctx := context.Background()

	kept, err := b.ReplaceKeys(ctx, []KeyEntry{
		{KeyID: "K001", Label: "大門"},
		{KeyID: "  ", Label: "blank id is dropped"},
		{KeyID: "K002", Label: "會議室", ImageURL: "https://img.example.com/k002.png"},
		{KeyID: "K001", Label: "duplicate is dropped"},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, kept)

	keys, err := b.ListKeys(ctx)
	require.NoError(t, err)
	require.Len(t, keys, 2)
	assert.Equal(t, "K001", keys[0].KeyID)
	assert.Equal(t, "K002", keys[1].KeyID)
	require.NotNil(t, keys[1].ImageURL)
	assert.Equal(t, "https://img.example.com/k002.png", *keys[1].ImageURL)

	// Replacing again wipes the previous catalog.
	kept, err = b.ReplaceKeys(ctx, []KeyEntry{{KeyID: "K010", Label: "後門"}})
	require.NoError(t, err)
	assert.Equal(t, 1, kept)
	keys, err = b.ListKeys(ctx)
	require.NoError(t, err)
	require.Len(t, keys, 1)
	assert.Equal(t, "K010", keys[0].KeyID)
}

func TestListLeasesValidation(t *testing.T) {
	b, _ := newTestBooking(t)
	_, err := b.ListLeases(context.Background(), "", "")
	assert.ErrorIs(t, err, ErrValidation)
	_, err = b.ListLeases(context.Background(), "K001", "today")
	assert.ErrorIs(t, err, ErrValidation)
}

type recordingPublisher struct {
	requested []uint64
	returned  []uint64
}

func (p *recordingPublisher) LeaseRequested(_ context.Context, l *model.Lease) {
	p.requested = append(p.requested, l.ID)
}
func (p *recordingPublisher) LeaseReturned(_ context.Context, l *model.Lease) {
	p.returned = append(p.returned, l.ID)
}

func TestLifecycleEventsPublished(t *testing.T) {
	store := repository.NewMemStore()
	pub := &recordingPublisher{}
	b := NewBooking(store, store, []string{"A1b2"}, 0, pub)
	ctx := context.Background()

	lease, err := b.SubmitRent(ctx, rentReq(nil))
	require.NoError(t, err)
	assert.Equal(t, []uint64{lease.ID}, pub.requested)

	_, err = b.AdminUpdateStatus(ctx, "K001", "0912345678", "2024-02-12", "CHECKED_OUT")
	require.NoError(t, err)
	assert.Empty(t, pub.returned, "only terminal returns publish")

	_, err = b.AdminUpdateStatus(ctx, "K001", "0912345678", "2024-02-12", "RETURNED")
	require.NoError(t, err)
	assert.Equal(t, []uint64{lease.ID}, pub.returned)
}

// assertDisjointActiveSlots checks the core invariant: slot-holding leases
// on the same key and date never share a slot.
func assertDisjointActiveSlots(t *testing.T, b *Booking, keyID, date string) {
	t.Helper()
	leases, err := b.ListLeases(context.Background(), keyID, date)
	require.NoError(t, err)
	seen := make(map[string]uint64)
	for _, l := range leases {
		if !l.Status.Holding() {
			continue
		}
		for _, s := range l.Slots {
			if other, dup := seen[s]; dup {
				t.Fatalf("slot %s held by leases %d and %d on %s %s", s, other, l.ID, keyID, date)
			}
			seen[s] = l.ID
		}
	}
}
