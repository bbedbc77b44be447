package model

import "time"

// Status is the lifecycle state of a lease.  The set is closed: free-form
// status strings are rejected at the API boundary and transitions are
// validated centrally by CanTransition rather than at each call site.
type Status string

const (
	StatusPendingReview Status = "PENDING_REVIEW" // created by a member, awaiting admin approval
	StatusCheckedOut    Status = "CHECKED_OUT"    // approved, key is physically out
	StatusPendingReturn Status = "PENDING_RETURN" // member reported the key back, awaiting admin confirmation
	StatusReturned      Status = "RETURNED"       // terminal; returned_at is stamped and the lease is frozen
	StatusRejected      Status = "REJECTED"       // admin declined the request
)

// ParseStatus maps a wire string onto the closed status set.
func ParseStatus(s string) (Status, bool) {
	switch Status(s) {
	case StatusPendingReview, StatusCheckedOut, StatusPendingReturn, StatusReturned, StatusRejected:
		return Status(s), true
	}
	return "", false
}

// Terminal reports whether the status freezes the lease.  Only RETURNED is
// terminal; a rejected lease may still be revisited by the administrator.
func (s Status) Terminal() bool { return s == StatusReturned }

// Holding reports whether a lease in this status still occupies its slots
// for conflict purposes.  Only RETURNED frees them; a rejected lease keeps
// blocking its slots until the administrator moves it to RETURNED.
func (s Status) Holding() bool { return s != StatusReturned }

// Actor identifies who is attempting a transition.
type Actor string

const (
	ActorMember Actor = "MEMBER"
	ActorAdmin  Actor = "ADMIN"
)

// CanTransition is the single transition table for the lease lifecycle.
// Members may only report a checked-out key back.  The administrator may
// move a lease between any states except away from RETURNED, which is
// terminal and immutable.
func CanTransition(from, to Status, actor Actor) bool {
	if from.Terminal() {
		return false
	}
	switch actor {
	case ActorMember:
		return from == StatusCheckedOut && to == StatusPendingReturn
	case ActorAdmin:
		return true
	}
	return false
}

// Lease is one booking of one key for one calendar date across one or more
// named time slots.  Slots live in the lease_slots child table and are
// carried here as a slice in schedule order.
//
// Fields:
//  ID         – primary key identifier.
//  KeyID      – public identifier of the booked key.  Not a foreign key:
//               a lease may outlive its catalog entry.
//  RenterName – name supplied by the member.
//  Phone      – exactly ten digits; also the member's return credential.
//  Email      – contact address.
//  LeaseDate  – calendar date of the booking (midnight UTC).
//  Slots      – booked slot names, drawn from the fixed daily schedule.
//  Status     – lifecycle state, see Status.
//  CreatedAt  – creation timestamp.
//  ReturnedAt – stamped when the lease reaches RETURNED (nullable).
type Lease struct {
	ID         uint64     // leases.id
	KeyID      string     // leases.key_id
	RenterName string     // leases.renter_name
	Phone      string     // leases.phone
	Email      string     // leases.email
	LeaseDate  time.Time  // leases.lease_date
	Slots      []string   // lease_slots.slot, in schedule order
	Status     Status     // leases.status
	CreatedAt  time.Time  // leases.created_at
	ReturnedAt *time.Time // leases.returned_at (nullable)
}

// Weekday returns the localized weekday label for the lease date.
func (l *Lease) Weekday() string { return weekdayLabels[l.LeaseDate.Weekday()] }

var weekdayLabels = [7]string{"星期日", "星期一", "星期二", "星期三", "星期四", "星期五", "星期六"}
