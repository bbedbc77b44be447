// Package queue defines message payloads exchanged over the message broker
// plus the publisher and the audit-log consumer.
package queue

// Queue names used on the broker.  Both carry LeaseEvent payloads.
const (
	LeaseRequestedQueue = "lease.requested"
	LeaseReturnedQueue  = "lease.returned"
)

// LeaseEvent is published when a lease is created or reaches RETURNED.  It
// carries enough for downstream consumers to log or notify without
// querying the primary database.
type LeaseEvent struct {
	LeaseID    uint64   `json:"lease_id"`
	KeyID      string   `json:"key_id"`
	RenterName string   `json:"renter_name"`
	Phone      string   `json:"phone"`
	LeaseDate  string   `json:"lease_date"`
	Slots      []string `json:"slots"`
	Status     string   `json:"status"`
	OccurredAt string   `json:"occurred_at"`
}
