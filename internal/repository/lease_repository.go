package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/chenwt/key-reservation/internal/model"
)

// LeaseRepo provides persistence for leases and their slots.  A lease groups
// one or more daily time slots booked on a single key for a single date;
// the slots live in the lease_slots child table.  All timestamp fields are
// stored in UTC and lease_date carries only the calendar date.
type LeaseRepo struct {
	db *sql.DB
}

// NewLeaseRepo returns a new LeaseRepo bound to the given database.
func NewLeaseRepo(db *sql.DB) *LeaseRepo {
	return &LeaseRepo{db: db}
}

// CreateIfFree atomically checks the requested slots against every
// slot-holding lease on the same key and date, and inserts the lease only
// when no overlap exists.  The SELECT ... FOR UPDATE locks the competing
// lease rows for the duration of the transaction, so two concurrent
// requests for the same key and date serialize here instead of both passing
// the check and double-booking.
//
// On success the lease's ID and CreatedAt are populated and the returned
// overlap is nil.  When the requested slots collide, the overlapping slot
// names are returned in schedule order and nothing is written.
func (r *LeaseRepo) CreateIfFree(ctx context.Context, l *model.Lease) ([]string, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	const qHeld = `SELECT ls.slot
		FROM leases l
		JOIN lease_slots ls ON ls.lease_id = l.id
		WHERE l.key_id = ? AND l.lease_date = ? AND l.status <> ?
		FOR UPDATE`
	rows, err := tx.QueryContext(ctx, qHeld, l.KeyID, l.LeaseDate,
		string(model.StatusReturned))
	if err != nil {
		return nil, err
	}
	var held []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			rows.Close()
			return nil, err
		}
		held = append(held, s)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if overlap := model.Overlap(l.Slots, held); len(overlap) > 0 {
		return overlap, nil
	}

	const qInsert = `INSERT INTO leases (key_id, renter_name, phone, email, lease_date, status)
		VALUES (?, ?, ?, ?, ?, ?)`
	res, err := tx.ExecContext(ctx, qInsert, l.KeyID, l.RenterName, l.Phone, l.Email,
		l.LeaseDate, string(l.Status))
	if err != nil {
		return nil, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}
	l.ID = uint64(id)

	if len(l.Slots) > 0 {
		query := `INSERT INTO lease_slots (lease_id, slot) VALUES `
		args := make([]interface{}, 0, len(l.Slots)*2)
		for i, s := range l.Slots {
			if i > 0 {
				query += ","
			}
			query += "(?, ?)"
			args = append(args, l.ID, s)
		}
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return nil, err
		}
	}

	// Query back the row so the caller sees the DB-assigned timestamp.
	const qSelect = `SELECT created_at FROM leases WHERE id = ?`
	if err := tx.QueryRowContext(ctx, qSelect, l.ID).Scan(&l.CreatedAt); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	committed = true
	return nil, nil
}

// ListByKey returns all leases for a key in insertion order, optionally
// filtered to a single date, with their slots attached.
func (r *LeaseRepo) ListByKey(ctx context.Context, keyID string, date *time.Time) ([]model.Lease, error) {
	q := `SELECT id, key_id, renter_name, phone, email, lease_date, status, created_at, returned_at
		FROM leases WHERE key_id = ?`
	args := []interface{}{keyID}
	if date != nil {
		q += ` AND lease_date = ?`
		args = append(args, *date)
	}
	q += ` ORDER BY id`

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	leases := make([]model.Lease, 0)
	ids := make([]interface{}, 0)
	for rows.Next() {
		var l model.Lease
		var status string
		var returned sql.NullTime
		if err := rows.Scan(&l.ID, &l.KeyID, &l.RenterName, &l.Phone, &l.Email,
			&l.LeaseDate, &status, &l.CreatedAt, &returned); err != nil {
			return nil, err
		}
		l.Status = model.Status(status)
		if returned.Valid {
			t := returned.Time
			l.ReturnedAt = &t
		}
		leases = append(leases, l)
		ids = append(ids, l.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(leases) == 0 {
		return leases, nil
	}

	// Attach slots in one query.
	q = `SELECT lease_id, slot FROM lease_slots WHERE lease_id IN (?`
	for i := 1; i < len(ids); i++ {
		q += ",?"
	}
	q += `) ORDER BY id`
	srows, err := r.db.QueryContext(ctx, q, ids...)
	if err != nil {
		return nil, err
	}
	defer srows.Close()

	byID := make(map[uint64]*model.Lease, len(leases))
	for i := range leases {
		byID[leases[i].ID] = &leases[i]
	}
	for srows.Next() {
		var leaseID uint64
		var slot string
		if err := srows.Scan(&leaseID, &slot); err != nil {
			return nil, err
		}
		if l, ok := byID[leaseID]; ok {
			l.Slots = append(l.Slots, slot)
		}
	}
	return leases, srows.Err()
}

// FindByOwner locates the first lease matching the (key, phone, date)
// triple, optionally restricted to a status.  When several leases match,
// non-terminal ones are preferred over RETURNED ones so a frozen lease
// cannot shadow a rebooking on the same triple; within each group the
// oldest wins.  It returns ErrLeaseNotFound when nothing matches.
func (r *LeaseRepo) FindByOwner(ctx context.Context, keyID, phone string, date time.Time, status *model.Status) (*model.Lease, error) {
	q := `SELECT id, key_id, renter_name, phone, email, lease_date, status, created_at, returned_at
		FROM leases WHERE key_id = ? AND phone = ? AND lease_date = ?`
	args := []interface{}{keyID, phone, date}
	if status != nil {
		q += ` AND status = ?`
		args = append(args, string(*status))
	}
	q += ` ORDER BY status = 'RETURNED', id LIMIT 1`

	var l model.Lease
	var st string
	var returned sql.NullTime
	err := r.db.QueryRowContext(ctx, q, args...).Scan(&l.ID, &l.KeyID, &l.RenterName,
		&l.Phone, &l.Email, &l.LeaseDate, &st, &l.CreatedAt, &returned)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrLeaseNotFound
		}
		return nil, err
	}
	l.Status = model.Status(st)
	if returned.Valid {
		t := returned.Time
		l.ReturnedAt = &t
	}

	const qSlots = `SELECT slot FROM lease_slots WHERE lease_id = ? ORDER BY id`
	rows, err := r.db.QueryContext(ctx, qSlots, l.ID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		l.Slots = append(l.Slots, s)
	}
	return &l, rows.Err()
}

// UpdateStatus moves a lease from an expected current status to a new one.
// The WHERE clause re-checks the current status so a lease changed by a
// concurrent request is not silently overwritten; in that case
// ErrStaleLease is returned.  returnedAt is stamped only when provided
// (i.e. on the transition to RETURNED).
func (r *LeaseRepo) UpdateStatus(ctx context.Context, id uint64, from, to model.Status, returnedAt *time.Time) error {
	var res sql.Result
	var err error
	if returnedAt != nil {
		const q = `UPDATE leases SET status = ?, returned_at = ? WHERE id = ? AND status = ?`
		res, err = r.db.ExecContext(ctx, q, string(to), returnedAt.UTC(), id, string(from))
	} else {
		const q = `UPDATE leases SET status = ? WHERE id = ? AND status = ?`
		res, err = r.db.ExecContext(ctx, q, string(to), id, string(from))
	}
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrStaleLease
	}
	return nil
}
