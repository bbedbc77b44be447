package repository

import (
	"context"      // context allows passing deadlines and cancellation signals to DB operations
	"database/sql" // sql provides generic database operations and drivers

	"github.com/chenwt/key-reservation/internal/model"
)

// KeyRepo encapsulates all database queries related to the key catalog.
// The catalog is small and administrator-maintained; edits arrive as a
// wholesale replacement rather than incremental diffs.
type KeyRepo struct {
	db *sql.DB // db is the underlying database connection pool
}

// NewKeyRepo constructs a KeyRepo with the provided DB handle.
func NewKeyRepo(db *sql.DB) *KeyRepo {
	return &KeyRepo{db: db}
}

// List returns the catalog in stored order.
func (r *KeyRepo) List(ctx context.Context) ([]model.Key, error) {
	const q = `SELECT id, key_id, label, image_url, position, created_at
		FROM keys_catalog ORDER BY position, id`
	rows, err := r.db.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	keys := make([]model.Key, 0)
	for rows.Next() {
		var k model.Key
		var img sql.NullString
		if err := rows.Scan(&k.ID, &k.KeyID, &k.Label, &img, &k.Position, &k.CreatedAt); err != nil {
			return nil, err
		}
		if img.Valid {
			v := img.String
			k.ImageURL = &v
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

// ReplaceAll clears the catalog and bulk-inserts the given entries inside a
// single transaction.  Position is assigned from slice order.  It returns
// the number of rows inserted.  Callers are expected to have dropped
// blank-named entries already; no referential check is made against
// existing leases, so removing a key leaves its leases orphaned.
func (r *KeyRepo) ReplaceAll(ctx context.Context, keys []model.Key) (int, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	if _, err := tx.ExecContext(ctx, `DELETE FROM keys_catalog`); err != nil {
		return 0, err
	}
	if len(keys) > 0 {
		query := `INSERT INTO keys_catalog (key_id, label, image_url, position) VALUES `
		args := make([]interface{}, 0, len(keys)*4)
		for i, k := range keys {
			if i > 0 {
				query += ","
			}
			query += "(?, ?, ?, ?)"
			var img interface{}
			if k.ImageURL != nil {
				img = *k.ImageURL
			}
			args = append(args, k.KeyID, k.Label, img, i)
		}
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return 0, err
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	committed = true
	return len(keys), nil
}
