package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"
)

// Open connects to MySQL and verifies the connection.
func Open(user, pass, host, port, name string) (*sql.DB, error) {
	auth := user
	if pass != "" {
		auth = fmt.Sprintf("%s:%s", user, pass)
	}
	// parseTime=true -> DATE/DATETIME -> time.Time | loc=UTC keeps times consistent
	dsn := fmt.Sprintf("%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=true&loc=UTC",
		auth, host, port, name)

	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, err
	}

	// Pool settings
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(30 * time.Minute)

	// Ping with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		return nil, err
	}
	return db, nil
}

// schema holds the DDL for the key catalog and the lease store.  utf8mb4 is
// required: slot and key labels contain CJK text.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS keys_catalog (
		id BIGINT UNSIGNED NOT NULL AUTO_INCREMENT,
		key_id VARCHAR(64) NOT NULL,
		label VARCHAR(255) NOT NULL,
		image_url VARCHAR(512) NULL,
		position INT UNSIGNED NOT NULL DEFAULT 0,
		created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY (id),
		UNIQUE KEY uq_keys_key_id (key_id)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS leases (
		id BIGINT UNSIGNED NOT NULL AUTO_INCREMENT,
		key_id VARCHAR(64) NOT NULL,
		renter_name VARCHAR(100) NOT NULL,
		phone CHAR(10) NOT NULL,
		email VARCHAR(40) NOT NULL,
		lease_date DATE NOT NULL,
		status VARCHAR(20) NOT NULL,
		created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
		returned_at DATETIME NULL,
		PRIMARY KEY (id),
		KEY idx_leases_key_date (key_id, lease_date),
		KEY idx_leases_key_phone_date (key_id, phone, lease_date)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS lease_slots (
		id BIGINT UNSIGNED NOT NULL AUTO_INCREMENT,
		lease_id BIGINT UNSIGNED NOT NULL,
		slot VARCHAR(32) NOT NULL,
		PRIMARY KEY (id),
		UNIQUE KEY uq_lease_slot (lease_id, slot),
		CONSTRAINT fk_lease_slots_lease FOREIGN KEY (lease_id)
			REFERENCES leases (id) ON DELETE CASCADE
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
}

// EnsureSchema creates the tables when they do not exist yet.  Statements
// are idempotent so repeated startups are safe.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}
