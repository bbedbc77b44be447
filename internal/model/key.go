package model

import "time"

// Key is one bookable physical key in the catalog.  The catalog is
// maintained by the administrator and replaced wholesale; keys are
// never edited in place.
//
// Fields:
//  ID        – primary key identifier.
//  KeyID     – stable public identifier (e.g. "K001").
//  Label     – human readable display label (e.g. "大門").
//  ImageURL  – optional picture of the key or the door it opens.
//  Position  – order of the key within the catalog listing.
//  CreatedAt – creation timestamp.
type Key struct {
	ID        uint64    // keys.id
	KeyID     string    // keys.key_id
	Label     string    // keys.label
	ImageURL  *string   // keys.image_url (nullable)
	Position  uint32    // keys.position
	CreatedAt time.Time // keys.created_at
}
