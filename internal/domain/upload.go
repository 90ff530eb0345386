package domain

import "time"

// Upload records the metadata of one ingested file. The bytes themselves are
// never stored, only their SHA-256 fingerprint and length. Rows are immutable
// once written and disappear only through the owning user's cascade delete.
type Upload struct {
	ID        string    `json:"id"`
	UserID    string    `json:"-"`
	Filename  string    `json:"filename"`
	Mimetype  string    `json:"mimetype"`
	Bytes     int64     `json:"bytes"`
	SHA256    string    `json:"sha256"`
	CreatedAt time.Time `json:"created_at"`
}
