// Package domain defines the persistence models for the request ledger and
// the value types shared by the services, the HTTP handlers and the chat
// command surface.
package domain

import "time"

// Kind classifies a ledger record.
type Kind string

const (
	KindMovie        Kind = "movie"
	KindSeries       Kind = "series"
	KindNotification Kind = "notification"
)

// Valid reports whether k is one of the known kinds.
func (k Kind) Valid() bool {
	switch k {
	case KindMovie, KindSeries, KindNotification:
		return true
	}
	return false
}

// Status is the outcome stored with a ledger record. The string values are
// the ones already present in existing requests.db files and must not change.
type Status string

const (
	StatusAlreadyExists Status = "Already Exists"
	StatusRequested     Status = "Requested"
	StatusFailed        Status = "Failed"
	StatusDownloaded    Status = "Downloaded"
)

// RequestRecord is one immutable row of the append-only request ledger.
//
// Fields:
//   - ID: autoincrement primary key, assigned by the database at insert.
//   - User: requester for movie/series rows, notification target otherwise.
//   - Kind: movie, series or notification (column request_type).
//   - Title: the title exactly as requested or reported.
//   - Status: outcome of the request.
//   - CreatedAt: insert time, informational only.
type RequestRecord struct {
	ID        uint      `json:"id"           gorm:"primaryKey;autoIncrement"`
	User      string    `json:"user"         gorm:"type:TEXT;index"`
	Kind      Kind      `json:"request_type" gorm:"column:request_type;type:TEXT"`
	Title     string    `json:"title"        gorm:"type:TEXT"`
	Status    Status    `json:"status"       gorm:"type:TEXT"`
	CreatedAt time.Time `json:"created_at"`
}

// TableName returns the database table name for RequestRecord.
func (RequestRecord) TableName() string { return "requests" }
