package domain

// EventDownload is the only webhook event type that triggers a notification.
const EventDownload = "Download"

// Defaults applied to absent or empty webhook fields.
const (
	DefaultEventTitle = "Unknown"
	DefaultEventType  = "Unknown"
	DefaultEventUser  = "System"
)

// DownloadEvent is a parsed inbound webhook payload.
type DownloadEvent struct {
	Title     string `json:"title"`
	EventType string `json:"eventType"`
	User      string `json:"user"`
}

// IsDownload reports whether the event should be recorded and delivered.
func (e DownloadEvent) IsDownload() bool { return e.EventType == EventDownload }
