package recorder

// NotificationType tells the UI what happened after a save-and-run request.
type NotificationType string

// Notification types.
const (
	// NotificationNavigate asks the UI to open the backend URL.
	NotificationNavigate NotificationType = "navigate"
	// NotificationFailed reports that the backend did not become ready.
	NotificationFailed NotificationType = "failed"
)

// Notification is published out of band once a backend start settles.
type Notification struct {
	Type NotificationType `json:"type"`
	// URL is set for NotificationNavigate.
	URL string `json:"url,omitempty"`
	// Error is set for NotificationFailed.
	Error string `json:"error,omitempty"`
}
