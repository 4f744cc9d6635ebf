package notification

// NotificationData carries the recipient and template data for a single notification.
type NotificationData struct {
	To      string            // Recipient identifier (e.g., email address)
	Subject string            // Optional: subject override for channels that have one
	Body    string            // Optional: plain body used by channels without templates
	Data    map[string]string // Template data (e.g., the passcode)
}

// Notifier delivers a rendered notification over one channel.
type Notifier interface {
	Send(noticeType NoticeType, notification NotificationData, template NoticeTemplate) error
}
