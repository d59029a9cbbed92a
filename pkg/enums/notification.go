package enums

import "fmt"

// NotificationType maps to the notification_type enum in Postgres.
type NotificationType string

const (
	NotificationTypePaymentVerified    NotificationType = "payment_verified"
	NotificationTypePaymentRejected    NotificationType = "payment_rejected"
	NotificationTypeOrderUpdate        NotificationType = "order_update"
	NotificationTypeOrderFailed        NotificationType = "order_failed"
	NotificationTypePayoutReleased     NotificationType = "payout_released"
	NotificationTypeSystemAnnouncement NotificationType = "system_announcement"
)

var validNotificationTypes = []NotificationType{
	NotificationTypePaymentVerified,
	NotificationTypePaymentRejected,
	NotificationTypeOrderUpdate,
	NotificationTypeOrderFailed,
	NotificationTypePayoutReleased,
	NotificationTypeSystemAnnouncement,
}

// IsValid checks whether the given type matches the canonical enum.
func (n NotificationType) IsValid() bool {
	for _, candidate := range validNotificationTypes {
		if candidate == n {
			return true
		}
	}
	return false
}

// ParseNotificationType converts raw strings into NotificationType.
func ParseNotificationType(value string) (NotificationType, error) {
	for _, candidate := range validNotificationTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid notification type %q", value)
}
