package enums

import "fmt"

// NotificationVariant maps to the display tone of a notification.
type NotificationVariant string

const (
	NotificationVariantInfo    NotificationVariant = "info"
	NotificationVariantWarning NotificationVariant = "warning"
	NotificationVariantDanger  NotificationVariant = "danger"
	NotificationVariantSuccess NotificationVariant = "success"
)

var validNotificationVariants = []NotificationVariant{
	NotificationVariantInfo,
	NotificationVariantWarning,
	NotificationVariantDanger,
	NotificationVariantSuccess,
}

// IsValid checks whether the given variant matches the canonical enum.
func (n NotificationVariant) IsValid() bool {
	for _, candidate := range validNotificationVariants {
		if candidate == n {
			return true
		}
	}
	return false
}

// ParseNotificationVariant converts raw strings into NotificationVariant.
func ParseNotificationVariant(value string) (NotificationVariant, error) {
	for _, candidate := range validNotificationVariants {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid notification variant %q", value)
}

// NotificationType names the domain event a notification reports on.
type NotificationType string

const (
	NotificationTypeOrder   NotificationType = "order"
	NotificationTypePayment NotificationType = "payment"
	NotificationTypeStock   NotificationType = "stock"
)

var validNotificationTypes = []NotificationType{
	NotificationTypeOrder,
	NotificationTypePayment,
	NotificationTypeStock,
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
