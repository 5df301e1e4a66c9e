package enums

import "fmt"

// DeliveryStatus tracks the lifecycle of a delivery.
type DeliveryStatus string

const (
	DeliveryStatusNotStarted DeliveryStatus = "notstarted"
	DeliveryStatusStarted    DeliveryStatus = "started"
	DeliveryStatusCompleted  DeliveryStatus = "completed"
	DeliveryStatusCanceled   DeliveryStatus = "canceled"
)

var validDeliveryStatuses = []DeliveryStatus{
	DeliveryStatusNotStarted,
	DeliveryStatusStarted,
	DeliveryStatusCompleted,
	DeliveryStatusCanceled,
}

// String implements fmt.Stringer.
func (d DeliveryStatus) String() string {
	return string(d)
}

// IsValid reports whether the value is a known DeliveryStatus.
func (d DeliveryStatus) IsValid() bool {
	for _, candidate := range validDeliveryStatuses {
		if candidate == d {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further transitions are permitted.
func (d DeliveryStatus) IsTerminal() bool {
	switch d {
	case DeliveryStatusCompleted, DeliveryStatusCanceled:
		return true
	}
	return false
}

// CanTransitionTo reports whether the transition to next is permitted.
func (d DeliveryStatus) CanTransitionTo(next DeliveryStatus) bool {
	if !next.IsValid() || d.IsTerminal() || d == next {
		return false
	}
	switch d {
	case DeliveryStatusNotStarted:
		return next == DeliveryStatusStarted || next == DeliveryStatusCompleted || next == DeliveryStatusCanceled
	case DeliveryStatusStarted:
		return next == DeliveryStatusCompleted || next == DeliveryStatusCanceled
	}
	return false
}

// ParseDeliveryStatus converts raw input into a DeliveryStatus.
func ParseDeliveryStatus(value string) (DeliveryStatus, error) {
	for _, candidate := range validDeliveryStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid delivery status %q", value)
}

// DeliveryPriority ranks how urgently a delivery should be dispatched.
type DeliveryPriority string

const (
	DeliveryPriorityNormal DeliveryPriority = "normal"
	DeliveryPriorityUrgent DeliveryPriority = "urgent"
)

var validDeliveryPriorities = []DeliveryPriority{
	DeliveryPriorityNormal,
	DeliveryPriorityUrgent,
}

// String implements fmt.Stringer.
func (d DeliveryPriority) String() string {
	return string(d)
}

// IsValid reports whether the value is a known DeliveryPriority.
func (d DeliveryPriority) IsValid() bool {
	for _, candidate := range validDeliveryPriorities {
		if candidate == d {
			return true
		}
	}
	return false
}

// ParseDeliveryPriority converts raw input into a DeliveryPriority.
func ParseDeliveryPriority(value string) (DeliveryPriority, error) {
	for _, candidate := range validDeliveryPriorities {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid delivery priority %q", value)
}
