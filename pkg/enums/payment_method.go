package enums

import "fmt"

// PaymentMethod describes how a buyer intends to settle an order. Mobile money
// methods carry the provider carrier code, cash settles at handover.
type PaymentMethod string

const (
	PaymentMethodOrangeCM   PaymentMethod = "orange_cm"
	PaymentMethodMTNMomoCMR PaymentMethod = "mtn_momo_cmr"
	PaymentMethodCash       PaymentMethod = "cash"
)

var validPaymentMethods = []PaymentMethod{
	PaymentMethodOrangeCM,
	PaymentMethodMTNMomoCMR,
	PaymentMethodCash,
}

// String implements fmt.Stringer.
func (p PaymentMethod) String() string {
	return string(p)
}

// IsValid reports whether the value is a known PaymentMethod.
func (p PaymentMethod) IsValid() bool {
	for _, candidate := range validPaymentMethods {
		if candidate == p {
			return true
		}
	}
	return false
}

// IsCash reports whether the method settles outside the gateway.
func (p PaymentMethod) IsCash() bool {
	return p == PaymentMethodCash
}

// CarrierCode returns the provider identifier sent on deposit requests.
func (p PaymentMethod) CarrierCode() string {
	switch p {
	case PaymentMethodOrangeCM:
		return "ORANGE_CM"
	case PaymentMethodMTNMomoCMR:
		return "MTN_MOMO_CMR"
	}
	return ""
}

// ParsePaymentMethod converts raw input into a PaymentMethod.
func ParsePaymentMethod(value string) (PaymentMethod, error) {
	for _, candidate := range validPaymentMethods {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid payment method %q", value)
}
