package billing

import (
	"time"

	"github.com/platinummonkey/gatehouse/pkg/limits"
)

// PaymentState represents the lifecycle state of a payment
type PaymentState string

const (
	PaymentStateCreated             PaymentState = "CREATED"
	PaymentStatePaymentMethodChosen PaymentState = "PAYMENT_METHOD_CHOSEN"
	PaymentStateAuthorized          PaymentState = "AUTHORIZED"
	PaymentStatePaid                PaymentState = "PAID"
	PaymentStateCanceled            PaymentState = "CANCELED"
	PaymentStateTimeouted           PaymentState = "TIMEOUTED"
	PaymentStateRefunded            PaymentState = "REFUNDED"
)

// borderTolerance widens a payment's validity interval on both ends
const borderTolerance = time.Second

// Payment buys a service level for an organization over a period
type Payment struct {
	ID             string              `json:"id"`
	OrganizationID string              `json:"organization_id"`
	ServiceLevel   limits.ServiceLevel `json:"service_level"`
	State          PaymentState        `json:"state"`
	Users          int                 `json:"users"`
	ValidFrom      time.Time           `json:"valid_from"`
	ValidUntil     time.Time           `json:"valid_until"`
}

// ActiveAt reports whether the payment is paid and covers at
func (p *Payment) ActiveAt(at time.Time) bool {
	if p.State != PaymentStatePaid {
		return false
	}
	return at.After(p.ValidFrom.Add(-borderTolerance)) && at.Before(p.ValidUntil.Add(borderTolerance))
}

// FreeLimits returns the ceilings of an organization without a payment
func FreeLimits() limits.ServiceLimits {
	return limits.ServiceLimits{
		ServiceLevel:           limits.ServiceLevelFree,
		Users:                  3,
		Projects:               1,
		Collections:            10,
		Documents:              200,
		RulesPerCollection:     1,
		FunctionsPerCollection: 1,
	}
}

// BasicLimits returns the ceilings of the paid plan
func BasicLimits() limits.ServiceLimits {
	return limits.ServiceLimits{
		ServiceLevel:           limits.ServiceLevelBasic,
		Users:                  99,
		Projects:               99,
		Collections:            -1,
		Documents:              -1,
		RulesPerCollection:     -1,
		FunctionsPerCollection: -1,
	}
}

// LimitsFor returns the limits granted by the active payment p, which may be
// nil. A BASIC payment caps users at the number of seats paid for.
func LimitsFor(p *Payment) limits.ServiceLimits {
	if p == nil || p.ServiceLevel != limits.ServiceLevelBasic {
		return FreeLimits()
	}

	l := BasicLimits()
	if p.Users > 0 && p.Users < l.Users {
		l.Users = p.Users
	}
	l.ValidUntil = p.ValidUntil
	return l
}
