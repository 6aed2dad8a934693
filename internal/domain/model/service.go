package model

import (
	"time"

	"github.com/shopspring/decimal"

	"billing-lifecycle/internal/domain"
)

type BillingCycle string

const (
	CycleOneTime      BillingCycle = "one_time"
	CycleMonthly      BillingCycle = "monthly"
	CycleSemiannually BillingCycle = "semiannually"
	CycleAnnually     BillingCycle = "annually"
	CycleBiennially   BillingCycle = "biennially"
	CycleTriennially  BillingCycle = "triennially"
	CycleCustom       BillingCycle = "custom"
)

type ServiceStatus string

const (
	ServiceStatusActive             ServiceStatus = "active"
	ServiceStatusPendingPayment     ServiceStatus = "pending_payment"
	ServiceStatusGracePeriodExpired ServiceStatus = "grace_period_expired"
	ServiceStatusCancelled          ServiceStatus = "cancelled"
)

// Service is a billed service owned by a client. Everything except Status is
// mutated by administrative surfaces outside this core; Status is flipped by
// the renewal orchestrator in response to window classification.
type Service struct {
	ID          string // UUID
	ClientEmail string // attribution, supplied by the identity provider
	ClientName  string

	Cycle      BillingCycle
	CycleStart time.Time
	// ExplicitExpiration applies only to one-time services; for any recurring
	// cycle the expiration is derived from CycleStart and this field is ignored.
	ExplicitExpiration *time.Time

	Amount   decimal.Decimal
	Currency string // ISO 4217

	Status    ServiceStatus
	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewService validates the minimal field set for a billable service.
func NewService(id, clientEmail string, cycle BillingCycle, cycleStart time.Time, amount decimal.Decimal, currency string) (*Service, error) {
	if id == "" || currency == "" {
		return nil, domain.ErrInvalidArgument
	}
	if amount.IsNegative() {
		return nil, domain.ErrInvalidArgument
	}
	now := time.Now()
	return &Service{
		ID:          id,
		ClientEmail: clientEmail,
		Cycle:       cycle,
		CycleStart:  cycleStart,
		Amount:      amount,
		Currency:    currency,
		Status:      ServiceStatusActive,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

// Recurring reports whether the service is subject to cycle-based renewal.
func (s *Service) Recurring() bool {
	switch s.Cycle {
	case CycleOneTime, "":
		return false
	default:
		return true
	}
}
