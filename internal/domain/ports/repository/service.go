package repository

import (
	"context"

	"billing-lifecycle/internal/domain/model"
)

// ServiceRepository is the port for billed services. The core only flips
// Status; every other field is written by surfaces outside this module.
type ServiceRepository interface {
	Save(ctx context.Context, tx Tx, s *model.Service) error
	FindByID(ctx context.Context, tx Tx, id string) (*model.Service, error)
	// ListBillable returns services that take part in renewal evaluation:
	// every non-cancelled service regardless of cycle.
	ListBillable(ctx context.Context, tx Tx) ([]*model.Service, error)
	UpdateStatus(ctx context.Context, tx Tx, id string, status model.ServiceStatus) error
}
