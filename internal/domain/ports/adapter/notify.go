package adapter

import (
	"context"

	"billing-lifecycle/internal/domain/model"
)

type NotificationKind string

const (
	NotifyRequestCreated   NotificationKind = "request_created"
	NotifyRequestCancelled NotificationKind = "request_cancelled"
	NotifyRequestCompleted NotificationKind = "request_completed"
	NotifyRequestFailed    NotificationKind = "request_failed"
)

// NotificationSink is informed of request lifecycle events. Delivery is
// fire-and-forget: a sink failure must never roll back the state change that
// produced the event.
type NotificationSink interface {
	Notify(ctx context.Context, kind NotificationKind, req *model.PaymentRequest) error
}
