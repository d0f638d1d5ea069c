// Package notify delivers committed workflow events to email and MQTT sinks.
package notify

import (
	"context"

	"github.com/Enterprise-CMCS/managed-care-review-sub010/internal/domain"
)

type Notifier interface {
	Notify(ctx context.Context, evt domain.Event)
}

// Multi fans an event out to every notifier in order.
type Multi []Notifier

func (m Multi) Notify(ctx context.Context, evt domain.Event) {
	for _, n := range m {
		n.Notify(ctx, evt)
	}
}
