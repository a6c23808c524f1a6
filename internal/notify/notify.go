// Package notify tells restaurant staff about new public submissions.
package notify

import (
	"context"
	"errors"
	"time"
)

type Kind string

const (
	KindContactMessage Kind = "contact_message"
	KindReservation    Kind = "reservation"
)

// Event describes one new submission.
type Event struct {
	Kind       Kind        `json:"kind"`
	ID         string      `json:"id"`
	Summary    string      `json:"summary"`
	OccurredAt time.Time   `json:"occurredAt"`
	Payload    interface{} `json:"payload,omitempty"`
}

type Notifier interface {
	Notify(ctx context.Context, ev Event) error
}

// Nop drops every event.
type Nop struct{}

func (Nop) Notify(context.Context, Event) error { return nil }

// Multi fans an event out to every notifier and joins their errors.
type Multi []Notifier

func (m Multi) Notify(ctx context.Context, ev Event) error {
	var errs []error
	for _, n := range m {
		if err := n.Notify(ctx, ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
