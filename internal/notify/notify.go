// Package notify delivers vehicle events to external endpoints.
package notify

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Message is one event notification.
type Message struct {
	Title     string    `json:"title"`
	Body      string    `json:"body"`
	ImagePath string    `json:"imagePath,omitempty"`
	Event     string    `json:"event"`
	Count     int       `json:"count"`
	Time      time.Time `json:"time"`
}

// Notifier sends a message to one endpoint. Implementations make a single attempt.
type Notifier interface {
	Send(ctx context.Context, msg Message) error
}

// NewMessage builds the standard message for an event.
func NewMessage(event string, count int, imagePath string, at time.Time) Message {
	return Message{
		Title:     Title(event, count),
		Body:      fmt.Sprintf("Time: %s", at.Format(time.ANSIC)),
		ImagePath: imagePath,
		Event:     event,
		Count:     count,
		Time:      at,
	}
}

// Title returns the human-readable headline for an event.
func Title(event string, count int) string {
	switch event {
	case "ENTER":
		return "Vehicle ENTERED lot"
	case "EXIT":
		return "Vehicle EXITED lot"
	case "INCREASE":
		return fmt.Sprintf("Vehicle count increased to %d", count)
	case "DECREASE":
		return fmt.Sprintf("Vehicle count decreased to %d", count)
	default:
		return fmt.Sprintf("Vehicle event %s", event)
	}
}

// Multi fans a message out to every notifier.
type Multi []Notifier

// Send delivers to all notifiers, even after a failure, and joins the errors.
func (m Multi) Send(ctx context.Context, msg Message) error {
	var errs []error
	for _, n := range m {
		if err := n.Send(ctx, msg); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// NotifierFunc adapts a function to the Notifier interface.
type NotifierFunc func(ctx context.Context, msg Message) error

// Send calls f.
func (f NotifierFunc) Send(ctx context.Context, msg Message) error {
	return f(ctx, msg)
}
