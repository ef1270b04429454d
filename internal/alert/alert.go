// Package alert fans a newly accepted report out to a shared channel and to
// every subscriber whose radius covers it.
//
// Delivery is at-most-once and best-effort. Every attempt is classified as
// Delivered, Transient, or Permanent. A Permanent outcome means the
// recipient is unreachable and its subscription is deactivated; Transient
// failures are logged and dropped without retry.
package alert

import (
	"context"
	"errors"

	"github.com/couchcryptid/incident-alert-service/internal/domain"
)

// ErrMisconfiguredChannel is returned when no delivery path is configured at all.
var ErrMisconfiguredChannel = errors.New("no alert delivery channel configured")

// Message is one formatted notification.
type Message struct {
	Report        domain.Report
	DistanceMiles float64 // personalized messages only
	Text          string  // rendered HTML body, user text escaped
}

// Channel delivers a message to one recipient. Implementations wrap
// unreachable-recipient failures with MarkPermanent.
type Channel interface {
	Send(ctx context.Context, recipientID string, msg Message) error
}

// Broadcaster posts a message to a shared channel that every reader sees.
type Broadcaster interface {
	Broadcast(ctx context.Context, msg Message) error
}

// ChannelBroadcaster broadcasts by sending to a fixed recipient, such as a
// Telegram channel id.
type ChannelBroadcaster struct {
	Channel     Channel
	RecipientID string
}

func (b ChannelBroadcaster) Broadcast(ctx context.Context, msg Message) error {
	return b.Channel.Send(ctx, b.RecipientID, msg)
}

// Outcome classifies one delivery attempt.
type Outcome int

const (
	Delivered Outcome = iota
	Transient
	Permanent
)

func (o Outcome) String() string {
	switch o {
	case Delivered:
		return "delivered"
	case Transient:
		return "transient"
	case Permanent:
		return "permanent"
	default:
		return "unknown"
	}
}

type permanentError struct{ err error }

func (e *permanentError) Error() string { return "permanent delivery failure: " + e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

type transientError struct{ err error }

func (e *transientError) Error() string { return "transient delivery failure: " + e.err.Error() }
func (e *transientError) Unwrap() error { return e.err }

// MarkPermanent marks err as "recipient unreachable". A nil err stays nil.
func MarkPermanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// MarkTransient marks err as retryable later. Unmarked errors are treated
// as transient too; the wrapper only documents intent.
func MarkTransient(err error) error {
	if err == nil {
		return nil
	}
	return &transientError{err: err}
}

// Classify maps a Send error onto an Outcome.
func Classify(err error) Outcome {
	if err == nil {
		return Delivered
	}
	var p *permanentError
	if errors.As(err, &p) {
		return Permanent
	}
	return Transient
}
