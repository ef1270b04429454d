package alert

import (
	"context"
	"errors"
)

// MultiChannel broadcasts to several shared channels. It succeeds if at
// least one of them accepted the message.
type MultiChannel []Broadcaster

func (m MultiChannel) Broadcast(ctx context.Context, msg Message) error {
	if len(m) == 0 {
		return ErrMisconfiguredChannel
	}
	var errs []error
	for _, b := range m {
		if err := b.Broadcast(ctx, msg); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) == len(m) {
		return errors.Join(errs...)
	}
	return nil
}
