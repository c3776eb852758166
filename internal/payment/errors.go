package payment

import (
	"errors"
	"fmt"
)

// ErrUnknownProcessor is returned when a site has no configuration for the
// requested processor.
var ErrUnknownProcessor = errors.New("payment: unknown processor")

// Error is a recoverable payment failure: the processor declined or the
// confirmation did not match the basket. The buyer may retry.
type Error struct {
	Processor string
	Reason    string
	Err       error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: payment failed: %s: %v", e.Processor, e.Reason, e.Err)
	}
	return fmt.Sprintf("%s: payment failed: %s", e.Processor, e.Reason)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func declined(processor, reason string) *Error {
	return &Error{Processor: processor, Reason: reason}
}

// RedundantNotificationError signals a confirmation whose transaction was
// already applied.
type RedundantNotificationError struct {
	Processor     string
	TransactionID string
}

func (e *RedundantNotificationError) Error() string {
	return fmt.Sprintf("%s: transaction %s already processed", e.Processor, e.TransactionID)
}

// IsDeclined reports whether err is a recoverable payment failure.
func IsDeclined(err error) bool {
	var pe *Error
	return errors.As(err, &pe)
}

// IsRedundant reports whether err is a duplicate confirmation.
func IsRedundant(err error) bool {
	var re *RedundantNotificationError
	return errors.As(err, &re)
}
