package errors

import "fmt"

var (
	ErrWorkerPanic        = fmt.Errorf("worker panic")
	ErrMalformedEvent     = fmt.Errorf("malformed producer event")
	ErrMessageNotEditable = fmt.Errorf("message not found or too old to edit")
	ErrTransientDelivery  = fmt.Errorf("transient delivery failure")
	ErrStoreUnavailable   = fmt.Errorf("message store unavailable")
	ErrNoCurrentMessage   = fmt.Errorf("no current message for aggregation key")
	ErrUserAlreadyAllowed = fmt.Errorf("user already in the allowlist")
	ErrUserNotAllowed     = fmt.Errorf("user not in the allowlist")
)
