package stage

import "fmt"

// Business-failure reason codes carried on FailedError and emitted in logs.
const (
	ReasonIllegalTransition = "E_ILLEGAL_ORDER_TRANSITION"
	ReasonWrongStatus       = "E_WRONG_ORDER_STATUS"
	ReasonTimeout           = "E_CHANGE_NOT_OBSERVED"
	ReasonNotEnoughMoney    = "E_NOT_ENOUGH_MONEY"
	ReasonOverWithdrawal    = "E_OVER_WITHDRAWAL"
	ReasonRefundMismatch    = "E_REFUND_MISMATCH"
	ReasonDeliveryDeadline  = "E_DELIVERY_DEADLINE_MISSED"
	ReasonBookingBroken     = "E_BOOKING_BROKEN"
	ReasonNoItems           = "E_NO_ITEMS_AVAILABLE"
)

// FailedError is the declared business failure a stage raises when the
// target violates its contract. The exception-free decorator maps it to the
// Fail continuation; every other error becomes Error.
type FailedError struct {
	Reason  string
	Message string
}

func (e *FailedError) Error() string {
	return fmt.Sprintf("stage failed [%s]: %s", e.Reason, e.Message)
}

// Failf builds a FailedError with a formatted message.
func Failf(reason, format string, args ...any) *FailedError {
	return &FailedError{Reason: reason, Message: fmt.Sprintf(format, args...)}
}
