package model

import "github.com/google/uuid"

// PaymentStatus is the outcome of a single payment attempt.
type PaymentStatus string

const (
	PaymentSuccess        PaymentStatus = "SUCCESS"
	PaymentFailed         PaymentStatus = "FAILED"
	PaymentNotEnoughMoney PaymentStatus = "FAILED_NOT_ENOUGH_MONEY"
)

// PaymentLogRecord is one entry of an order's append-only payment history.
type PaymentLogRecord struct {
	Timestamp int64         `json:"timestamp"` // epoch-ms
	Status    PaymentStatus `json:"status"`
	Amount    int           `json:"amount"`
}

// FinancialOperation is the type of a financial-history entry.
type FinancialOperation string

const (
	FinancialDeposit  FinancialOperation = "DEPOSIT"
	FinancialWithdraw FinancialOperation = "WITHDRAW"
	FinancialRefund   FinancialOperation = "REFUND"
)

// FinancialLogRecord is one entry of a user's append-only financial history
// on the target. The harness only reads these.
type FinancialLogRecord struct {
	Type      FinancialOperation `json:"type"`
	Amount    int                `json:"amount"`
	OrderID   *uuid.UUID         `json:"order_id,omitempty"`
	Timestamp int64              `json:"timestamp"` // epoch-ms
}

// BucketLogRecord is one entry of the abandoned-cart audit log.
type BucketLogRecord struct {
	TransactionID  uuid.UUID `json:"transaction_id"`
	Timestamp      int64     `json:"timestamp"` // epoch-ms
	UserInteracted bool      `json:"user_interacted"`
}

// BookingStatus is the per-item outcome of a finalization booking.
type BookingStatus string

const (
	BookingSuccess BookingStatus = "SUCCESS"
	BookingFailed  BookingStatus = "FAILED"
)

// BookingDto is the synchronous result of finalizing an order. FailedItems
// lists the item ids the target could not reserve; empty means the whole
// booking succeeded.
type BookingDto struct {
	ID          uuid.UUID   `json:"id"`
	FailedItems []uuid.UUID `json:"failed_items"`
}

// Failed reports whether any item of the booking failed to reserve.
func (b BookingDto) Failed() bool {
	return len(b.FailedItems) > 0
}

// BookingLogRecord is one per-item entry of the booking history.
type BookingLogRecord struct {
	BookingID uuid.UUID     `json:"booking_id"`
	ItemID    uuid.UUID     `json:"item_id"`
	Status    BookingStatus `json:"status"`
	Amount    int           `json:"amount"`
	Timestamp int64         `json:"timestamp"` // epoch-ms
}

// DeliveryOutcome is the terminal result the delivery log reports.
type DeliveryOutcome string

const (
	DeliverySuccess DeliveryOutcome = "SUCCESS"
	DeliveryFailure DeliveryOutcome = "FAILURE"
)

// DeliveryLogRecord is the delivery log entry for an order.
type DeliveryLogRecord struct {
	OrderID uuid.UUID       `json:"order_id"`
	Outcome DeliveryOutcome `json:"outcome"`
}
