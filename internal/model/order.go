package model

import "github.com/google/uuid"

// StatusKind identifies an order status variant. Payload fields for the
// variants that carry data live on OrderStatus.
type StatusKind string

const (
	StatusCollecting StatusKind = "COLLECTING"
	StatusDiscarded  StatusKind = "DISCARDED"
	StatusBooked     StatusKind = "BOOKED"
	StatusPayed      StatusKind = "PAYED"
	StatusInDelivery StatusKind = "IN_DELIVERY"
	StatusDelivered  StatusKind = "DELIVERED"
	StatusRefund     StatusKind = "REFUND"
	StatusFailed     StatusKind = "FAILED"
)

// OrderStatus is the tagged status variant of an order. Only the payload
// fields belonging to Kind are meaningful; the rest stay zero.
type OrderStatus struct {
	Kind               StatusKind `json:"kind"`
	PaymentTime        int64      `json:"payment_time,omitempty"`         // PAYED: epoch-ms
	DeliveryStartTime  int64      `json:"delivery_start_time,omitempty"`  // IN_DELIVERY, DELIVERED: epoch-ms
	DeliveryFinishTime int64      `json:"delivery_finish_time,omitempty"` // DELIVERED: epoch-ms
	FailReason         string     `json:"fail_reason,omitempty"`          // FAILED
	PreviousStatus     StatusKind `json:"previous_status,omitempty"`      // FAILED
}

// OrderItem is one entry of an order's item map: an item plus the amount
// the user put into the cart.
type OrderItem struct {
	ID     uuid.UUID `json:"id"`
	Title  string    `json:"title"`
	Price  int       `json:"price"`
	Amount int       `json:"amount"`
}

// Order is the last-known snapshot of an order on the target service.
type Order struct {
	ID               uuid.UUID          `json:"id"`
	TimeCreated      int64              `json:"time_created"` // epoch-ms
	Status           OrderStatus        `json:"status"`
	Items            []OrderItem        `json:"items"`
	DeliveryDuration *int64             `json:"delivery_duration,omitempty"` // seconds
	PaymentHistory   []PaymentLogRecord `json:"payment_history"`
}

// ItemAmount returns the amount of the given item in the order, and whether
// the item is present at all.
func (o *Order) ItemAmount(itemID uuid.UUID) (int, bool) {
	for _, it := range o.Items {
		if it.ID == itemID {
			return it.Amount, true
		}
	}
	return 0, false
}

// Total is the order price: sum of price*amount over all items.
func (o *Order) Total() int {
	total := 0
	for _, it := range o.Items {
		total += it.Price * it.Amount
	}
	return total
}

// LastPayment returns the most recent payment record, or nil if the order
// was never paid for. PaymentHistory is append-only, so the last entry wins.
func (o *Order) LastPayment() *PaymentLogRecord {
	if len(o.PaymentHistory) == 0 {
		return nil
	}
	return &o.PaymentHistory[len(o.PaymentHistory)-1]
}

// Item is a catalog item as exposed by the target service.
type Item struct {
	ID     uuid.UUID `json:"id"`
	Title  string    `json:"title"`
	Price  int       `json:"price"`
	Amount int       `json:"amount"` // stock remaining on the target
}
