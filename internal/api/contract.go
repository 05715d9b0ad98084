// Package api declares the narrow contract the harness consumes from target
// e-commerce services, and its HTTP implementation.
package api

import (
	"context"

	"github.com/google/uuid"

	"github.com/tinkersphere/bombardier/internal/model"
)

// ServiceClient is the set of target-service operations the test stages
// depend on. Every call is a remote request and may fail with a transport or
// remote error; stages let those propagate to the decorator layer.
type ServiceClient interface {
	CreateUser(ctx context.Context, name string, accountAmount int) (*model.User, error)
	GetUser(ctx context.Context, id uuid.UUID) (*model.User, error)
	GetFinancialHistory(ctx context.Context, userID, orderID uuid.UUID) ([]model.FinancialLogRecord, error)

	CreateOrder(ctx context.Context, userID uuid.UUID) (*model.Order, error)
	GetOrder(ctx context.Context, userID, orderID uuid.UUID) (*model.Order, error)
	GetAvailableItems(ctx context.Context, userID uuid.UUID) ([]model.Item, error)
	PutItemToOrder(ctx context.Context, userID, orderID, itemID uuid.UUID, amount int) (bool, error)

	FinalizeOrder(ctx context.Context, orderID uuid.UUID) (*model.BookingDto, error)
	GetBookingHistory(ctx context.Context, bookingID uuid.UUID) ([]model.BookingLogRecord, error)

	GetDeliverySlots(ctx context.Context, orderID uuid.UUID) ([]int, error)
	SetDeliveryTime(ctx context.Context, orderID uuid.UUID, slotSeconds int64) error

	PayOrder(ctx context.Context, userID, orderID uuid.UUID) (*model.Order, error)

	SimulateDelivery(ctx context.Context, orderID uuid.UUID) error
	DeliveryLog(ctx context.Context, orderID uuid.UUID) (*model.DeliveryLogRecord, error)
	AbandonedCartHistory(ctx context.Context, orderID uuid.UUID) ([]model.BucketLogRecord, error)
}
