// Package apitest provides an in-memory fake target service for tests.
// By default it simulates a well-behaved e-commerce service; every contract
// method has a function-field override for misbehavior injection.
package apitest

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tinkersphere/bombardier/internal/api"
	"github.com/tinkersphere/bombardier/internal/model"
)

// FakeService implements api.ServiceClient entirely in memory.
type FakeService struct {
	mu        sync.Mutex
	users     map[uuid.UUID]*model.User
	orders    map[uuid.UUID]*model.Order
	items     []model.Item
	bookings  map[uuid.UUID][]model.BookingLogRecord
	financial map[uuid.UUID][]model.FinancialLogRecord
	bucket    map[uuid.UUID][]model.BucketLogRecord
	delivery  map[uuid.UUID]*model.DeliveryLogRecord
	owners    map[uuid.UUID]uuid.UUID // orderID -> userID

	// DeliveryResult is the terminal status a delivered order reaches:
	// StatusDelivered (default) or StatusRefund.
	DeliveryResult model.StatusKind

	// Per-method overrides. When set, the override fully replaces the
	// default simulation for that call.
	CreateUserFn           func(ctx context.Context, name string, accountAmount int) (*model.User, error)
	GetUserFn              func(ctx context.Context, id uuid.UUID) (*model.User, error)
	GetFinancialHistoryFn  func(ctx context.Context, userID, orderID uuid.UUID) ([]model.FinancialLogRecord, error)
	CreateOrderFn          func(ctx context.Context, userID uuid.UUID) (*model.Order, error)
	GetOrderFn             func(ctx context.Context, userID, orderID uuid.UUID) (*model.Order, error)
	GetAvailableItemsFn    func(ctx context.Context, userID uuid.UUID) ([]model.Item, error)
	PutItemToOrderFn       func(ctx context.Context, userID, orderID, itemID uuid.UUID, amount int) (bool, error)
	FinalizeOrderFn        func(ctx context.Context, orderID uuid.UUID) (*model.BookingDto, error)
	GetBookingHistoryFn    func(ctx context.Context, bookingID uuid.UUID) ([]model.BookingLogRecord, error)
	GetDeliverySlotsFn     func(ctx context.Context, orderID uuid.UUID) ([]int, error)
	SetDeliveryTimeFn      func(ctx context.Context, orderID uuid.UUID, slotSeconds int64) error
	PayOrderFn             func(ctx context.Context, userID, orderID uuid.UUID) (*model.Order, error)
	SimulateDeliveryFn     func(ctx context.Context, orderID uuid.UUID) error
	DeliveryLogFn          func(ctx context.Context, orderID uuid.UUID) (*model.DeliveryLogRecord, error)
	AbandonedCartHistoryFn func(ctx context.Context, orderID uuid.UUID) ([]model.BucketLogRecord, error)
}

var _ api.ServiceClient = (*FakeService)(nil)

// New creates a fake with a five-item catalog and no users or orders.
func New() *FakeService {
	f := &FakeService{
		users:          make(map[uuid.UUID]*model.User),
		orders:         make(map[uuid.UUID]*model.Order),
		bookings:       make(map[uuid.UUID][]model.BookingLogRecord),
		financial:      make(map[uuid.UUID][]model.FinancialLogRecord),
		bucket:         make(map[uuid.UUID][]model.BucketLogRecord),
		delivery:       make(map[uuid.UUID]*model.DeliveryLogRecord),
		owners:         make(map[uuid.UUID]uuid.UUID),
		DeliveryResult: model.StatusDelivered,
	}
	for i := 0; i < 5; i++ {
		f.items = append(f.items, model.Item{
			ID:     uuid.New(),
			Title:  fmt.Sprintf("item-%d", i),
			Price:  (i + 1) * 100,
			Amount: 1000,
		})
	}
	return f
}

func nowMillis() int64 { return time.Now().UnixMilli() }

func (f *FakeService) CreateUser(ctx context.Context, name string, accountAmount int) (*model.User, error) {
	if f.CreateUserFn != nil {
		return f.CreateUserFn(ctx, name, accountAmount)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	user := &model.User{ID: uuid.New(), Name: name, AccountAmount: accountAmount}
	f.users[user.ID] = user
	return user, nil
}

func (f *FakeService) GetUser(ctx context.Context, id uuid.UUID) (*model.User, error) {
	if f.GetUserFn != nil {
		return f.GetUserFn(ctx, id)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	user, ok := f.users[id]
	if !ok {
		return nil, fmt.Errorf("fake: no user %s", id)
	}
	copied := *user
	return &copied, nil
}

func (f *FakeService) GetFinancialHistory(ctx context.Context, userID, orderID uuid.UUID) ([]model.FinancialLogRecord, error) {
	if f.GetFinancialHistoryFn != nil {
		return f.GetFinancialHistoryFn(ctx, userID, orderID)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]model.FinancialLogRecord(nil), f.financial[orderID]...), nil
}

func (f *FakeService) CreateOrder(ctx context.Context, userID uuid.UUID) (*model.Order, error) {
	if f.CreateOrderFn != nil {
		return f.CreateOrderFn(ctx, userID)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	order := &model.Order{
		ID:          uuid.New(),
		TimeCreated: nowMillis(),
		Status:      model.OrderStatus{Kind: model.StatusCollecting},
	}
	f.orders[order.ID] = order
	f.owners[order.ID] = userID
	f.bucket[order.ID] = []model.BucketLogRecord{{
		TransactionID:  uuid.New(),
		Timestamp:      nowMillis(),
		UserInteracted: true,
	}}
	return copyOrder(order), nil
}

func (f *FakeService) GetOrder(ctx context.Context, userID, orderID uuid.UUID) (*model.Order, error) {
	if f.GetOrderFn != nil {
		return f.GetOrderFn(ctx, userID, orderID)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	order, ok := f.orders[orderID]
	if !ok {
		return nil, fmt.Errorf("fake: no order %s", orderID)
	}
	return copyOrder(order), nil
}

func (f *FakeService) GetAvailableItems(ctx context.Context, userID uuid.UUID) ([]model.Item, error) {
	if f.GetAvailableItemsFn != nil {
		return f.GetAvailableItemsFn(ctx, userID)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]model.Item(nil), f.items...), nil
}

func (f *FakeService) PutItemToOrder(ctx context.Context, userID, orderID, itemID uuid.UUID, amount int) (bool, error) {
	if f.PutItemToOrderFn != nil {
		return f.PutItemToOrderFn(ctx, userID, orderID, itemID, amount)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	order, ok := f.orders[orderID]
	if !ok {
		return false, fmt.Errorf("fake: no order %s", orderID)
	}
	var item *model.Item
	for i := range f.items {
		if f.items[i].ID == itemID {
			item = &f.items[i]
			break
		}
	}
	if item == nil {
		return false, nil
	}
	// Touching a booked order re-opens collection.
	if order.Status.Kind == model.StatusBooked {
		order.Status = model.OrderStatus{Kind: model.StatusCollecting}
	}
	for i := range order.Items {
		if order.Items[i].ID == itemID {
			order.Items[i].Amount = amount
			return true, nil
		}
	}
	order.Items = append(order.Items, model.OrderItem{
		ID: item.ID, Title: item.Title, Price: item.Price, Amount: amount,
	})
	f.bucket[orderID] = append(f.bucket[orderID], model.BucketLogRecord{
		TransactionID:  uuid.New(),
		Timestamp:      nowMillis(),
		UserInteracted: true,
	})
	return true, nil
}

func (f *FakeService) FinalizeOrder(ctx context.Context, orderID uuid.UUID) (*model.BookingDto, error) {
	if f.FinalizeOrderFn != nil {
		return f.FinalizeOrderFn(ctx, orderID)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	order, ok := f.orders[orderID]
	if !ok {
		return nil, fmt.Errorf("fake: no order %s", orderID)
	}
	booking := model.BookingDto{ID: uuid.New()}
	order.Status = model.OrderStatus{Kind: model.StatusBooked}
	for _, it := range order.Items {
		f.bookings[booking.ID] = append(f.bookings[booking.ID], model.BookingLogRecord{
			BookingID: booking.ID,
			ItemID:    it.ID,
			Status:    model.BookingSuccess,
			Amount:    it.Amount,
			Timestamp: nowMillis(),
		})
	}
	return &booking, nil
}

func (f *FakeService) GetBookingHistory(ctx context.Context, bookingID uuid.UUID) ([]model.BookingLogRecord, error) {
	if f.GetBookingHistoryFn != nil {
		return f.GetBookingHistoryFn(ctx, bookingID)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]model.BookingLogRecord(nil), f.bookings[bookingID]...), nil
}

func (f *FakeService) GetDeliverySlots(ctx context.Context, orderID uuid.UUID) ([]int, error) {
	if f.GetDeliverySlotsFn != nil {
		return f.GetDeliverySlotsFn(ctx, orderID)
	}
	return []int{600, 1200, 1800}, nil
}

func (f *FakeService) SetDeliveryTime(ctx context.Context, orderID uuid.UUID, slotSeconds int64) error {
	if f.SetDeliveryTimeFn != nil {
		return f.SetDeliveryTimeFn(ctx, orderID, slotSeconds)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	order, ok := f.orders[orderID]
	if !ok {
		return fmt.Errorf("fake: no order %s", orderID)
	}
	order.DeliveryDuration = &slotSeconds
	return nil
}

func (f *FakeService) PayOrder(ctx context.Context, userID, orderID uuid.UUID) (*model.Order, error) {
	if f.PayOrderFn != nil {
		return f.PayOrderFn(ctx, userID, orderID)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	order, ok := f.orders[orderID]
	if !ok {
		return nil, fmt.Errorf("fake: no order %s", orderID)
	}
	now := nowMillis()
	total := order.Total()
	order.PaymentHistory = append(order.PaymentHistory, model.PaymentLogRecord{
		Timestamp: now,
		Status:    model.PaymentSuccess,
		Amount:    total,
	})
	order.Status = model.OrderStatus{Kind: model.StatusPayed, PaymentTime: now}
	f.financial[orderID] = append(f.financial[orderID], model.FinancialLogRecord{
		Type: model.FinancialWithdraw, Amount: total, OrderID: &orderID, Timestamp: now,
	})
	return copyOrder(order), nil
}

func (f *FakeService) SimulateDelivery(ctx context.Context, orderID uuid.UUID) error {
	if f.SimulateDeliveryFn != nil {
		return f.SimulateDeliveryFn(ctx, orderID)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	order, ok := f.orders[orderID]
	if !ok {
		return fmt.Errorf("fake: no order %s", orderID)
	}
	now := nowMillis()
	if f.DeliveryResult == model.StatusRefund {
		order.Status = model.OrderStatus{Kind: model.StatusRefund}
		total := order.Total()
		f.financial[orderID] = append(f.financial[orderID], model.FinancialLogRecord{
			Type: model.FinancialRefund, Amount: total, OrderID: &orderID, Timestamp: now,
		})
		f.delivery[orderID] = &model.DeliveryLogRecord{OrderID: orderID, Outcome: model.DeliveryFailure}
		return nil
	}
	order.Status = model.OrderStatus{
		Kind:               model.StatusDelivered,
		DeliveryStartTime:  now,
		DeliveryFinishTime: now,
	}
	f.delivery[orderID] = &model.DeliveryLogRecord{OrderID: orderID, Outcome: model.DeliverySuccess}
	return nil
}

func (f *FakeService) DeliveryLog(ctx context.Context, orderID uuid.UUID) (*model.DeliveryLogRecord, error) {
	if f.DeliveryLogFn != nil {
		return f.DeliveryLogFn(ctx, orderID)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	record, ok := f.delivery[orderID]
	if !ok {
		return nil, fmt.Errorf("fake: no delivery log for %s", orderID)
	}
	copied := *record
	return &copied, nil
}

func (f *FakeService) AbandonedCartHistory(ctx context.Context, orderID uuid.UUID) ([]model.BucketLogRecord, error) {
	if f.AbandonedCartHistoryFn != nil {
		return f.AbandonedCartHistoryFn(ctx, orderID)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]model.BucketLogRecord(nil), f.bucket[orderID]...), nil
}

// Items returns the catalog, for tests that need concrete item ids.
func (f *FakeService) Items() []model.Item {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]model.Item(nil), f.items...)
}

// SetOrder installs an order snapshot directly, bypassing the lifecycle.
func (f *FakeService) SetOrder(order *model.Order) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.orders[order.ID] = copyOrder(order)
}

// AppendBucketRecord adds an abandoned-cart audit record for an order.
func (f *FakeService) AppendBucketRecord(orderID uuid.UUID, record model.BucketLogRecord) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.bucket[orderID] = append(f.bucket[orderID], record)
}

func copyOrder(order *model.Order) *model.Order {
	copied := *order
	copied.Items = append([]model.OrderItem(nil), order.Items...)
	copied.PaymentHistory = append([]model.PaymentLogRecord(nil), order.PaymentHistory...)
	if order.DeliveryDuration != nil {
		d := *order.DeliveryDuration
		copied.DeliveryDuration = &d
	}
	return &copied
}
