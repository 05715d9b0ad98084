// Package account owns the per-service user pools and the local mirror of
// each user's credit balance.
package account

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/tinkersphere/bombardier/internal/api"
)

// DefaultAccountAmount is the credit each pool user is created with.
const DefaultAccountAmount = 1_000_000

var (
	// ErrNoUsersForService is returned when a service has no pool users.
	ErrNoUsersForService = errors.New("no users in pool for service")

	// ErrUnknownUser is returned for ledger operations on an id the pool
	// never created.
	ErrUnknownUser = errors.New("unknown user")
)

// Pool tracks created users per service and a local credit counter per user.
// All methods are safe for concurrent callers.
type Pool struct {
	mu        sync.RWMutex
	byService map[string][]uuid.UUID
	credit    map[uuid.UUID]*creditCounter
}

type creditCounter struct {
	mu      sync.Mutex
	balance int64
}

// NewPool creates an empty pool.
func NewPool() *Pool {
	return &Pool{
		byService: make(map[string][]uuid.UUID),
		credit:    make(map[uuid.UUID]*creditCounter),
	}
}

// CreateUsersPool creates n users on the target service and registers the
// ones that succeeded. Creation failures are logged and skipped; the pool is
// best-effort. Returns the number of users actually created.
func (p *Pool) CreateUsersPool(ctx context.Context, client api.ServiceClient, service string, n int) int {
	created := 0
	for i := 0; i < n; i++ {
		name := fmt.Sprintf("%s-user-%s", service, uuid.NewString()[:8])
		user, err := client.CreateUser(ctx, name, DefaultAccountAmount)
		if err != nil {
			log.Warn().
				Err(err).
				Str("service", service).
				Str("user_name", name).
				Msg("user creation failed, skipping pool member")
			continue
		}

		p.mu.Lock()
		p.byService[service] = append(p.byService[service], user.ID)
		p.credit[user.ID] = &creditCounter{balance: int64(user.AccountAmount)}
		p.mu.Unlock()
		created++
	}
	log.Info().
		Str("service", service).
		Int("requested", n).
		Int("created", created).
		Msg("user pool initialized")
	return created
}

// GetRandomUserID returns a uniformly random pool user of the service.
func (p *Pool) GetRandomUserID(service string) (uuid.UUID, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	users := p.byService[service]
	if len(users) == 0 {
		return uuid.Nil, fmt.Errorf("%w: %s", ErrNoUsersForService, service)
	}
	return users[rand.Intn(len(users))], nil
}

// Spend subtracts amount from the user's local credit counter. Negative
// balances are permitted: over-withdrawal is asserted at the stage level,
// not rejected by the ledger.
func (p *Pool) Spend(userID uuid.UUID, amount int) error {
	return p.add(userID, -int64(amount))
}

// Refund adds amount back to the user's local credit counter.
func (p *Pool) Refund(userID uuid.UUID, amount int) error {
	return p.add(userID, int64(amount))
}

// Balance returns the user's local credit balance.
func (p *Pool) Balance(userID uuid.UUID) (int64, error) {
	p.mu.RLock()
	c, ok := p.credit[userID]
	p.mu.RUnlock()
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrUnknownUser, userID)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.balance, nil
}

func (p *Pool) add(userID uuid.UUID, delta int64) error {
	p.mu.RLock()
	c, ok := p.credit[userID]
	p.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownUser, userID)
	}
	c.mu.Lock()
	c.balance += delta
	c.mu.Unlock()
	return nil
}
