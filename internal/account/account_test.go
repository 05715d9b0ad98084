package account

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tinkersphere/bombardier/internal/api/apitest"
	"github.com/tinkersphere/bombardier/internal/model"
)

func TestCreateUsersPool_AllSucceed(t *testing.T) {
	fake := apitest.New()
	pool := NewPool()

	created := pool.CreateUsersPool(context.Background(), fake, "shop", 10)

	assert.Equal(t, 10, created)
	id, err := pool.GetRandomUserID("shop")
	require.NoError(t, err)
	balance, err := pool.Balance(id)
	require.NoError(t, err)
	assert.Equal(t, int64(DefaultAccountAmount), balance)
}

func TestCreateUsersPool_BestEffort(t *testing.T) {
	fake := apitest.New()
	calls := 0
	fake.CreateUserFn = func(ctx context.Context, name string, accountAmount int) (*model.User, error) {
		calls++
		if calls%2 == 0 {
			return nil, errors.New("target hiccup")
		}
		return &model.User{ID: uuid.New(), Name: name, AccountAmount: accountAmount}, nil
	}
	pool := NewPool()

	created := pool.CreateUsersPool(context.Background(), fake, "shop", 6)

	assert.Equal(t, 3, created, "failed creations are skipped, not fatal")
	_, err := pool.GetRandomUserID("shop")
	require.NoError(t, err)
}

func TestGetRandomUserID_EmptyPool(t *testing.T) {
	pool := NewPool()

	_, err := pool.GetRandomUserID("ghost")

	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNoUsersForService))
}

func TestSpendRefund_RoundTrips(t *testing.T) {
	fake := apitest.New()
	pool := NewPool()
	pool.CreateUsersPool(context.Background(), fake, "shop", 1)
	id, err := pool.GetRandomUserID("shop")
	require.NoError(t, err)

	require.NoError(t, pool.Spend(id, 300))
	require.NoError(t, pool.Refund(id, 100))

	balance, err := pool.Balance(id)
	require.NoError(t, err)
	assert.Equal(t, int64(DefaultAccountAmount-200), balance)
}

func TestSpend_PermitsNegativeBalance(t *testing.T) {
	fake := apitest.New()
	pool := NewPool()
	pool.CreateUsersPool(context.Background(), fake, "shop", 1)
	id, err := pool.GetRandomUserID("shop")
	require.NoError(t, err)

	require.NoError(t, pool.Spend(id, DefaultAccountAmount+500))

	balance, err := pool.Balance(id)
	require.NoError(t, err)
	assert.Equal(t, int64(-500), balance, "the ledger does not reject over-withdrawal")
}

func TestLedger_UnknownUser(t *testing.T) {
	pool := NewPool()

	assert.True(t, errors.Is(pool.Spend(uuid.New(), 1), ErrUnknownUser))
	assert.True(t, errors.Is(pool.Refund(uuid.New(), 1), ErrUnknownUser))
	_, err := pool.Balance(uuid.New())
	assert.True(t, errors.Is(err, ErrUnknownUser))
}

func TestLedger_ConcurrentMutations(t *testing.T) {
	fake := apitest.New()
	pool := NewPool()
	pool.CreateUsersPool(context.Background(), fake, "shop", 1)
	id, err := pool.GetRandomUserID("shop")
	require.NoError(t, err)

	const workers = 50
	const perWorker = 100
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < perWorker; j++ {
				_ = pool.Spend(id, 2)
				_ = pool.Refund(id, 1)
			}
		}()
	}
	wg.Wait()

	balance, err := pool.Balance(id)
	require.NoError(t, err)
	assert.Equal(t, int64(DefaultAccountAmount-workers*perWorker), balance)
}
