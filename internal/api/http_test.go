package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tinkersphere/bombardier/internal/model"
)

func TestHTTPClient_CreateUser(t *testing.T) {
	userID := uuid.New()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/users", r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))

		var req map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "load-user", req["name"])

		_ = json.NewEncoder(w).Encode(model.User{ID: userID, Name: "load-user", AccountAmount: 500})
	}))
	defer srv.Close()

	client := NewHTTPClient(Descriptor{Name: "svc", BaseURL: srv.URL, Token: "secret"})
	user, err := client.CreateUser(context.Background(), "load-user", 500)

	require.NoError(t, err)
	assert.Equal(t, userID, user.ID)
	assert.Equal(t, 500, user.AccountAmount)
}

func TestHTTPClient_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			http.Error(w, "busy", http.StatusServiceUnavailable)
			return
		}
		_ = json.NewEncoder(w).Encode([]int{3600, 7200})
	}))
	defer srv.Close()

	client := NewHTTPClient(Descriptor{Name: "svc", BaseURL: srv.URL})
	slots, err := client.GetDeliverySlots(context.Background(), uuid.New())

	require.NoError(t, err)
	assert.Equal(t, []int{3600, 7200}, slots)
	assert.Equal(t, int32(3), calls.Load(), "two 503s then a success")
}

func TestHTTPClient_ClientErrorNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "no such order", http.StatusNotFound)
	}))
	defer srv.Close()

	client := NewHTTPClient(Descriptor{Name: "svc", BaseURL: srv.URL})
	_, err := client.GetOrder(context.Background(), uuid.New(), uuid.New())

	require.Error(t, err)
	var remote *RemoteError
	require.True(t, errors.As(err, &remote))
	assert.Equal(t, http.StatusNotFound, remote.Status)
	assert.Equal(t, int32(1), calls.Load(), "4xx responses must not be retried")
}

func TestHTTPClient_PutItemToOrder(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		assert.Equal(t, "13", r.URL.Query().Get("amount"))
		_ = json.NewEncoder(w).Encode(map[string]bool{"accepted": true})
	}))
	defer srv.Close()

	client := NewHTTPClient(Descriptor{Name: "svc", BaseURL: srv.URL})
	accepted, err := client.PutItemToOrder(context.Background(), uuid.New(), uuid.New(), uuid.New(), 13)

	require.NoError(t, err)
	assert.True(t, accepted)
}

func TestRegistry_Resolve(t *testing.T) {
	r := NewRegistry()
	r.Register(Descriptor{Name: "shop", BaseURL: "http://shop:8080", Token: "t"})

	d, err := r.Resolve("shop")
	require.NoError(t, err)
	assert.Equal(t, "http://shop:8080", d.BaseURL)

	_, err = r.Resolve("missing")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrServiceNotFound))
}

func TestRegistry_Seed(t *testing.T) {
	r := NewRegistry()
	err := r.Seed("shop=http://shop:8080|tok1, pay=http://pay:9090")
	require.NoError(t, err)

	shop, err := r.Resolve("shop")
	require.NoError(t, err)
	assert.Equal(t, "tok1", shop.Token)

	pay, err := r.Resolve("pay")
	require.NoError(t, err)
	assert.Empty(t, pay.Token)
}

func TestRegistry_SeedMalformed(t *testing.T) {
	r := NewRegistry()
	require.Error(t, r.Seed("garbage-without-equals"))
	require.Error(t, r.Seed("name="))
}
