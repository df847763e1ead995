package connectivity

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_NotifiesOnlyOnChange(t *testing.T) {
	s := NewStore(true)
	var calls []bool
	unsubscribe := s.Subscribe(func(online bool) { calls = append(calls, online) })

	s.Set(true)
	s.Set(false)
	s.Set(false)
	s.Set(true)

	assert.Equal(t, []bool{false, true}, calls)

	unsubscribe()
	s.Set(false)
	assert.Len(t, calls, 2)
	assert.False(t, s.Online())
}

func TestProber_TracksHeartbeat(t *testing.T) {
	var healthy atomic.Bool
	healthy.Store(true)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !healthy.Load() {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	store := NewStore(false)
	p := NewProber(srv.URL+"/", srv.Client(), store, nil)
	ctx := context.Background()

	require.NoError(t, p.Probe(ctx))
	assert.True(t, store.Online())

	healthy.Store(false)
	require.NoError(t, p.Probe(ctx))
	assert.False(t, store.Online())
}

func TestProber_UnreachableIsOffline(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	store := NewStore(true)
	p := NewProber(url, nil, store, nil)

	require.NoError(t, p.Probe(context.Background()))
	assert.False(t, store.Online())
}
