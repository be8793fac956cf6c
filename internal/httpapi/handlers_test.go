package httpapi

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/ternarybob/arbor"

	"github.com/VamsiGaletiInfinize/crawler/internal/store"
)

// fakeStore implements only the methods Health exercises; every other
// Store method is left to the embedded nil interface and must not be
// called by these tests.
type fakeStore struct {
	store.Store
	pingErr error
}

func (f *fakeStore) Ping(ctx context.Context) error { return f.pingErr }

func TestHealth_OKWhenStoreReachable(t *testing.T) {
	h := NewHandler(nil, &fakeStore{}, arbor.NewLogger())
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()

	h.Health(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"database":"up","queue-store":"up"}`, rec.Body.String())
}

func TestHealth_UnavailableWhenStoreUnreachable(t *testing.T) {
	h := NewHandler(nil, &fakeStore{pingErr: errors.New("disk I/O error")}, arbor.NewLogger())
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()

	h.Health(rec, req)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
