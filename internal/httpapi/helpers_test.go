package httpapi

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWriteJSON_SetsStatusAndContentType(t *testing.T) {
	rec := httptest.NewRecorder()
	require := assert.New(t)

	err := WriteJSON(rec, http.StatusAccepted, map[string]string{"a": "b"})
	require.NoError(err)
	require.Equal(http.StatusAccepted, rec.Code)
	require.Equal("application/json", rec.Header().Get("Content-Type"))
	require.JSONEq(`{"a":"b"}`, rec.Body.String())
}

func TestWriteError_WrapsMessageInStandardShape(t *testing.T) {
	rec := httptest.NewRecorder()
	err := WriteError(rec, http.StatusBadRequest, "bad input")
	assert.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"status":"error","error":"bad input"}`, rec.Body.String())
}

func TestPageParams_DefaultsWhenAbsent(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/jobs", nil)
	page, limit := pageParams(req, 20, 100)
	assert.Equal(t, 1, page)
	assert.Equal(t, 20, limit)
}

func TestPageParams_ParsesPageAndRejectsOutOfRangeLimit(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/jobs?page=3&limit=500", nil)
	page, limit := pageParams(req, 20, 100)
	assert.Equal(t, 3, page)
	// limit above maxLimit is rejected, default retained.
	assert.Equal(t, 20, limit)
}

func TestPageParams_IgnoresInvalidValues(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/jobs?page=0&limit=abc", nil)
	page, limit := pageParams(req, 20, 100)
	assert.Equal(t, 1, page)
	assert.Equal(t, 20, limit)
}
