package adminhttp

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

type stubRoomLister struct{ rooms []string }

func (s stubRoomLister) List() []string { return s.rooms }

func init() {
	gin.SetMode(gin.TestMode)
}

func TestHealthz(t *testing.T) {
	r := New("test-service", nil)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "test-service")
}

func TestRoomsEndpointOnlyWhenProvided(t *testing.T) {
	withRooms := New("crs-server", stubRoomLister{rooms: []string{"a", "b"}})
	req := httptest.NewRequest(http.MethodGet, "/rooms", nil)
	w := httptest.NewRecorder()
	withRooms.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "a")

	withoutRooms := New("sns-server", nil)
	req2 := httptest.NewRequest(http.MethodGet, "/rooms", nil)
	w2 := httptest.NewRecorder()
	withoutRooms.ServeHTTP(w2, req2)
	assert.Equal(t, http.StatusNotFound, w2.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	r := New("test-service", nil)
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}
