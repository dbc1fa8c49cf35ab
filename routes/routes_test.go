package routes

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"robotics_club_services/app"
	"robotics_club_services/auth"
	"robotics_club_services/booking"
)

const testSecret = "test-secret"

type testServer struct {
	t     *testing.T
	app   *app.App
	mr    *miniredis.Miniredis
	admin string
}

func newTestServer(t *testing.T, limit int) *testServer {
	gin.SetMode(gin.TestMode)
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	cfg := app.Config{
		AppEnv:           "dev",
		JWTSecret:        testSecret,
		Location:         time.UTC,
		SubmitRateLimit:  limit,
		SubmitRateWindow: time.Minute,
		IdempotencyTTL:   time.Hour,
	}
	a := app.Assemble(cfg, zaptest.NewLogger(t), booking.NewMemStore(time.Second), nil, rdb)
	RegisterRoutes(a.Router, a)

	tok, err := auth.Issue(testSecret, "sita", time.Hour)
	require.NoError(t, err)
	return &testServer{t: t, app: a, mr: mr, admin: tok}
}

type reqOpt func(*http.Request)

func asAdmin(tok string) reqOpt {
	return func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+tok) }
}

func withIdempotencyKey(k string) reqOpt {
	return func(r *http.Request) { r.Header.Set(app.IdempotencyHeader, k) }
}

func (s *testServer) do(method, path string, body any, opts ...reqOpt) (*httptest.ResponseRecorder, map[string]any) {
	var buf bytes.Buffer
	if body != nil {
		require.NoError(s.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for _, o := range opts {
		o(req)
	}
	w := httptest.NewRecorder()
	s.app.Router.ServeHTTP(w, req)

	var out map[string]any
	if w.Body.Len() > 0 {
		require.NoError(s.t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	}
	return w, out
}

func (s *testServer) createDevice(total int) string {
	w, body := s.do(http.MethodPost, "/api/admin/devices", map[string]any{"name": "Arduino Uno", "total_quantity": total}, asAdmin(s.admin))
	require.Equal(s.t, http.StatusCreated, w.Code, w.Body.String())
	return body["device"].(map[string]any)["id"].(string)
}

func submitBody(qty int) map[string]any {
	return map[string]any{"name": "Asha", "contact": "9800000001", "requested_quantity": qty}
}

func TestHealthz(t *testing.T) {
	s := newTestServer(t, 10)
	w, body := s.do(http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, body["ok"])
}

func TestBookingFlowOverHTTP(t *testing.T) {
	s := newTestServer(t, 10)
	dev := s.createDevice(5)

	w, body := s.do(http.MethodPost, "/api/devices/"+dev+"/requests", submitBody(3))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Equal(t, true, body["success"])
	assert.EqualValues(t, 5, body["available_after"])
	assert.EqualValues(t, 2, body["available_for_request"])
	assert.NotEmpty(t, body["owner_token"])
	reqID := body["request_id"].(string)
	owner := body["owner_token"].(string)

	w, body = s.do(http.MethodPost, "/api/devices/"+dev+"/requests", submitBody(4))
	require.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, false, body["success"])
	assert.Equal(t, "insufficient_stock", body["error"])
	assert.EqualValues(t, 2, body["available_for_request"])
	assert.Contains(t, body["message"], "Only 2 items available")

	w, body = s.do(http.MethodPost, "/api/admin/requests/"+reqID+"/actions", map[string]any{"action": "approve", "quantity": 3}, asAdmin(s.admin))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Equal(t, "approved", body["new_status"])
	assert.EqualValues(t, 2, body["current_available"])

	w, body = s.do(http.MethodGet, "/api/devices/"+dev+"/availability", nil)
	require.Equal(t, http.StatusOK, w.Code)
	avail := body["availability"].(map[string]any)
	assert.EqualValues(t, 2, avail["current_available"])
	assert.EqualValues(t, 3, avail["total_booked"])

	w, body = s.do(http.MethodPost, "/api/admin/requests/"+reqID+"/actions", map[string]any{"action": "approve", "quantity": 1}, asAdmin(s.admin))
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "illegal_transition", body["error"])

	w, body = s.do(http.MethodPost, "/api/admin/requests/"+reqID+"/actions", map[string]any{"action": "return"}, asAdmin(s.admin))
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "returned", body["new_status"])
	assert.EqualValues(t, 5, body["current_available"])

	w, body = s.do(http.MethodPost, "/api/user/device-requests", map[string]any{"owner_token": owner})
	require.Equal(t, http.StatusOK, w.Code)
	page := body["requests"].(map[string]any)
	assert.EqualValues(t, 1, page["count"])

	w, body = s.do(http.MethodGet, "/api/requests/"+reqID+"/actions", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 2, body["count"])
}

func TestSubmitValidationOverHTTP(t *testing.T) {
	s := newTestServer(t, 100)
	dev := s.createDevice(5)

	tests := []struct {
		name   string
		path   string
		body   map[string]any
		status int
		code   string
	}{
		{"zero quantity", "/api/devices/" + dev + "/requests", submitBody(0), http.StatusBadRequest, "invalid_quantity"},
		{"bad date", "/api/devices/" + dev + "/requests",
			map[string]any{"name": "a", "contact": "b", "requested_quantity": 1, "expected_return_date": "next week"},
			http.StatusBadRequest, "invalid_date"},
		{"missing contact", "/api/devices/" + dev + "/requests", map[string]any{"name": "a", "requested_quantity": 1}, http.StatusBadRequest, "invalid_body"},
		{"unknown device", "/api/devices/nope/requests", submitBody(1), http.StatusNotFound, "device_not_found"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, body := s.do(http.MethodPost, tt.path, tt.body)
			assert.Equal(t, tt.status, w.Code)
			assert.Equal(t, tt.code, body["error"])
		})
	}
}

func TestAdminRoutesRequireToken(t *testing.T) {
	s := newTestServer(t, 10)

	w, body := s.do(http.MethodGet, "/api/admin/pending-requests", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "unauthorized", body["error"])

	other, err := auth.Issue("other-secret", "mallory", time.Hour)
	require.NoError(t, err)
	w, _ = s.do(http.MethodGet, "/api/admin/pending-requests", nil, asAdmin(other))
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w, body = s.do(http.MethodGet, "/api/admin/pending-requests", nil, asAdmin(s.admin))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, body["success"])
}

func TestSubmitRateLimited(t *testing.T) {
	s := newTestServer(t, 2)
	dev := s.createDevice(50)

	for i := 0; i < 2; i++ {
		w, _ := s.do(http.MethodPost, "/api/devices/"+dev+"/requests", submitBody(1))
		require.Equal(t, http.StatusCreated, w.Code)
	}
	w, body := s.do(http.MethodPost, "/api/devices/"+dev+"/requests", submitBody(1))
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "rate_limited", body["error"])
	assert.NotEmpty(t, w.Header().Get("Retry-After"))

	s.mr.FastForward(2 * time.Minute)
	w, _ = s.do(http.MethodPost, "/api/devices/"+dev+"/requests", submitBody(1))
	assert.Equal(t, http.StatusCreated, w.Code)
}

func TestSubmitIdempotencyReplay(t *testing.T) {
	s := newTestServer(t, 10)
	dev := s.createDevice(5)

	w1, b1 := s.do(http.MethodPost, "/api/devices/"+dev+"/requests", submitBody(2), withIdempotencyKey("abc"))
	require.Equal(t, http.StatusCreated, w1.Code)

	w2, b2 := s.do(http.MethodPost, "/api/devices/"+dev+"/requests", submitBody(2), withIdempotencyKey("abc"))
	require.Equal(t, http.StatusCreated, w2.Code)
	assert.Equal(t, "true", w2.Header().Get("Idempotent-Replayed"))
	assert.Equal(t, b1["request_id"], b2["request_id"])

	w, body := s.do(http.MethodGet, "/api/requests?contact=9800000001", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 1, body["requests"].(map[string]any)["count"], "replay must not create a second request")

	// failures release the key
	w, _ = s.do(http.MethodPost, "/api/devices/"+dev+"/requests", submitBody(9), withIdempotencyKey("def"))
	require.Equal(t, http.StatusConflict, w.Code)
	w, _ = s.do(http.MethodPost, "/api/devices/"+dev+"/requests", submitBody(1), withIdempotencyKey("def"))
	assert.Equal(t, http.StatusCreated, w.Code)
}

func TestConcurrentSubmitsOverHTTP(t *testing.T) {
	s := newTestServer(t, 100)
	dev := s.createDevice(5)

	var (
		wg    sync.WaitGroup
		mu    sync.Mutex
		codes []int
	)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			b, _ := json.Marshal(submitBody(3))
			req := httptest.NewRequest(http.MethodPost, "/api/devices/"+dev+"/requests", bytes.NewReader(b))
			req.Header.Set("Content-Type", "application/json")
			w := httptest.NewRecorder()
			s.app.Router.ServeHTTP(w, req)
			mu.Lock()
			codes = append(codes, w.Code)
			mu.Unlock()
		}()
	}
	wg.Wait()
	assert.ElementsMatch(t, []int{http.StatusCreated, http.StatusConflict}, codes)
}

func TestListRequestsNeedsFilter(t *testing.T) {
	s := newTestServer(t, 10)

	w, body := s.do(http.MethodGet, "/api/requests", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "missing_filter", body["error"])

	w, body = s.do(http.MethodGet, "/api/requests?roll_no=N/A", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "missing_filter", body["error"])

	w, body = s.do(http.MethodGet, "/api/requests?contact=x&page=0", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "invalid_page", body["error"])
}

func TestAdminDeviceManagement(t *testing.T) {
	s := newTestServer(t, 10)
	dev := s.createDevice(3)

	w, body := s.do(http.MethodPut, "/api/admin/devices/"+dev+"/quantity", map[string]any{"total_quantity": 1}, asAdmin(s.admin))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.EqualValues(t, 1, body["availability"].(map[string]any)["total_quantity"])

	w, body = s.do(http.MethodPost, "/api/admin/devices", map[string]any{"name": "Empty", "total_quantity": 0}, asAdmin(s.admin))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "invalid_quantity", body["error"])

	w, body = s.do(http.MethodPost, "/api/devices/"+dev+"/requests", submitBody(1))
	require.Equal(t, http.StatusCreated, w.Code)
	reqID := body["request_id"].(string)

	w, body = s.do(http.MethodPost, "/api/admin/requests/"+reqID+"/actions", map[string]any{"action": "extend"}, asAdmin(s.admin))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "invalid_action", body["error"])

	w, _ = s.do(http.MethodDelete, "/api/admin/requests/"+reqID, nil, asAdmin(s.admin))
	assert.Equal(t, http.StatusOK, w.Code)
	w, body = s.do(http.MethodGet, "/api/requests/"+reqID, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "request_not_found", body["error"])

	w, body = s.do(http.MethodGet, "/api/stats", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 1, body["stats"].(map[string]any)["total_devices"])
}
