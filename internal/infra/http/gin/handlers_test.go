package ginserver

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	gin "github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"staybook/internal/app/dto"
	"staybook/internal/app/middleware"
	"staybook/internal/app/registry"
	"staybook/internal/infra/obs"
	"staybook/internal/infra/storage/memory"
	"staybook/internal/infra/validation"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type caller struct {
	id   string
	role string
}

var (
	anonymous = caller{}
	ops       = caller{id: "ops", role: "admin"}
	psp       = caller{id: "psp", role: "payments"}
)

func newTestRouter(t *testing.T) *gin.Engine {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
	buses := registry.Build(registry.Deps{
		Factory:        memory.NewStore(),
		Idempotency:    memory.NewIdempotencyStore(),
		Validator:      validation.New(),
		Logger:         logger,
		IdempotencyTTL: time.Hour,
		MaxDays:        366,
		Retry:          []middleware.RetryOption{middleware.WithBaseDelay(time.Millisecond)},
		Clock:          func() time.Time { return time.Date(2026, 6, 1, 9, 0, 0, 0, time.UTC) },
	})
	router := NewRouter(obs.Middleware{Logger: logger}, obs.HealthHandlers{}, Handlers{
		Availability: AvailabilityHandler{Queries: buses.Queries},
		Reservation:  ReservationHandler{Commands: buses.Commands, Queries: buses.Queries},
		Payment:      PaymentHandler{Commands: buses.Commands},
		Admin:        AdminHandler{Commands: buses.Commands},
	})

	rec := do(t, router, ops, http.MethodPut, "/api/v1/admin/resources/villa", map[string]any{
		"kind": "property", "title": "Villa", "city": "Split", "base_price": 10000, "currency": "USD",
	}, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	return router
}

func do(t *testing.T, router http.Handler, who caller, method, path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if who.id != "" {
		req.Header.Set(HeaderUserID, who.id)
		req.Header.Set(HeaderUserRole, who.role)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func stay(in, out string) map[string]any {
	return map[string]any{"resource_id": "villa", "check_in": in, "check_out": out, "party_size": 1}
}

func Test_Reservations_CreateThenConflict(t *testing.T) {
	router := newTestRouter(t)
	alice := caller{id: "alice", role: "guest"}
	bob := caller{id: "bob", role: "guest"}

	rec := do(t, router, alice, http.MethodPost, "/api/v1/reservations", stay("2026-07-10", "2026-07-13"), nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decode[dto.ReservationResult](t, rec)
	assert.Equal(t, "pending", created.Reservation.Status)
	assert.Equal(t, int64(30000), created.Reservation.Price.Total.Amount)

	rec = do(t, router, bob, http.MethodPost, "/api/v1/reservations", stay("2026-07-12", "2026-07-14"), nil)
	require.Equal(t, http.StatusConflict, rec.Code)
	body := decode[errorBody](t, rec)
	assert.Equal(t, "conflict", body.Kind)
	require.NotNil(t, body.Conflict)
	assert.Equal(t, "2026-07-12", body.Conflict.Date)
	assert.Equal(t, "at_capacity", body.Conflict.Reason)

	rec = do(t, router, bob, http.MethodPost, "/api/v1/reservations", stay("2026-07-13", "2026-07-15"), nil)
	assert.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
}

func Test_Reservations_CreateRequiresCaller(t *testing.T) {
	router := newTestRouter(t)

	rec := do(t, router, anonymous, http.MethodPost, "/api/v1/reservations", stay("2026-07-10", "2026-07-13"), nil)

	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func Test_Reservations_IdempotencyKeyReplays(t *testing.T) {
	router := newTestRouter(t)
	alice := caller{id: "alice", role: "guest"}
	headers := map[string]string{"Idempotency-Key": "checkout-1"}

	first := do(t, router, alice, http.MethodPost, "/api/v1/reservations", stay("2026-07-10", "2026-07-13"), headers)
	require.Equal(t, http.StatusCreated, first.Code, first.Body.String())
	second := do(t, router, alice, http.MethodPost, "/api/v1/reservations", stay("2026-07-10", "2026-07-13"), headers)
	require.Less(t, second.Code, 300, second.Body.String())

	a := decode[dto.ReservationResult](t, first)
	b := decode[dto.ReservationResult](t, second)
	assert.Equal(t, a.Reservation.ID, b.Reservation.ID)
}

func Test_Reservations_BadInput(t *testing.T) {
	router := newTestRouter(t)
	alice := caller{id: "alice", role: "guest"}

	cases := []struct {
		name  string
		body  map[string]any
		field string
	}{
		{name: "bad date", body: stay("10/07/2026", "2026-07-13"), field: "check_in"},
		{name: "missing checkout", body: stay("2026-07-10", ""), field: "check_out"},
		{name: "inverted range", body: stay("2026-07-13", "2026-07-10"), field: "range"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := do(t, router, alice, http.MethodPost, "/api/v1/reservations", tc.body, nil)
			require.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
			assert.Equal(t, tc.field, decode[errorBody](t, rec).Field)
		})
	}
}

func Test_Reservations_GuestCheckoutAndPaymentOutcome(t *testing.T) {
	router := newTestRouter(t)
	body := stay("2026-07-01", "2026-07-03")
	body["name"] = "Ana Horvat"
	body["email"] = "ana@example.com"

	rec := do(t, router, anonymous, http.MethodPost, "/api/v1/guest/reservations", body, nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decode[dto.ReservationResult](t, rec)
	assert.True(t, created.Reservation.GuestCheck)

	rec = do(t, router, anonymous, http.MethodPost, "/api/v1/payments/outcomes", map[string]any{
		"id": "evt-1", "reservation_id": created.Reservation.ID, "status": "succeeded", "payment_ref": "pi_1",
	}, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = do(t, router, psp, http.MethodPost, "/api/v1/payments/outcomes", map[string]any{
		"id": "evt-1", "reservation_id": created.Reservation.ID, "status": "succeeded", "payment_ref": "pi_1",
	}, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	confirmed := decode[dto.Reservation](t, rec)
	assert.Equal(t, "confirmed", confirmed.Status)
	assert.Equal(t, "pi_1", confirmed.PaymentRef)
}

func Test_Reservations_CancelFreesDates(t *testing.T) {
	router := newTestRouter(t)
	alice := caller{id: "alice", role: "guest"}
	bob := caller{id: "bob", role: "guest"}

	rec := do(t, router, alice, http.MethodPost, "/api/v1/reservations", stay("2026-07-10", "2026-07-12"), nil)
	require.Equal(t, http.StatusCreated, rec.Code)
	id := decode[dto.ReservationResult](t, rec).Reservation.ID

	rec = do(t, router, bob, http.MethodPost, "/api/v1/reservations/"+id+"/cancel", nil, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = do(t, router, alice, http.MethodPost, "/api/v1/reservations/"+id+"/cancel", map[string]any{"reason": "plans changed"}, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "cancelled", decode[dto.Reservation](t, rec).Status)

	rec = do(t, router, bob, http.MethodPost, "/api/v1/reservations", stay("2026-07-10", "2026-07-12"), nil)
	assert.Equal(t, http.StatusCreated, rec.Code)

	rec = do(t, router, alice, http.MethodGet, "/api/v1/me/reservations", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[dto.ReservationCollection](t, rec).Items, 1)
}

func Test_Availability_WindowShowsBlocksAndPrices(t *testing.T) {
	router := newTestRouter(t)

	rec := do(t, router, ops, http.MethodPost, "/api/v1/admin/resources/villa/blocks", map[string]any{
		"from": "2026-07-02", "to": "2026-07-03", "reason": "maintenance",
	}, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	rec = do(t, router, ops, http.MethodPut, "/api/v1/admin/resources/villa/prices", map[string]any{
		"from": "2026-07-03", "to": "2026-07-04", "amount": 35000, "currency": "USD",
	}, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = do(t, router, anonymous, http.MethodGet, "/api/v1/resources/villa/availability?from=2026-07-01&to=2026-07-04", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	window := decode[dto.Window](t, rec)
	require.Len(t, window.Days, 3)
	assert.True(t, window.Days[0].Available)
	assert.False(t, window.Days[1].Available)
	assert.Equal(t, "maintenance", window.Days[1].BlockReason)
	assert.Equal(t, int64(35000), window.Days[2].Price.Amount)

	rec = do(t, router, anonymous, http.MethodGet, "/api/v1/resources/villa/check?check_in=2026-07-01&check_out=2026-07-03", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.False(t, decode[dto.AvailabilityCheck](t, rec).Available)
}

func Test_Admin_RequiresAdminRole(t *testing.T) {
	router := newTestRouter(t)
	guest := caller{id: "alice", role: "guest"}

	rec := do(t, router, guest, http.MethodPost, "/api/v1/admin/resources/villa/blocks", map[string]any{
		"from": "2026-07-02", "to": "2026-07-03",
	}, nil)

	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func Test_Reservations_UnknownIsNotFound(t *testing.T) {
	router := newTestRouter(t)

	rec := do(t, router, ops, http.MethodGet, "/api/v1/reservations/does-not-exist", nil, nil)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "not_found", decode[errorBody](t, rec).Kind)
}

func Test_ParseDate_KeepsCalendarDayOfOffset(t *testing.T) {
	want := time.Date(2026, 7, 10, 0, 0, 0, 0, time.UTC)
	for _, raw := range []string{"2026-07-10", "2026-07-10T00:00:00+02:00", "2026-07-10T23:30:00-05:00"} {
		got, err := parseDate("check_in", raw)
		require.NoError(t, err, raw)
		assert.True(t, want.Equal(got), "%s parsed as %s", raw, got)
	}

	_, err := parseDate("check_in", "10/07/2026")
	assert.Error(t, err)
}
