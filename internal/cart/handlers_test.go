package cart_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/illusia-ry-organization/illusia-ry/internal/availability"
	"github.com/illusia-ry-organization/illusia-ry/internal/cart"
	"github.com/illusia-ry-organization/illusia-ry/internal/common"
)

type stubSnapshots struct {
	snap availability.Snapshot
}

func (s stubSnapshots) Load(context.Context) (availability.Snapshot, error) {
	return s.snap, nil
}

type stubLines struct{}

func (stubLines) Line(_ context.Context, itemID uuid.UUID) (cart.Line, error) {
	switch itemID {
	case itemX:
		return cart.Line{ItemID: itemX, ItemName: "canvas tent", Location: "main storage"}, nil
	case itemY:
		return cart.Line{ItemID: itemY, ItemName: "lantern"}, nil
	}
	return cart.Line{}, common.NotFoundError("item")
}

func testSnapshot() availability.Snapshot {
	return availability.Snapshot{
		Items: map[uuid.UUID]availability.ItemStock{
			itemX: {ItemID: itemX, Name: "canvas tent", Quantity: 3, Visible: true},
			itemY: {ItemID: itemY, Name: "lantern", Quantity: 1, Visible: true},
		},
	}
}

func newCartServer(t *testing.T, snap availability.Snapshot) *httptest.Server {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	svc := &cart.Service{
		Store:        &cart.Store{Client: client, TTL: time.Hour},
		Availability: stubSnapshots{snap: snap},
		Lines:        stubLines{},
	}
	h := &cart.Handler{Svc: svc}

	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			if uid := req.Header.Get("X-Test-User"); uid != "" {
				req = req.WithContext(common.WithUserID(req.Context(), uid))
			}
			next.ServeHTTP(w, req)
		})
	})
	r.Route("/api/v1/cart", h.Routes)

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

func do(t *testing.T, srv *httptest.Server, method, path string, body any) (*http.Response, map[string]json.RawMessage) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, srv.URL+path, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Test-User", "user-1")

	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })

	var envelope map[string]json.RawMessage
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&envelope))
	return resp, envelope
}

func decodeView(t *testing.T, envelope map[string]json.RawMessage) cart.View {
	t.Helper()
	var view cart.View
	require.NoError(t, json.Unmarshal(envelope["data"], &view))
	return view
}

func addTent(t *testing.T, srv *httptest.Server, qty int) cart.View {
	t.Helper()
	resp, envelope := do(t, srv, http.MethodPost, "/api/v1/cart/items", map[string]any{
		"item_id":    itemX.String(),
		"quantity":   qty,
		"start_date": "2024-06-01",
		"end_date":   "2024-06-05",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	return decodeView(t, envelope)
}

func TestHandlerAddItemAndGet(t *testing.T) {
	srv := newCartServer(t, testSnapshot())

	view := addTent(t, srv, 2)
	require.Len(t, view.Cart.Lines, 1)
	require.Equal(t, 2, view.Cart.Lines[0].Quantity)
	require.Equal(t, "canvas tent", view.Cart.Lines[0].ItemName)
	require.Equal(t, 2, view.TotalItems)
	require.False(t, view.Editing)

	resp, envelope := do(t, srv, http.MethodGet, "/api/v1/cart", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, view.Cart, decodeView(t, envelope).Cart)
}

func TestHandlerRequiresAuth(t *testing.T) {
	srv := newCartServer(t, testSnapshot())

	resp, err := srv.Client().Get(srv.URL + "/api/v1/cart")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestHandlerAnonymousSessionCart(t *testing.T) {
	srv := newCartServer(t, testSnapshot())

	req, err := http.NewRequest(http.MethodPost, srv.URL+"/api/v1/cart/items", bytes.NewBufferString(fmt.Sprintf(
		`{"item_id":%q,"quantity":1,"start_date":"2024-06-01","end_date":"2024-06-05"}`, itemX)))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Cart-Session", "f3b9d0f2-visitor")

	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	// the same session header reads the same cart back
	getReq, err := http.NewRequest(http.MethodGet, srv.URL+"/api/v1/cart", nil)
	require.NoError(t, err)
	getReq.Header.Set("X-Cart-Session", "f3b9d0f2-visitor")
	getResp, err := srv.Client().Do(getReq)
	require.NoError(t, err)
	defer getResp.Body.Close()

	var envelope map[string]json.RawMessage
	require.NoError(t, json.NewDecoder(getResp.Body).Decode(&envelope))
	view := decodeView(t, envelope)
	require.Equal(t, 1, view.TotalItems)
}

func TestHandlerIncreaseBlockedByStock(t *testing.T) {
	srv := newCartServer(t, testSnapshot())
	addTent(t, srv, 3)

	resp, envelope := do(t, srv, http.MethodPost, fmt.Sprintf("/api/v1/cart/items/%s/increase", itemX), nil)
	require.Equal(t, http.StatusConflict, resp.StatusCode)

	var body struct {
		Code    string              `json:"code"`
		Message string              `json:"message"`
		Details availability.Result `json:"details"`
	}
	require.NoError(t, json.Unmarshal(envelope["error"], &body))
	require.Equal(t, "UNAVAILABLE", body.Code)
	require.Equal(t, availability.SeverityWarning, body.Details.Severity)
	require.NotNil(t, body.Details.Meta)
	require.Equal(t, 3, body.Details.Meta.Amount)
}

func TestHandlerRejectsOverlongRange(t *testing.T) {
	srv := newCartServer(t, testSnapshot())
	addTent(t, srv, 1)

	resp, envelope := do(t, srv, http.MethodPut, "/api/v1/cart/dates", map[string]string{
		"start_date": "2024-06-01",
		"end_date":   "2024-06-30",
	})
	require.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)

	var body struct {
		Code string `json:"code"`
	}
	require.NoError(t, json.Unmarshal(envelope["error"], &body))
	require.Equal(t, "RANGE_TOO_LONG", body.Code)
}

func TestHandlerEditFlow(t *testing.T) {
	snap := testSnapshot()
	srv := newCartServer(t, snap)
	addTent(t, srv, 1)

	resp, envelope := do(t, srv, http.MethodPost, "/api/v1/cart/items", map[string]any{
		"item_id": itemY.String(), "quantity": 1,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, envelope = do(t, srv, http.MethodPost, "/api/v1/cart/edit", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.True(t, decodeView(t, envelope).Editing)

	// lantern stock is 1, so asking for 2 inside the session is rejected
	resp, _ = do(t, srv, http.MethodPost, fmt.Sprintf("/api/v1/cart/items/%s/increase", itemY), nil)
	require.Equal(t, http.StatusConflict, resp.StatusCode)

	// force an error through a date change against a conflicting reservation
	snapWithReservation := testSnapshot()
	snapWithReservation.Reservations = []availability.Reservation{{
		ID: uuid.New(), BookingID: uuid.New(), ItemID: itemY,
		Range: rng(t, "2024-06-08", "2024-06-12"), Quantity: 1, IsActive: true,
	}}
	srv2 := newCartServer(t, snapWithReservation)
	addTent(t, srv2, 1)
	resp, _ = do(t, srv2, http.MethodPost, "/api/v1/cart/items", map[string]any{
		"item_id": itemY.String(), "quantity": 1,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	_, _ = do(t, srv2, http.MethodPost, "/api/v1/cart/edit", nil)

	resp, envelope = do(t, srv2, http.MethodPut, "/api/v1/cart/dates", map[string]string{
		"start_date": "2024-06-01", "end_date": "2024-06-10",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	view := decodeView(t, envelope)
	require.Contains(t, view.ValidationErrors, itemY.String())

	resp, envelope = do(t, srv2, http.MethodPost, "/api/v1/cart/edit/confirm", nil)
	require.Equal(t, http.StatusConflict, resp.StatusCode)
	var body struct {
		Code string `json:"code"`
	}
	require.NoError(t, json.Unmarshal(envelope["error"], &body))
	require.Equal(t, "VALIDATION_PENDING", body.Code)

	// dropping the contested line clears the error and the confirm goes through
	resp, _ = do(t, srv2, http.MethodDelete, fmt.Sprintf("/api/v1/cart/items/%s", itemY), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, envelope = do(t, srv2, http.MethodPost, "/api/v1/cart/edit/confirm", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	view = decodeView(t, envelope)
	require.False(t, view.Editing)
	require.Len(t, view.Cart.Lines, 1)
	require.Equal(t, itemX, view.Cart.Lines[0].ItemID)
	require.Equal(t, rng(t, "2024-06-01", "2024-06-10"), view.Cart.Range)
}

func TestHandlerEmpty(t *testing.T) {
	srv := newCartServer(t, testSnapshot())
	addTent(t, srv, 2)

	resp, envelope := do(t, srv, http.MethodDelete, "/api/v1/cart", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.True(t, decodeView(t, envelope).Cart.IsEmpty())

	resp, envelope = do(t, srv, http.MethodGet, "/api/v1/cart", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.True(t, decodeView(t, envelope).Cart.IsEmpty())
}
