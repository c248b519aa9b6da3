package interfaces

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nexus-fulfillment/internal/pkg/auth"
	"nexus-fulfillment/internal/service/order/application"
	"nexus-fulfillment/internal/service/order/domain"
	productdomain "nexus-fulfillment/internal/service/product/domain"
)

type fakeOrderService struct {
	gotCmd    application.CreateOrderCommand
	gotStatus string
	err       error
}

func (f *fakeOrderService) CreateOrder(ctx context.Context, cmd application.CreateOrderCommand) (*domain.Order, error) {
	f.gotCmd = cmd
	if f.err != nil {
		return nil, f.err
	}
	return &domain.Order{ID: "o-1", UserID: cmd.UserID, Status: domain.StatePending, FinalPrice: cmd.ExpectedAmount}, nil
}

func (f *fakeOrderService) UpdateOrderStatus(ctx context.Context, userID, orderID, status string) (*domain.Order, error) {
	f.gotStatus = status
	if f.err != nil {
		return nil, f.err
	}
	return &domain.Order{ID: orderID, UserID: userID, Status: domain.State(status)}, nil
}

func (f *fakeOrderService) GetOrder(ctx context.Context, userID, orderID string) (*domain.Order, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &domain.Order{ID: orderID, UserID: userID, Status: domain.StatePending}, nil
}

func serve(t *testing.T, svc OrderService, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	mux := http.NewServeMux()
	NewOrderHandler(svc).RegisterRoutes(mux)

	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req = req.WithContext(auth.WithUserID(req.Context(), "u-1"))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

func TestOrderHandler_CreateOrder(t *testing.T) {
	svc := &fakeOrderService{}
	rec := serve(t, svc, http.MethodPost, "/orders",
		`{"items":[{"optionId":"opt-a","quantity":2}],"expectedAmount":20000,"userCouponId":"uc-1"}`)

	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "u-1", svc.gotCmd.UserID)
	assert.Equal(t, []application.CreateOrderItem{{OptionID: "opt-a", Quantity: 2}}, svc.gotCmd.Items)
	require.NotNil(t, svc.gotCmd.UserCouponID)
	assert.Equal(t, "uc-1", *svc.gotCmd.UserCouponID)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "o-1", body["id"])
	assert.Equal(t, "PENDING", body["status"])
}

func TestOrderHandler_ErrorMapping(t *testing.T) {
	svc := &fakeOrderService{err: errors.WithStack(productdomain.ErrInsufficientStock)}
	rec := serve(t, svc, http.MethodPost, "/orders", `{"items":[{"optionId":"opt-a","quantity":9}],"expectedAmount":1}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"error":"insufficient stock"}`, rec.Body.String())

	rec = serve(t, &fakeOrderService{}, http.MethodPost, "/orders", `not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestOrderHandler_UpdateStatus(t *testing.T) {
	svc := &fakeOrderService{}
	rec := serve(t, svc, http.MethodPatch, "/orders/o-9/status", `{"status":"CANCELLED"}`)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "CANCELLED", svc.gotStatus)
	assert.Contains(t, rec.Body.String(), `"id":"o-9"`)
}

func TestOrderHandler_GetOrder(t *testing.T) {
	rec := serve(t, &fakeOrderService{}, http.MethodGet, "/orders/o-2", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"id":"o-2"`)
}
