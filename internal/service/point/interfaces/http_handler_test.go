package interfaces

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nexus-fulfillment/internal/pkg/apperr"
	"nexus-fulfillment/internal/pkg/auth"
	"nexus-fulfillment/internal/service/point/application"
	"nexus-fulfillment/internal/service/point/domain"
)

type fakeChargeService struct {
	verifyErr error
	verified  []string
}

func (f *fakeChargeService) RequestCharge(ctx context.Context, userID string, amount int64) (*domain.ChargeRequest, error) {
	return domain.NewChargeRequest("cr-1", userID, amount, domain.DefaultChargeLimits, time.Now())
}

func (f *fakeChargeService) VerifyAndCompleteCharge(ctx context.Context, chargeRequestID, paymentID string) (*application.ChargeResult, error) {
	f.verified = append(f.verified, chargeRequestID+"/"+paymentID)
	if f.verifyErr != nil {
		return nil, f.verifyErr
	}
	return &application.ChargeResult{ChargeRequestID: chargeRequestID, Amount: 5_000, PreviousBalance: 1_000, CurrentBalance: 6_000}, nil
}

func (f *fakeChargeService) GetBalance(ctx context.Context, userID string) (*domain.Balance, error) {
	return &domain.Balance{UserID: userID, Amount: 6_000}, nil
}

func serve(svc ChargeService, method, target, body string) *httptest.ResponseRecorder {
	mux := http.NewServeMux()
	NewPointHandler(svc).RegisterRoutes(mux)

	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req = req.WithContext(auth.WithUserID(req.Context(), "u-1"))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

func TestPointHandler_RequestCharge(t *testing.T) {
	rec := serve(&fakeChargeService{}, http.MethodPost, "/points/charges", `{"amount":5000}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"PENDING"`)

	rec = serve(&fakeChargeService{}, http.MethodPost, "/points/charges", `{"amount":1}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPointHandler_VerifyCharge(t *testing.T) {
	svc := &fakeChargeService{}
	rec := serve(svc, http.MethodPost, "/points/charges/cr-1/verify", `{"paymentId":"pay-1"}`)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"cr-1/pay-1"}, svc.verified)
	assert.JSONEq(t, `{"chargeRequestId":"cr-1","amount":5000,"previousBalance":1000,"currentBalance":6000}`, rec.Body.String())
}

func TestPointHandler_VerifyChargeFailure(t *testing.T) {
	svc := &fakeChargeService{verifyErr: errors.WithStack(domain.ErrPaymentMismatch)}
	rec := serve(svc, http.MethodPost, "/points/charges/cr-1/verify", `{"paymentId":"pay-1"}`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"error":"payment amount does not match charge amount"}`, rec.Body.String())
}

func TestPointHandler_GetBalance(t *testing.T) {
	rec := serve(&fakeChargeService{}, http.MethodGet, "/points/balance", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"userId":"u-1","amount":6000}`, rec.Body.String())
}

func TestPaymentConfirmedHandler(t *testing.T) {
	ctx := context.Background()
	msg := kafka.Message{Value: []byte(`{"chargeRequestId":"cr-1","paymentId":"pay-1"}`)}

	svc := &fakeChargeService{}
	require.NoError(t, NewPaymentConfirmedHandler(svc).Handle(ctx, msg))
	assert.Equal(t, []string{"cr-1/pay-1"}, svc.verified)

	rejected := &fakeChargeService{verifyErr: apperr.NotFound("charge request cr-1 not found")}
	assert.NoError(t, NewPaymentConfirmedHandler(rejected).Handle(ctx, msg), "business errors are not retried")

	broken := &fakeChargeService{verifyErr: errors.New("connection refused")}
	assert.Error(t, NewPaymentConfirmedHandler(broken).Handle(ctx, msg))

	assert.Error(t, NewPaymentConfirmedHandler(svc).Handle(ctx, kafka.Message{Value: []byte(`{`)}))
	assert.Error(t, NewPaymentConfirmedHandler(svc).Handle(ctx, kafka.Message{Value: []byte(`{"paymentId":"pay-1"}`)}))
}
