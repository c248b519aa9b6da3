package interfaces

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nexus-fulfillment/internal/pkg/apperr"
	"nexus-fulfillment/internal/pkg/auth"
	"nexus-fulfillment/internal/service/promotion/domain"
)

var fixedNow = time.Date(2025, 6, 15, 10, 0, 0, 0, time.UTC)

type fakeIssuanceService struct {
	issued   map[string]bool
	issuedAt time.Time
}

func (f *fakeIssuanceService) IssueCoupon(ctx context.Context, couponID, userID string, issuedAt time.Time) (*domain.UserCoupon, error) {
	if couponID == "missing" {
		return nil, apperr.NotFound("coupon %s not found", couponID)
	}
	key := couponID + "/" + userID
	if f.issued[key] {
		return nil, errors.WithStack(domain.ErrAlreadyIssued)
	}
	f.issued[key] = true
	f.issuedAt = issuedAt
	return &domain.UserCoupon{ID: "uc-1", CouponID: couponID, UserID: userID, IssuedAt: issuedAt}, nil
}

func (f *fakeIssuanceService) ListUserCoupons(ctx context.Context, userID string) ([]*domain.UserCoupon, error) {
	return []*domain.UserCoupon{{ID: "uc-1", CouponID: "c-1", UserID: userID}}, nil
}

func newMux(svc IssuanceService) *http.ServeMux {
	h := NewPromotionHandler(svc)
	h.now = func() time.Time { return fixedNow }
	mux := http.NewServeMux()
	h.RegisterRoutes(mux)
	return mux
}

func do(mux *http.ServeMux, method, target, userID string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, nil)
	if userID != "" {
		req = req.WithContext(auth.WithUserID(req.Context(), userID))
	}
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

func TestPromotionHandler_IssueCoupon(t *testing.T) {
	svc := &fakeIssuanceService{issued: map[string]bool{}}
	mux := newMux(svc)

	rec := do(mux, http.MethodPost, "/coupons/c-1/issue", "u-1")
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, fixedNow, svc.issuedAt)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "c-1", body["couponId"])

	rec = do(mux, http.MethodPost, "/coupons/c-1/issue", "u-1")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"error":"already issued"}`, rec.Body.String())
}

func TestPromotionHandler_RequiresUser(t *testing.T) {
	mux := newMux(&fakeIssuanceService{issued: map[string]bool{}})

	rec := do(mux, http.MethodPost, "/coupons/c-1/issue", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPromotionHandler_UnknownCoupon(t *testing.T) {
	mux := newMux(&fakeIssuanceService{issued: map[string]bool{}})

	rec := do(mux, http.MethodPost, "/coupons/missing/issue", "u-1")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.JSONEq(t, `{"error":"coupon missing not found"}`, rec.Body.String())
}

func TestPromotionHandler_ListMine(t *testing.T) {
	mux := newMux(&fakeIssuanceService{issued: map[string]bool{}})

	rec := do(mux, http.MethodGet, "/coupons/mine", "u-1")
	require.Equal(t, http.StatusOK, rec.Code)

	var body []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body, 1)
	assert.Equal(t, "uc-1", body[0]["id"])
}
