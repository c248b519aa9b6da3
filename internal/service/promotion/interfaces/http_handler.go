package interfaces

import (
	"context"
	"net/http"
	"time"

	"nexus-fulfillment/internal/pkg/httpx"
	"nexus-fulfillment/internal/service/promotion/domain"
)

// IssuanceService 是 HTTP 处理器依赖的应用服务
type IssuanceService interface {
	IssueCoupon(ctx context.Context, couponID, userID string, issuedAt time.Time) (*domain.UserCoupon, error)
	ListUserCoupons(ctx context.Context, userID string) ([]*domain.UserCoupon, error)
}

// PromotionHandler 封装了 promotion 服务的 HTTP 处理器
type PromotionHandler struct {
	service IssuanceService
	now     func() time.Time
}

// NewPromotionHandler 创建一个新的 HTTP 处理器实例
func NewPromotionHandler(service IssuanceService) *PromotionHandler {
	return &PromotionHandler{service: service, now: time.Now}
}

// RegisterRoutes 在 ServeMux 上注册所有路由
func (h *PromotionHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /coupons/{id}/issue", h.issueCoupon)
	mux.HandleFunc("GET /coupons/mine", h.listMine)
}

type userCouponResponse struct {
	ID        string     `json:"id"`
	CouponID  string     `json:"couponId"`
	IssuedAt  time.Time  `json:"issuedAt"`
	ValidFrom time.Time  `json:"validFrom"`
	ValidTo   time.Time  `json:"validTo"`
	UsedAt    *time.Time `json:"usedAt,omitempty"`
	OrderID   *string    `json:"orderId,omitempty"`
}

func toUserCouponResponse(uc *domain.UserCoupon) userCouponResponse {
	return userCouponResponse{
		ID:        uc.ID,
		CouponID:  uc.CouponID,
		IssuedAt:  uc.IssuedAt,
		ValidFrom: uc.ValidFrom,
		ValidTo:   uc.ValidTo,
		UsedAt:    uc.UsedAt,
		OrderID:   uc.OrderID,
	}
}

func (h *PromotionHandler) issueCoupon(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	userID, err := httpx.UserID(r)
	if err != nil {
		httpx.WriteError(ctx, w, err)
		return
	}
	uc, err := h.service.IssueCoupon(ctx, r.PathValue("id"), userID, h.now())
	if err != nil {
		httpx.WriteError(ctx, w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, toUserCouponResponse(uc))
}

func (h *PromotionHandler) listMine(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	userID, err := httpx.UserID(r)
	if err != nil {
		httpx.WriteError(ctx, w, err)
		return
	}
	coupons, err := h.service.ListUserCoupons(ctx, userID)
	if err != nil {
		httpx.WriteError(ctx, w, err)
		return
	}
	resp := make([]userCouponResponse, len(coupons))
	for i, uc := range coupons {
		resp[i] = toUserCouponResponse(uc)
	}
	httpx.WriteJSON(w, http.StatusOK, resp)
}
