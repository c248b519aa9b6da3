package interfaces

import (
	"context"
	"net/http"
	"time"

	"nexus-fulfillment/internal/pkg/httpx"
	"nexus-fulfillment/internal/service/point/application"
	"nexus-fulfillment/internal/service/point/domain"
)

// ChargeService 是 HTTP 处理器和消费者依赖的应用服务
type ChargeService interface {
	RequestCharge(ctx context.Context, userID string, amount int64) (*domain.ChargeRequest, error)
	VerifyAndCompleteCharge(ctx context.Context, chargeRequestID, paymentID string) (*application.ChargeResult, error)
	GetBalance(ctx context.Context, userID string) (*domain.Balance, error)
}

// PointHandler 封装了 point 服务的 HTTP 处理器
type PointHandler struct {
	service ChargeService
}

// NewPointHandler 创建一个新的 HTTP 处理器实例
func NewPointHandler(service ChargeService) *PointHandler {
	return &PointHandler{service: service}
}

// RegisterRoutes 在 ServeMux 上注册所有路由
func (h *PointHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /points/charges", h.requestCharge)
	mux.HandleFunc("POST /points/charges/{id}/verify", h.verifyCharge)
	mux.HandleFunc("GET /points/balance", h.getBalance)
}

type chargeRequest struct {
	Amount int64 `json:"amount"`
}

type chargeResponse struct {
	ID        string              `json:"id"`
	Amount    int64               `json:"amount"`
	Status    domain.ChargeStatus `json:"status"`
	CreatedAt time.Time           `json:"createdAt"`
}

type verifyRequest struct {
	PaymentID string `json:"paymentId"`
}

type balanceResponse struct {
	UserID string `json:"userId"`
	Amount int64  `json:"amount"`
}

func (h *PointHandler) requestCharge(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	userID, err := httpx.UserID(r)
	if err != nil {
		httpx.WriteError(ctx, w, err)
		return
	}
	var req chargeRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteError(ctx, w, err)
		return
	}

	charge, err := h.service.RequestCharge(ctx, userID, req.Amount)
	if err != nil {
		httpx.WriteError(ctx, w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, chargeResponse{
		ID:        charge.ID,
		Amount:    charge.Amount,
		Status:    charge.Status,
		CreatedAt: charge.CreatedAt,
	})
}

func (h *PointHandler) verifyCharge(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req verifyRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteError(ctx, w, err)
		return
	}

	result, err := h.service.VerifyAndCompleteCharge(ctx, r.PathValue("id"), req.PaymentID)
	if err != nil {
		httpx.WriteError(ctx, w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, result)
}

func (h *PointHandler) getBalance(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	userID, err := httpx.UserID(r)
	if err != nil {
		httpx.WriteError(ctx, w, err)
		return
	}
	balance, err := h.service.GetBalance(ctx, userID)
	if err != nil {
		httpx.WriteError(ctx, w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, balanceResponse{UserID: balance.UserID, Amount: balance.Amount})
}
