package interfaces

import (
	"context"
	"net/http"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"nexus-fulfillment/internal/pkg/httpx"
	"nexus-fulfillment/internal/service/order/application"
	"nexus-fulfillment/internal/service/order/domain"
)

// OrderService 是 HTTP 处理器依赖的应用服务
type OrderService interface {
	CreateOrder(ctx context.Context, cmd application.CreateOrderCommand) (*domain.Order, error)
	UpdateOrderStatus(ctx context.Context, userID, orderID, status string) (*domain.Order, error)
	GetOrder(ctx context.Context, userID, orderID string) (*domain.Order, error)
}

// OrderHandler 封装了 order 服务的 HTTP 处理器
type OrderHandler struct {
	service OrderService
}

// NewOrderHandler 创建一个新的 HTTP 处理器实例
func NewOrderHandler(service OrderService) *OrderHandler {
	return &OrderHandler{service: service}
}

// RegisterRoutes 在 ServeMux 上注册所有路由
func (h *OrderHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /orders", h.createOrder)
	mux.HandleFunc("GET /orders/{id}", h.getOrder)
	mux.HandleFunc("PATCH /orders/{id}/status", h.updateStatus)
}

type orderItemResponse struct {
	OptionID    string `json:"optionId"`
	ProductID   string `json:"productId"`
	ProductName string `json:"productName"`
	OptionName  string `json:"optionName"`
	UnitPrice   int64  `json:"unitPrice"`
	Quantity    int64  `json:"quantity"`
}

type orderResponse struct {
	ID            string              `json:"id"`
	UserID        string              `json:"userId"`
	Status        domain.State        `json:"status"`
	TotalPrice    int64               `json:"totalPrice"`
	DiscountPrice int64               `json:"discountPrice"`
	FinalPrice    int64               `json:"finalPrice"`
	UserCouponID  *string             `json:"userCouponId,omitempty"`
	Items         []orderItemResponse `json:"items"`
	CreatedAt     time.Time           `json:"createdAt"`
	UpdatedAt     time.Time           `json:"updatedAt"`
}

func toOrderResponse(o *domain.Order) orderResponse {
	items := make([]orderItemResponse, len(o.Items))
	for i, item := range o.Items {
		items[i] = orderItemResponse{
			OptionID:    item.OptionID,
			ProductID:   item.ProductID,
			ProductName: item.ProductName,
			OptionName:  item.OptionName,
			UnitPrice:   item.UnitPrice,
			Quantity:    item.Quantity,
		}
	}
	return orderResponse{
		ID:            o.ID,
		UserID:        o.UserID,
		Status:        o.Status,
		TotalPrice:    o.TotalPrice,
		DiscountPrice: o.DiscountPrice,
		FinalPrice:    o.FinalPrice,
		UserCouponID:  o.UserCouponID,
		Items:         items,
		CreatedAt:     o.CreatedAt,
		UpdatedAt:     o.UpdatedAt,
	}
}

func (h *OrderHandler) createOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	userID, err := httpx.UserID(r)
	if err != nil {
		httpx.WriteError(ctx, w, err)
		return
	}
	var cmd application.CreateOrderCommand
	if err := httpx.DecodeJSON(r, &cmd); err != nil {
		httpx.WriteError(ctx, w, err)
		return
	}
	cmd.UserID = userID

	order, err := h.service.CreateOrder(ctx, cmd)
	if err != nil {
		httpx.WriteError(ctx, w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, toOrderResponse(order))
}

func (h *OrderHandler) getOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	userID, err := httpx.UserID(r)
	if err != nil {
		httpx.WriteError(ctx, w, err)
		return
	}
	order, err := h.service.GetOrder(ctx, userID, r.PathValue("id"))
	if err != nil {
		httpx.WriteError(ctx, w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, toOrderResponse(order))
}

type updateStatusRequest struct {
	Status string `json:"status"`
}

func (h *OrderHandler) updateStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	userID, err := httpx.UserID(r)
	if err != nil {
		httpx.WriteError(ctx, w, err)
		return
	}
	var req updateStatusRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteError(ctx, w, err)
		return
	}

	trace.SpanFromContext(ctx).SetAttributes(attribute.String("order.target_status", req.Status))

	order, err := h.service.UpdateOrderStatus(ctx, userID, r.PathValue("id"), req.Status)
	if err != nil {
		httpx.WriteError(ctx, w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, toOrderResponse(order))
}
