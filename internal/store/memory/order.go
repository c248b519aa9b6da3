// internal/store/memory/order.go
package memory

import (
	"context"
	"slices"

	"nexus-fulfillment/internal/pkg/apperr"
	orderdomain "nexus-fulfillment/internal/service/order/domain"
)

var (
	_ orderdomain.OrderRepository = (*Store)(nil)
	_ orderdomain.CartRepository  = (*Store)(nil)
)

func cloneOrder(o orderdomain.Order) orderdomain.Order {
	o.Items = slices.Clone(o.Items)
	return o
}

func (s *Store) Save(ctx context.Context, order *orderdomain.Order) error {
	return saveRow(ctx, s, s.orders, order.ID, cloneOrder(*order))
}

func (s *Store) FindWithLock(ctx context.Context, id string) (*orderdomain.Order, error) {
	if err := s.lockRow(ctx, "order:"+id); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	if !ok {
		return nil, apperr.NotFound("order %s not found", id)
	}
	o = cloneOrder(o)
	return &o, nil
}

func (s *Store) FindByIDAndUser(ctx context.Context, id, userID string) (*orderdomain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	if !ok || o.UserID != userID {
		return nil, apperr.NotFound("order %s not found", id)
	}
	o = cloneOrder(o)
	return &o, nil
}

func (s *Store) RemoveItems(ctx context.Context, userID string, optionIDs []string) error {
	if err := s.lockRow(ctx, "cart:"+userID); err != nil {
		return err
	}
	var prev []orderdomain.CartItem
	return s.write(ctx, func() {
		prev = s.carts[userID]
		s.carts[userID] = slices.DeleteFunc(slices.Clone(prev), func(item orderdomain.CartItem) bool {
			return slices.Contains(optionIDs, item.OptionID)
		})
	}, func() {
		s.carts[userID] = prev
	})
}

// CartItems 返回用户购物车的当前内容
func (s *Store) CartItems(userID string) []orderdomain.CartItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.carts[userID])
}

// AddCartItem 向购物车加入一行（测试与演示数据使用）
func (s *Store) AddCartItem(item orderdomain.CartItem) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.carts[item.UserID] = append(s.carts[item.UserID], item)
}
