// internal/store/memory/point.go
package memory

import (
	"context"
	"slices"

	"github.com/pkg/errors"

	"nexus-fulfillment/internal/pkg/apperr"
	pointdomain "nexus-fulfillment/internal/service/point/domain"
)

var (
	_ pointdomain.BalanceRepository       = (*Store)(nil)
	_ pointdomain.TransactionRepository   = (*Store)(nil)
	_ pointdomain.ChargeRequestRepository = (*Store)(nil)
)

func (s *Store) FindBalanceWithLock(ctx context.Context, userID string) (*pointdomain.Balance, error) {
	if err := s.lockRow(ctx, "balance:"+userID); err != nil {
		return nil, err
	}
	return s.FindBalance(ctx, userID)
}

func (s *Store) FindBalance(ctx context.Context, userID string) (*pointdomain.Balance, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.balances[userID]
	if !ok {
		return nil, apperr.NotFound("balance for user %s not found", userID)
	}
	return &b, nil
}

// CreateBalance 模拟 user_id 上的主键约束
func (s *Store) CreateBalance(ctx context.Context, balance *pointdomain.Balance) error {
	var (
		revert func()
		exists bool
	)
	err := s.write(ctx, func() {
		if _, exists = s.balances[balance.UserID]; exists {
			revert = func() {}
			return
		}
		revert = putRow(s.balances, balance.UserID, *balance)
	}, func() {
		revert()
	})
	if err != nil {
		return err
	}
	if exists {
		return errors.WithStack(pointdomain.ErrBalanceExists)
	}
	return nil
}

func (s *Store) SaveBalance(ctx context.Context, balance *pointdomain.Balance) error {
	s.mu.Lock()
	_, ok := s.balances[balance.UserID]
	s.mu.Unlock()
	if !ok {
		return apperr.NotFound("balance for user %s not found", balance.UserID)
	}
	return saveRow(ctx, s, s.balances, balance.UserID, *balance)
}

func (s *Store) CreateTransaction(ctx context.Context, tx *pointdomain.PointTransaction) error {
	record := *tx
	return s.write(ctx, func() {
		s.transactions = append(s.transactions, record)
	}, func() {
		s.transactions = slices.DeleteFunc(s.transactions, func(t pointdomain.PointTransaction) bool {
			return t.ID == record.ID
		})
	})
}

// Transactions 返回用户的积分流水，按写入顺序排列
func (s *Store) Transactions(userID string) []pointdomain.PointTransaction {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []pointdomain.PointTransaction
	for _, t := range s.transactions {
		if t.UserID == userID {
			out = append(out, t)
		}
	}
	return out
}

func (s *Store) SaveChargeRequest(ctx context.Context, req *pointdomain.ChargeRequest) error {
	return saveRow(ctx, s, s.chargeRequests, req.ID, *req)
}

func (s *Store) FindChargeRequest(ctx context.Context, id string) (*pointdomain.ChargeRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	req, ok := s.chargeRequests[id]
	if !ok {
		return nil, apperr.NotFound("charge request %s not found", id)
	}
	return &req, nil
}

func (s *Store) FindChargeRequestWithLock(ctx context.Context, id string) (*pointdomain.ChargeRequest, error) {
	if err := s.lockRow(ctx, "charge:"+id); err != nil {
		return nil, err
	}
	return s.FindChargeRequest(ctx, id)
}

func (s *Store) UpdateChargeRequestStatus(ctx context.Context, req *pointdomain.ChargeRequest) error {
	s.mu.Lock()
	_, ok := s.chargeRequests[req.ID]
	s.mu.Unlock()
	if !ok {
		return apperr.NotFound("charge request %s not found", req.ID)
	}
	return saveRow(ctx, s, s.chargeRequests, req.ID, *req)
}
