// internal/store/memory/promotion.go
package memory

import (
	"context"
	"slices"
	"sort"

	"github.com/pkg/errors"

	"nexus-fulfillment/internal/pkg/apperr"
	promotiondomain "nexus-fulfillment/internal/service/promotion/domain"
)

var _ promotiondomain.CouponRepository = (*Store)(nil)

func (s *Store) FindCouponWithLock(ctx context.Context, id string) (*promotiondomain.Coupon, error) {
	if err := s.lockRow(ctx, "coupon:"+id); err != nil {
		return nil, err
	}
	return s.FindCoupon(ctx, id)
}

func (s *Store) FindCoupon(ctx context.Context, id string) (*promotiondomain.Coupon, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.coupons[id]
	if !ok {
		return nil, apperr.NotFound("coupon %s not found", id)
	}
	return &c, nil
}

func (s *Store) SaveCoupon(ctx context.Context, coupon *promotiondomain.Coupon) error {
	return saveRow(ctx, s, s.coupons, coupon.ID, *coupon)
}

func (s *Store) ExistsUserCoupon(ctx context.Context, couponID, userID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.findIssuedLocked(couponID, userID) != "", nil
}

// findIssuedLocked 返回 (couponID, userID) 对应的用户券 ID，调用方必须持有 s.mu
func (s *Store) findIssuedLocked(couponID, userID string) string {
	for id, uc := range s.userCoupons {
		if uc.CouponID == couponID && uc.UserID == userID {
			return id
		}
	}
	return ""
}

func (s *Store) FindUserCoupon(ctx context.Context, id string) (*promotiondomain.UserCoupon, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	uc, ok := s.userCoupons[id]
	if !ok {
		return nil, apperr.NotFound("user coupon %s not found", id)
	}
	return &uc, nil
}

func (s *Store) FindUserCouponWithLock(ctx context.Context, id string) (*promotiondomain.UserCoupon, error) {
	if err := s.lockRow(ctx, "user_coupon:"+id); err != nil {
		return nil, err
	}
	return s.FindUserCoupon(ctx, id)
}

func (s *Store) FindUserCouponsByUser(ctx context.Context, userID string) ([]*promotiondomain.UserCoupon, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*promotiondomain.UserCoupon
	for _, uc := range s.userCoupons {
		if uc.UserID == userID {
			uc := uc
			out = append(out, &uc)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].IssuedAt.Before(out[j].IssuedAt) })
	return out, nil
}

// CreateUserCoupon 模拟 (coupon_id, user_id) 上的唯一索引
func (s *Store) CreateUserCoupon(ctx context.Context, uc *promotiondomain.UserCoupon) error {
	var (
		revert    func()
		duplicate bool
	)
	err := s.write(ctx, func() {
		if s.findIssuedLocked(uc.CouponID, uc.UserID) != "" {
			duplicate = true
			revert = func() {}
			return
		}
		revert = putRow(s.userCoupons, uc.ID, *uc)
	}, func() {
		revert()
	})
	if err != nil {
		return err
	}
	if duplicate {
		return errors.WithStack(promotiondomain.ErrAlreadyIssued)
	}
	return nil
}

func (s *Store) SaveUserCoupon(ctx context.Context, uc *promotiondomain.UserCoupon) error {
	s.mu.Lock()
	_, ok := s.userCoupons[uc.ID]
	s.mu.Unlock()
	if !ok {
		return apperr.NotFound("user coupon %s not found", uc.ID)
	}
	return saveRow(ctx, s, s.userCoupons, uc.ID, *uc)
}

func (s *Store) SaveHistory(ctx context.Context, history *promotiondomain.CouponHistory) error {
	record := *history
	return s.write(ctx, func() {
		s.histories = append(s.histories, record)
	}, func() {
		s.histories = slices.DeleteFunc(s.histories, func(h promotiondomain.CouponHistory) bool {
			return h.ID == record.ID
		})
	})
}

// Histories 返回某张用户券的核销记录
func (s *Store) Histories(userCouponID string) []promotiondomain.CouponHistory {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []promotiondomain.CouponHistory
	for _, h := range s.histories {
		if h.UserCouponID == userCouponID {
			out = append(out, h)
		}
	}
	return out
}
