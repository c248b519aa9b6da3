// internal/store/memory/product.go
package memory

import (
	"context"

	"nexus-fulfillment/internal/pkg/apperr"
	productdomain "nexus-fulfillment/internal/service/product/domain"
)

var _ productdomain.OptionRepository = (*Store)(nil)

func (s *Store) FindOptionWithLock(ctx context.Context, id string) (*productdomain.Option, error) {
	if err := s.lockRow(ctx, "option:"+id); err != nil {
		return nil, err
	}
	return s.FindOption(ctx, id)
}

func (s *Store) FindOption(ctx context.Context, id string) (*productdomain.Option, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.options[id]
	if !ok {
		return nil, apperr.NotFound("option %s not found", id)
	}
	return &o, nil
}

func (s *Store) SaveOption(ctx context.Context, option *productdomain.Option) error {
	return saveRow(ctx, s, s.options, option.ID, *option)
}
