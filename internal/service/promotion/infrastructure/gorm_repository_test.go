package infrastructure

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nexus-fulfillment/internal/pkg/database/databasetest"
	"nexus-fulfillment/internal/service/promotion/domain"
)

func TestGormCouponRepository_LockingReads(t *testing.T) {
	db, rec := databasetest.DryRun(t)
	repo := NewGormCouponRepository(db)
	ctx := context.Background()

	_, err := repo.FindCouponWithLock(ctx, "c-1")
	require.NoError(t, err)
	assert.Contains(t, rec.Last(), "FROM `coupon`")
	assert.Contains(t, rec.Last(), "FOR UPDATE")

	_, err = repo.FindUserCouponWithLock(ctx, "uc-1")
	require.NoError(t, err)
	assert.Contains(t, rec.Last(), "FROM `user_coupon`")
	assert.Contains(t, rec.Last(), "FOR UPDATE")

	_, err = repo.FindCoupon(ctx, "c-1")
	require.NoError(t, err)
	assert.NotContains(t, rec.Last(), "FOR UPDATE")
}

func TestGormCouponRepository_ExistsUserCoupon(t *testing.T) {
	db, rec := databasetest.DryRun(t)
	repo := NewGormCouponRepository(db)

	_, err := repo.ExistsUserCoupon(context.Background(), "c-1", "u-1")
	require.NoError(t, err)
	assert.Contains(t, rec.Last(), "count(*)")
	assert.Contains(t, rec.Last(), "coupon_id = 'c-1' AND user_id = 'u-1'")
}

func TestGormCouponRepository_CreateUserCouponIsPlainInsert(t *testing.T) {
	db, rec := databasetest.DryRun(t)
	repo := NewGormCouponRepository(db)
	now := time.Date(2025, 6, 15, 10, 0, 0, 0, time.UTC)

	uc := &domain.UserCoupon{ID: "uc-2", CouponID: "c-1", UserID: "u-1", IssuedAt: now, ValidFrom: now, ValidTo: now.Add(time.Hour)}
	require.NoError(t, repo.CreateUserCoupon(context.Background(), uc))

	require.Len(t, rec.Statements(), 1)
	stmt := rec.Last()
	assert.Contains(t, stmt, "INSERT INTO `user_coupon`")
	assert.NotContains(t, stmt, "ON DUPLICATE KEY")
	assert.NotContains(t, stmt, "UPDATE `user_coupon`")
}

func TestGormCouponRepository_SaveUserCouponUpdatesUsage(t *testing.T) {
	db, rec := databasetest.DryRun(t)
	repo := NewGormCouponRepository(db)
	now := time.Date(2025, 6, 15, 10, 0, 0, 0, time.UTC)

	uc := &domain.UserCoupon{ID: "uc-1", CouponID: "c-1", UserID: "u-1", IssuedAt: now, ValidFrom: now, ValidTo: now.Add(time.Hour)}
	require.NoError(t, uc.Use("o-1", now))
	require.NoError(t, repo.SaveUserCoupon(context.Background(), uc))

	require.Len(t, rec.Statements(), 1)
	stmt := rec.Last()
	assert.Contains(t, stmt, "UPDATE `user_coupon`")
	assert.Contains(t, stmt, "`order_id`='o-1'")
	assert.Contains(t, stmt, "id = 'uc-1'")
	assert.NotContains(t, stmt, "INSERT")
	assert.NotContains(t, stmt, "`coupon_id`=")
}

func TestUserCouponMapper_NullableColumns(t *testing.T) {
	now := time.Date(2025, 6, 15, 10, 0, 0, 0, time.UTC)
	uc := &domain.UserCoupon{ID: "uc-1", CouponID: "c-1", UserID: "u-1", IssuedAt: now, ValidFrom: now, ValidTo: now.Add(time.Hour)}

	model := FromDomainUserCoupon(uc)
	assert.False(t, model.UsedAt.Valid)
	assert.False(t, model.OrderID.Valid)
	assert.Equal(t, uc, ToDomainUserCoupon(model))

	require.NoError(t, uc.Use("o-1", now))
	model = FromDomainUserCoupon(uc)
	assert.True(t, model.UsedAt.Valid)
	assert.Equal(t, "o-1", model.OrderID.String)

	back := ToDomainUserCoupon(model)
	require.NotNil(t, back.OrderID)
	assert.Equal(t, "o-1", *back.OrderID)
	assert.Equal(t, now, *back.UsedAt)
}
