package txctx

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"nexus-fulfillment/internal/pkg/database/databasetest"
)

// withGormTx 把 db 当作已经开启的事务放进 ctx
func withGormTx(db *gorm.DB) context.Context {
	return context.WithValue(context.Background(), ctxKey{}, &state{tx: &GormTx{db: db}})
}

func TestSavepoint_WithoutTransactionRunsDirectly(t *testing.T) {
	db, rec := databasetest.DryRun(t)

	err := Savepoint(context.Background(), db, "cart", func(db *gorm.DB) error {
		return db.Exec("DELETE FROM cart_item").Error
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"DELETE FROM cart_item"}, rec.Statements())
}

func TestSavepoint_KeepsOuterTransactionOnSuccess(t *testing.T) {
	db, rec := databasetest.DryRun(t)

	err := Savepoint(withGormTx(db), db, "cart", func(db *gorm.DB) error {
		return db.Exec("DELETE FROM cart_item").Error
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"SAVEPOINT cart", "DELETE FROM cart_item"}, rec.Statements())
}

func TestSavepoint_RollsBackToSavepointOnFailure(t *testing.T) {
	db, rec := databasetest.DryRun(t)
	errTimeout := errors.New("lock wait timeout")

	err := Savepoint(withGormTx(db), db, "cart", func(db *gorm.DB) error {
		db.Exec("DELETE FROM cart_item")
		return errTimeout
	})
	require.ErrorIs(t, err, errTimeout)
	assert.Equal(t, []string{"SAVEPOINT cart", "DELETE FROM cart_item", "ROLLBACK TO SAVEPOINT cart"}, rec.Statements())
}
