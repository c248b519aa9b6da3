// Package databasetest 提供不连接数据库的 gorm 句柄，用于断言仓储生成的 SQL。
package databasetest

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// Recorder 是记录每条 SQL 的 gorm logger
type Recorder struct {
	mu    sync.Mutex
	stmts []string
}

func (r *Recorder) LogMode(gormlogger.LogLevel) gormlogger.Interface { return r }

func (r *Recorder) Info(context.Context, string, ...any) {}

func (r *Recorder) Warn(context.Context, string, ...any) {}

func (r *Recorder) Error(context.Context, string, ...any) {}

func (r *Recorder) Trace(ctx context.Context, begin time.Time, fc func() (string, int64), err error) {
	sql, _ := fc()
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stmts = append(r.stmts, sql)
}

// Statements 返回已记录的 SQL
func (r *Recorder) Statements() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.stmts...)
}

// Last 返回最后一条 SQL
func (r *Recorder) Last() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.stmts) == 0 {
		return ""
	}
	return r.stmts[len(r.stmts)-1]
}

// Contains 报告是否有 SQL 包含 fragment
func (r *Recorder) Contains(fragment string) bool {
	for _, stmt := range r.Statements() {
		if strings.Contains(stmt, fragment) {
			return true
		}
	}
	return false
}

// DryRun 返回一个 MySQL 方言的 DryRun 句柄：只生成 SQL，不访问数据库。
func DryRun(t testing.TB) (*gorm.DB, *Recorder) {
	t.Helper()

	rec := &Recorder{}
	db, err := gorm.Open(mysql.New(mysql.Config{
		DSN:                       "fulfillment:secret@tcp(127.0.0.1:3306)/fulfillment?parseTime=true",
		SkipInitializeWithVersion: true,
	}), &gorm.Config{
		DryRun:                 true,
		DisableAutomaticPing:   true,
		SkipDefaultTransaction: true,
		Logger:                 rec,
	})
	require.NoError(t, err)
	return db, rec
}
