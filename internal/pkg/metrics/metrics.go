// internal/pkg/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"nexus-fulfillment/internal/pkg/apperr"
)

const namespace = "fulfillment"

var (
	// OrdersTotal 按结果统计下单和订单状态变更
	OrdersTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "orders_total",
		Help:      "Order commands partitioned by operation and outcome.",
	}, []string{"operation", "outcome"})

	// CouponIssuesTotal 统计发券结果
	CouponIssuesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "coupon_issues_total",
		Help:      "Coupon issuance attempts partitioned by outcome.",
	}, []string{"outcome"})

	// ChargesTotal 统计积分充值的确认结果
	ChargesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "point_charges_total",
		Help:      "Point charge verifications partitioned by outcome.",
	}, []string{"outcome"})

	// LockWaitSeconds 是等待业务锁的耗时
	LockWaitSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "lock_wait_seconds",
		Help:      "Time spent waiting for a keyed lock.",
		Buckets:   prometheus.ExponentialBuckets(0.0005, 4, 8),
	}, []string{"scope"})

	// EventsPublishedTotal 统计领域事件的投递结果
	EventsPublishedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "events_published_total",
		Help:      "Domain events handed to the broker partitioned by topic and outcome.",
	}, []string{"topic", "outcome"})
)

// Outcome 把错误转换成指标的 outcome 标签：业务拒绝和系统错误分开统计
func Outcome(err error) string {
	switch {
	case err == nil:
		return "success"
	case apperr.KindOf(err) != 0:
		return "rejected"
	default:
		return "error"
	}
}
