package metrics

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	bookingWrites = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "deptdesk",
			Name:      "booking_writes_total",
			Help:      "Hall booking writes by operation and outcome.",
		},
		[]string{"operation", "outcome"},
	)

	ownershipDenied = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "deptdesk",
			Name:      "ownership_denied_total",
			Help:      "Mutations refused because the caller does not own the resource.",
		},
		[]string{"resource"},
	)

	hallLockBusy = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "deptdesk",
			Name:      "hall_lock_busy_total",
			Help:      "Booking writes rejected because another write held the hall/date lock.",
		},
	)

	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "deptdesk",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route and status.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "route", "status"},
	)
)

// Register 向默认 registry 注册指标（幂等）
func Register() {
	once.Do(func() {
		prometheus.MustRegister(bookingWrites, ownershipDenied, hallLockBusy, httpDuration)
	})
}

// ObserveBookingWrite 统计一次创建/更新/删除
// outcome 为 "ok" 或拒绝类型，如 "hall_conflict"
func ObserveBookingWrite(operation, outcome string) {
	bookingWrites.WithLabelValues(operation, outcome).Inc()
}

// IncOwnershipDenied 统计非创建者被拒绝的次数
func IncOwnershipDenied(resource string) {
	ownershipDenied.WithLabelValues(resource).Inc()
}

// IncHallLockBusy 统计因锁竞争被拒绝的写入
func IncHallLockBusy() {
	hallLockBusy.Inc()
}

// ObserveHTTPRequest 记录一次请求耗时
// route 为匹配的路由模式而非原始路径，以限制标签基数
func ObserveHTTPRequest(method, route string, status int, elapsed time.Duration) {
	if route == "" {
		route = "unmatched"
	}
	httpDuration.WithLabelValues(method, route, strconv.Itoa(status)).Observe(elapsed.Seconds())
}
