package scheduler

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics 调度器指标，reg 为 nil 时不注册
type Metrics struct {
	TasksInPool   prometheus.Gauge
	BeginTxnTotal *prometheus.CounterVec
	TimeoutTotal  prometheus.Counter
	DispatchTotal *prometheus.CounterVec
	TxnStatus     *prometheus.CounterVec
	IsLeader      prometheus.Gauge
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	return &Metrics{
		TasksInPool: promauto.With(reg).NewGauge(prometheus.GaugeOpts{
			Namespace: "routineload",
			Name:      "tasks_in_pool",
			Help:      "Number of routine load tasks held by the scheduler",
		}),
		BeginTxnTotal: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Namespace: "routineload",
			Name:      "begin_txn_total",
			Help:      "Transaction begin attempts by result",
		}, []string{"result"}),
		TimeoutTotal: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Namespace: "routineload",
			Name:      "task_timeout_total",
			Help:      "Routine load tasks replaced after timing out",
		}),
		DispatchTotal: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Namespace: "routineload",
			Name:      "dispatch_total",
			Help:      "Task dispatches to executors by executor and result",
		}, []string{"be_id", "result"}),
		TxnStatus: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Namespace: "routineload",
			Name:      "txn_status_events_total",
			Help:      "Transaction status events applied to tasks",
		}, []string{"status"}),
		IsLeader: promauto.With(reg).NewGauge(prometheus.GaugeOpts{
			Namespace: "routineload",
			Name:      "scheduler_is_leader",
			Help:      "1 when this instance holds the scheduler lock",
		}),
	}
}
