package routineload

import (
	"time"

	"go.uber.org/zap"
)

// IsTimeout 事务已提交或已可见的任务永不超时；未下发的任务也不超时
func (t *Task) IsTimeout(now time.Time) bool {
	if t.TxnStatus().IsDurable() {
		return false
	}
	start := t.executeStartTimeMs.Load()
	if start <= 0 {
		return false
	}
	if now.UnixMilli()-start >= t.timeout.Milliseconds() {
		t.logger.Debug("task is timeout",
			zap.String("task_id", t.id.String()),
			zap.Int64("start", start),
			zap.Int64("timeout_ms", t.timeout.Milliseconds()))
		return true
	}
	return false
}
