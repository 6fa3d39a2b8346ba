package txn

import (
	"fmt"
	"strings"
)

type Status string

const (
	StatusUnknown   Status = "UNKNOWN"
	StatusPrepare   Status = "PREPARE"
	StatusCommitted Status = "COMMITTED"
	StatusVisible   Status = "VISIBLE"
	StatusAborted   Status = "ABORTED"
)

func (s Status) String() string {
	return string(s)
}

func (s Status) Valid() bool {
	switch s {
	case StatusUnknown, StatusPrepare, StatusCommitted, StatusVisible, StatusAborted:
		return true
	default:
		return false
	}
}

// IsFinal 事务已结束，不会再变化
func (s Status) IsFinal() bool {
	return s == StatusVisible || s == StatusAborted
}

// IsDurable 数据已持久化（已提交或已可见）
func (s Status) IsDurable() bool {
	return s == StatusCommitted || s == StatusVisible
}

func ParseStatus(s string) (Status, error) {
	st := Status(strings.ToUpper(strings.TrimSpace(s)))
	if !st.Valid() {
		return StatusUnknown, fmt.Errorf("%w: unknown txn status %q", ErrAnalysis, s)
	}
	return st, nil
}

// SourceType 标识开启事务的导入来源
type SourceType string

const (
	SourceFrontend         SourceType = "FRONTEND"
	SourceBackendStreaming SourceType = "BACKEND_STREAMING"
	SourceInsertStreaming  SourceType = "INSERT_STREAMING"
	SourceRoutineLoadTask  SourceType = "ROUTINE_LOAD_TASK"
	SourceBatchLoadJob     SourceType = "BATCH_LOAD_JOB"
)

func (s SourceType) Valid() bool {
	switch s {
	case SourceFrontend, SourceBackendStreaming, SourceInsertStreaming, SourceRoutineLoadTask, SourceBatchLoadJob:
		return true
	default:
		return false
	}
}
