package routineload

import (
	"context"
	"fmt"
)

// ExecutorRequest 下发给执行节点的导入任务
type ExecutorRequest struct {
	TaskID         string           `json:"task_id"`
	Label          string           `json:"label"`
	TxnID          int64            `json:"txn_id"`
	JobID          uint64           `json:"job_id"`
	ClusterName    string           `json:"cluster_name"`
	DBID           uint64           `json:"db_id"`
	DBName         string           `json:"db_name"`
	TableName      string           `json:"table_name"`
	BeID           int64            `json:"be_id"`
	TimeoutSeconds int64            `json:"timeout_seconds"`
	SourceKind     SourceKind       `json:"source_kind"`
	Kafka          *KafkaLoadInfo   `json:"kafka,omitempty"`
	Kinesis        *KinesisLoadInfo `json:"kinesis,omitempty"`
}

// BuildExecutorRequest 构造下发给执行节点的请求，必须在事务开启之后调用
func (t *Task) BuildExecutorRequest(ctx context.Context, jobs JobRegistry) (*ExecutorRequest, error) {
	if !t.HasTxn() {
		return nil, fmt.Errorf("%w: task %s", ErrTxnNotBegun, t.id)
	}
	job, err := jobs.ResolveJob(ctx, t.jobID)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve job %d of task %s: %w", t.jobID, t.id, err)
	}
	base := ExecutorRequest{
		TaskID:         t.id.String(),
		Label:          t.Label(),
		TxnID:          t.TxnID(),
		JobID:          t.jobID,
		ClusterName:    t.clusterName,
		DBID:           job.DBID,
		DBName:         job.DBName,
		TableName:      job.TableName,
		BeID:           t.BeID(),
		TimeoutSeconds: int64(t.timeout.Seconds()),
	}
	return t.source.BuildRequest(job, base)
}
