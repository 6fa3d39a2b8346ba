package api

import (
	"time"

	"github.com/jobs/routineload/internal/biz/routineload"
	"github.com/jobs/routineload/internal/biz/txn"
	"github.com/samber/lo"
)

type JobResp struct {
	ID                 uint64            `json:"id,string"`
	Name               string            `json:"name"`
	ClusterName        string            `json:"cluster_name"`
	DBID               uint64            `json:"db_id"`
	DBName             string            `json:"db_name"`
	TableName          string            `json:"table_name"`
	SourceKind         string            `json:"source_kind"`
	Properties         map[string]any    `json:"properties"`
	Progress           map[string]string `json:"progress"`
	TaskTimeoutSeconds int               `json:"task_timeout_seconds"`
	State              string            `json:"state"`
	Reason             string            `json:"reason,omitempty"`
	CreatedAt          time.Time         `json:"created_at"`
	UpdatedAt          time.Time         `json:"updated_at"`
}

type TxnResp struct {
	ID             uint64     `json:"id,string"`
	DBID           uint64     `json:"db_id"`
	Label          string     `json:"label"`
	Coordinator    string     `json:"coordinator"`
	SourceType     string     `json:"source_type"`
	ListenerID     uint64     `json:"listener_id,string"`
	TimeoutSeconds int64      `json:"timeout_seconds"`
	Status         string     `json:"status"`
	Reason         string     `json:"reason,omitempty"`
	PrepareTime    time.Time  `json:"prepare_time"`
	CommitTime     *time.Time `json:"commit_time,omitempty"`
	FinishTime     *time.Time `json:"finish_time,omitempty"`
}

// TaskShowResp 任务展示信息，rows 的每一列与 titles 对应
type TaskShowResp struct {
	Titles []string   `json:"titles"`
	Rows   [][]string `json:"rows"`
}

func toJobResp(j *routineload.Job) JobResp {
	return JobResp{
		ID:                 j.ID,
		Name:               j.Name,
		ClusterName:        j.ClusterName,
		DBID:               j.DBID,
		DBName:             j.DBName,
		TableName:          j.TableName,
		SourceKind:         string(j.SourceKind),
		Properties:         j.Properties,
		Progress:           j.Progress,
		TaskTimeoutSeconds: j.TaskTimeoutSeconds,
		State:              string(j.State),
		Reason:             j.Reason,
		CreatedAt:          j.CreatedAt,
		UpdatedAt:          j.UpdatedAt,
	}
}

func toJobResps(jobs []*routineload.Job) []JobResp {
	return lo.Map(jobs, func(j *routineload.Job, _ int) JobResp { return toJobResp(j) })
}

func toTxnResp(t *txn.Transaction) TxnResp {
	return TxnResp{
		ID:             t.ID,
		DBID:           t.DBID,
		Label:          t.Label,
		Coordinator:    t.Coordinator,
		SourceType:     string(t.SourceType),
		ListenerID:     t.ListenerID,
		TimeoutSeconds: t.TimeoutSeconds,
		Status:         t.Status.String(),
		Reason:         t.Reason,
		PrepareTime:    t.PrepareTime,
		CommitTime:     t.CommitTime,
		FinishTime:     t.FinishTime,
	}
}

func toTaskShowResp(tasks []*routineload.Task, loc *time.Location) TaskShowResp {
	return TaskShowResp{
		Titles: routineload.TaskShowTitles,
		Rows: lo.Map(tasks, func(t *routineload.Task, _ int) []string {
			return t.ShowInfo(loc)
		}),
	}
}
