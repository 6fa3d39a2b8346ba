package routineload

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cast"
)

type JobState string

const (
	JobStateNeedSchedule JobState = "NEED_SCHEDULE"
	JobStateRunning      JobState = "RUNNING"
	JobStatePaused       JobState = "PAUSED"
	JobStateStopped      JobState = "STOPPED"
	JobStateCancelled    JobState = "CANCELLED"
)

func (s JobState) IsFinal() bool {
	return s == JobStateStopped || s == JobStateCancelled
}

const (
	PropKafkaBrokerList  = "kafka_broker_list"
	PropKafkaTopic       = "kafka_topic"
	PropKinesisStream    = "kinesis_stream"
	PropKinesisRegion    = "kinesis_region"
	customPropertyPrefix = "property."

	DefaultTaskTimeoutSeconds = 20
)

// Job 例行导入作业，周期性产生导入任务
type Job struct {
	ID                 uint64
	CreatedAt          time.Time
	UpdatedAt          time.Time
	Name               string
	ClusterName        string
	DBID               uint64
	DBName             string
	TableName          string
	SourceKind         SourceKind
	Properties         map[string]any
	Progress           map[string]string // 分区/分片 -> 下一次消费位置
	TaskTimeoutSeconds int
	State              JobState
	Reason             string
}

func (j *Job) TaskTimeout() time.Duration {
	if j.TaskTimeoutSeconds <= 0 {
		return DefaultTaskTimeoutSeconds * time.Second
	}
	return time.Duration(j.TaskTimeoutSeconds) * time.Second
}

// IsSchedulable 作业是否可以继续产生任务
func (j *Job) IsSchedulable() bool {
	return j.State == JobStateNeedSchedule || j.State == JobStateRunning
}

// NewSource 按当前消费进度构造任务数据源
func (j *Job) NewSource() (Source, error) {
	return NewSource(j.SourceKind, j.Progress)
}

func (j *Job) Validate() error {
	if j.Name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidJob)
	}
	if j.DBID == 0 || j.DBName == "" || j.TableName == "" {
		return fmt.Errorf("%w: db and table are required", ErrInvalidJob)
	}
	if j.TaskTimeoutSeconds < 0 {
		return fmt.Errorf("%w: negative task timeout", ErrInvalidJob)
	}
	switch j.SourceKind {
	case SourceKafka:
		if j.stringProp(PropKafkaBrokerList) == "" || j.stringProp(PropKafkaTopic) == "" {
			return fmt.Errorf("%w: %s and %s are required", ErrInvalidJob, PropKafkaBrokerList, PropKafkaTopic)
		}
	case SourceKinesis:
		if j.stringProp(PropKinesisStream) == "" {
			return fmt.Errorf("%w: %s is required", ErrInvalidJob, PropKinesisStream)
		}
	default:
		return fmt.Errorf("%w: %q", ErrUnknownSourceKind, j.SourceKind)
	}
	if _, err := j.NewSource(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidJob, err)
	}
	return nil
}

func (j *Job) Pause(reason string) (*JobPatch, error) {
	if j.State == JobStatePaused {
		return nil, fmt.Errorf("%w: job %s is already paused", ErrIllegalJobState, j.Name)
	} else if j.State.IsFinal() {
		return nil, fmt.Errorf("%w: cannot pause job in state %s", ErrIllegalJobState, j.State)
	}
	j.State = JobStatePaused
	j.Reason = reason
	return NewJobPatch().WithState(j.State).WithReason(reason), nil
}

func (j *Job) Resume() (*JobPatch, error) {
	if j.State != JobStatePaused {
		return nil, fmt.Errorf("%w: cannot resume job in state %s", ErrIllegalJobState, j.State)
	}
	j.State = JobStateNeedSchedule
	j.Reason = ""
	return NewJobPatch().WithState(j.State).WithReason(""), nil
}

func (j *Job) Stop() (*JobPatch, error) {
	if j.State.IsFinal() {
		return nil, fmt.Errorf("%w: job %s is already %s", ErrIllegalJobState, j.Name, j.State)
	}
	j.State = JobStateStopped
	return NewJobPatch().WithState(j.State), nil
}

// MergeProgress 合并已提交的消费进度
func (j *Job) MergeProgress(progress map[string]string) *JobPatch {
	if j.Progress == nil {
		j.Progress = make(map[string]string, len(progress))
	}
	for k, v := range progress {
		j.Progress[k] = v
	}
	return NewJobPatch().WithProgress(j.Progress)
}

func (j *Job) stringProp(key string) string {
	v, ok := j.Properties[key]
	if !ok {
		return ""
	}
	return cast.ToString(v)
}

// CustomProperties 返回 "property." 前缀的自定义属性（已去掉前缀）
func (j *Job) CustomProperties() map[string]string {
	out := make(map[string]string)
	for k, v := range j.Properties {
		if name, ok := strings.CutPrefix(k, customPropertyPrefix); ok && name != "" {
			out[name] = cast.ToString(v)
		}
	}
	return out
}

type JobPatch struct {
	State    *JobState
	Reason   *string
	Progress *map[string]string
}

func NewJobPatch() *JobPatch {
	return &JobPatch{}
}

func (p *JobPatch) WithState(state JobState) *JobPatch {
	p.State = &state
	return p
}

func (p *JobPatch) WithReason(reason string) *JobPatch {
	p.Reason = &reason
	return p
}

func (p *JobPatch) WithProgress(progress map[string]string) *JobPatch {
	p.Progress = &progress
	return p
}
