package routineload

import "fmt"

type SourceKind string

const (
	SourceKafka   SourceKind = "KAFKA"
	SourceKinesis SourceKind = "KINESIS"
)

func (k SourceKind) Valid() bool {
	switch k {
	case SourceKafka, SourceKinesis:
		return true
	default:
		return false
	}
}

// Source 不同数据源任务的差异部分
type Source interface {
	Kind() SourceKind
	// BuildRequest 在公共请求上补充数据源相关的执行参数
	BuildRequest(job *Job, base ExecutorRequest) (*ExecutorRequest, error)
	// Properties 任务数据源属性，用于展示
	Properties() string
}

var (
	_ Source = (*KafkaSource)(nil)
	_ Source = (*KinesisSource)(nil)
)

// NewSource 由作业的消费进度构造对应数据源
func NewSource(kind SourceKind, progress map[string]string) (Source, error) {
	switch kind {
	case SourceKafka:
		offsets, err := parseKafkaProgress(progress)
		if err != nil {
			return nil, err
		}
		return NewKafkaSource(offsets), nil
	case SourceKinesis:
		return NewKinesisSource(progress), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownSourceKind, kind)
	}
}
