package routineload

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/spf13/cast"
)

type KafkaLoadInfo struct {
	Brokers              string            `json:"brokers"`
	Topic                string            `json:"topic"`
	Properties           map[string]string `json:"properties,omitempty"`
	PartitionBeginOffset map[int32]int64   `json:"partition_begin_offset"`
}

// KafkaSource 按 kafka 分区分配的任务
type KafkaSource struct {
	partitionOffsets map[int32]int64
}

func NewKafkaSource(offsets map[int32]int64) *KafkaSource {
	cp := make(map[int32]int64, len(offsets))
	for p, o := range offsets {
		cp[p] = o
	}
	return &KafkaSource{partitionOffsets: cp}
}

func (s *KafkaSource) Kind() SourceKind { return SourceKafka }

func (s *KafkaSource) Partitions() []int32 {
	out := make([]int32, 0, len(s.partitionOffsets))
	for p := range s.partitionOffsets {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func (s *KafkaSource) Offsets() map[int32]int64 {
	cp := make(map[int32]int64, len(s.partitionOffsets))
	for p, o := range s.partitionOffsets {
		cp[p] = o
	}
	return cp
}

func (s *KafkaSource) BuildRequest(job *Job, base ExecutorRequest) (*ExecutorRequest, error) {
	if len(s.partitionOffsets) == 0 {
		return nil, fmt.Errorf("%w: task %s", ErrNoPartitions, base.TaskID)
	}
	base.SourceKind = SourceKafka
	base.Kafka = &KafkaLoadInfo{
		Brokers:              job.stringProp(PropKafkaBrokerList),
		Topic:                job.stringProp(PropKafkaTopic),
		Properties:           job.CustomProperties(),
		PartitionBeginOffset: s.Offsets(),
	}
	return &base, nil
}

func (s *KafkaSource) Properties() string {
	data, err := json.Marshal(s.partitionOffsets)
	if err != nil {
		return "{}"
	}
	return string(data)
}

func parseKafkaProgress(progress map[string]string) (map[int32]int64, error) {
	offsets := make(map[int32]int64, len(progress))
	for k, v := range progress {
		partition, err := cast.ToInt32E(k)
		if err != nil || partition < 0 {
			return nil, fmt.Errorf("invalid kafka partition %q", k)
		}
		offset, err := cast.ToInt64E(v)
		if err != nil {
			return nil, fmt.Errorf("invalid offset %q of kafka partition %d", v, partition)
		}
		offsets[partition] = offset
	}
	return offsets, nil
}
