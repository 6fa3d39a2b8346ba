package routineload

import (
	"encoding/json"
	"fmt"
)

type KinesisLoadInfo struct {
	Stream                 string            `json:"stream"`
	Region                 string            `json:"region,omitempty"`
	Properties             map[string]string `json:"properties,omitempty"`
	ShardStartingSequences map[string]string `json:"shard_starting_sequences"`
}

// KinesisSource 按 kinesis 分片分配的任务
type KinesisSource struct {
	shardSequences map[string]string
}

func NewKinesisSource(sequences map[string]string) *KinesisSource {
	cp := make(map[string]string, len(sequences))
	for shard, seq := range sequences {
		cp[shard] = seq
	}
	return &KinesisSource{shardSequences: cp}
}

func (s *KinesisSource) Kind() SourceKind { return SourceKinesis }

func (s *KinesisSource) BuildRequest(job *Job, base ExecutorRequest) (*ExecutorRequest, error) {
	if len(s.shardSequences) == 0 {
		return nil, fmt.Errorf("%w: task %s", ErrNoShards, base.TaskID)
	}
	seqs := make(map[string]string, len(s.shardSequences))
	for shard, seq := range s.shardSequences {
		seqs[shard] = seq
	}
	base.SourceKind = SourceKinesis
	base.Kinesis = &KinesisLoadInfo{
		Stream:                 job.stringProp(PropKinesisStream),
		Region:                 job.stringProp(PropKinesisRegion),
		Properties:             job.CustomProperties(),
		ShardStartingSequences: seqs,
	}
	return &base, nil
}

func (s *KinesisSource) Properties() string {
	data, err := json.Marshal(s.shardSequences)
	if err != nil {
		return "{}"
	}
	return string(data)
}
