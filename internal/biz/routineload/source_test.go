package routineload

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSource(t *testing.T) {
	src, err := NewSource(SourceKafka, map[string]string{"2": "30", "0": "10"})
	require.NoError(t, err)
	kafka, ok := src.(*KafkaSource)
	require.True(t, ok)
	assert.Equal(t, []int32{0, 2}, kafka.Partitions())
	assert.Equal(t, map[int32]int64{0: 10, 2: 30}, kafka.Offsets())

	src, err = NewSource(SourceKinesis, map[string]string{"shardId-000": "4955"})
	require.NoError(t, err)
	assert.Equal(t, SourceKinesis, src.Kind())
	assert.Equal(t, `{"shardId-000":"4955"}`, src.Properties())

	_, err = NewSource(SourceKafka, map[string]string{"p0": "1"})
	assert.Error(t, err)
	_, err = NewSource(SourceKafka, map[string]string{"0": "abc"})
	assert.Error(t, err)
	_, err = NewSource("PULSAR", nil)
	assert.ErrorIs(t, err, ErrUnknownSourceKind)
}

func TestBuildExecutorRequestKafka(t *testing.T) {
	task := newTestTask(t, newFakeClock(), 20*time.Second)
	jobs := staticRegistry{7: testJob()}

	_, err := task.BuildExecutorRequest(context.Background(), jobs)
	assert.ErrorIs(t, err, ErrTxnNotBegun)

	bindTask(t, task)
	task.SetBeID(10001)
	req, err := task.BuildExecutorRequest(context.Background(), jobs)
	require.NoError(t, err)

	assert.Equal(t, task.ID().String(), req.TaskID)
	assert.Equal(t, task.Label(), req.Label)
	assert.Equal(t, task.TxnID(), req.TxnID)
	assert.Equal(t, "sales", req.DBName)
	assert.Equal(t, "orders", req.TableName)
	assert.Equal(t, int64(10001), req.BeID)
	assert.Equal(t, int64(20), req.TimeoutSeconds)
	assert.Equal(t, SourceKafka, req.SourceKind)
	require.NotNil(t, req.Kafka)
	assert.Nil(t, req.Kinesis)
	assert.Equal(t, "127.0.0.1:9092", req.Kafka.Brokers)
	assert.Equal(t, "orders", req.Kafka.Topic)
	assert.Equal(t, map[string]string{"group.id": "g1", "client.id": "c1"}, req.Kafka.Properties)
	assert.Equal(t, map[int32]int64{0: 100, 1: 200}, req.Kafka.PartitionBeginOffset)
}

func TestBuildExecutorRequestNoPartitions(t *testing.T) {
	task, err := NewTask(NewTaskID(), 7, "c", time.Second, NewKafkaSource(nil), WithClock(newFakeClock()))
	require.NoError(t, err)
	bindTask(t, task)

	_, err = task.BuildExecutorRequest(context.Background(), staticRegistry{7: testJob()})
	assert.ErrorIs(t, err, ErrNoPartitions)
}

func TestBuildExecutorRequestKinesis(t *testing.T) {
	job := &Job{
		ID: 8, DBID: 1, DBName: "logs", TableName: "events", SourceKind: SourceKinesis,
		Properties: map[string]any{PropKinesisStream: "events", PropKinesisRegion: "us-east-1"},
	}
	jobs := staticRegistry{8: job}

	empty, err := NewTask(NewTaskID(), 8, "c", time.Second, NewKinesisSource(nil), WithClock(newFakeClock()))
	require.NoError(t, err)
	_, err = empty.BeginTxn(context.Background(), jobs, &scriptedCoordinator{})
	require.NoError(t, err)
	_, err = empty.BuildExecutorRequest(context.Background(), jobs)
	assert.ErrorIs(t, err, ErrNoShards)

	task, err := NewTask(NewTaskID(), 8, "c", time.Second,
		NewKinesisSource(map[string]string{"shardId-1": "100"}), WithClock(newFakeClock()))
	require.NoError(t, err)
	_, err = task.BeginTxn(context.Background(), jobs, &scriptedCoordinator{})
	require.NoError(t, err)

	req, err := task.BuildExecutorRequest(context.Background(), jobs)
	require.NoError(t, err)
	require.NotNil(t, req.Kinesis)
	assert.Nil(t, req.Kafka)
	assert.Equal(t, "events", req.Kinesis.Stream)
	assert.Equal(t, "us-east-1", req.Kinesis.Region)
	assert.Equal(t, map[string]string{"shardId-1": "100"}, req.Kinesis.ShardStartingSequences)
}
