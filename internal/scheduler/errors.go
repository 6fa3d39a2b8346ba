package scheduler

import "errors"

// ErrNotLeader indicates the current instance is not the leader
// and therefore will not schedule routine load tasks.
var ErrNotLeader = errors.New("not leader")

var (
	ErrTaskNotFound     = errors.New("routine load task not found")
	ErrNoExecutor       = errors.New("no available executor")
	ErrCircuitOpen      = errors.New("circuit breaker is open")
	ErrExecutorRejected = errors.New("executor rejected task")
)
