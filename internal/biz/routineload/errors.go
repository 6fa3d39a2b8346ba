package routineload

import "errors"

var (
	ErrJobNotFound      = errors.New("routine load job not found")
	ErrJobAlreadyExists = errors.New("routine load job already exists")
	ErrInvalidJob       = errors.New("invalid routine load job")
	ErrIllegalJobState  = errors.New("illegal routine load job state")

	ErrInvalidTimeout  = errors.New("task timeout must be at least one second")
	ErrTxnNotBegun     = errors.New("task transaction is not begun")
	ErrTxnAlreadyBegun = errors.New("task transaction is already begun")

	ErrUnknownSourceKind = errors.New("unknown data source kind")
	ErrNoPartitions      = errors.New("no kafka partitions assigned to task")
	ErrNoShards          = errors.New("no kinesis shards assigned to task")
)
