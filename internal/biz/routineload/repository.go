package routineload

import (
	"context"

	"github.com/samber/mo"
)

type JobRepo interface {
	Create(ctx context.Context, job *Job) error
	GetByID(ctx context.Context, id uint64) (*Job, error)
	GetByName(ctx context.Context, name string) (*Job, error)
	List(ctx context.Context, filter *JobFilter) ([]*Job, error)
	Update(ctx context.Context, id uint64, patch *JobPatch) error
}

type JobFilter struct {
	State mo.Option[JobState]
	DBID  mo.Option[uint64]
}
