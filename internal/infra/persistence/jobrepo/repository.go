package jobrepo

import (
	"context"

	"github.com/google/wire"
	domain "github.com/jobs/routineload/internal/biz/routineload"
	"github.com/jobs/routineload/internal/infra/persistence/commonrepo"
	"github.com/samber/lo"
)

var Provider = wire.NewSet(NewRepositoryImpl)

type RepositoryImpl struct {
	commonrepo.DefaultRepo
}

func NewRepositoryImpl(db commonrepo.DB) domain.JobRepo {
	return &RepositoryImpl{DefaultRepo: commonrepo.NewDefaultRepo(db)}
}

func (r *RepositoryImpl) Create(ctx context.Context, job *domain.Job) error {
	po := new(JobPo).FromDomain(job)
	if err := r.Db(ctx).Create(po).Error; err != nil {
		return err
	}
	job.ID = po.ID
	job.CreatedAt = po.CreatedAt
	job.UpdatedAt = po.UpdatedAt
	return nil
}

func (r *RepositoryImpl) GetByID(ctx context.Context, id uint64) (*domain.Job, error) {
	return r.first(ctx, "id = ?", id)
}

func (r *RepositoryImpl) GetByName(ctx context.Context, name string) (*domain.Job, error) {
	return r.first(ctx, "name = ?", name)
}

func (r *RepositoryImpl) first(ctx context.Context, query string, args ...any) (*domain.Job, error) {
	var pos []JobPo
	if err := r.Db(ctx).Where(query, args...).Limit(1).Find(&pos).Error; err != nil {
		return nil, err
	}
	if len(pos) == 0 {
		return nil, nil
	}
	return pos[0].ToDomain(), nil
}

func (r *RepositoryImpl) List(ctx context.Context, filter *domain.JobFilter) ([]*domain.Job, error) {
	var pos []JobPo
	query := r.Db(ctx).Model(&JobPo{})
	if filter.State.IsPresent() {
		query = query.Where("state = ?", filter.State.MustGet())
	}
	if filter.DBID.IsPresent() {
		query = query.Where("db_id = ?", filter.DBID.MustGet())
	}
	if err := query.Order("id").Find(&pos).Error; err != nil {
		return nil, err
	}
	return lo.Map(pos, func(po JobPo, _ int) *domain.Job {
		return po.ToDomain()
	}), nil
}

func (r *RepositoryImpl) Update(ctx context.Context, id uint64, patch *domain.JobPatch) error {
	values := patchToMap(patch)
	if len(values) == 0 {
		return nil
	}
	return r.Db(ctx).Model(&JobPo{}).Where("id = ?", id).Updates(values).Error
}
