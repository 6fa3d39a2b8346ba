package txnrepo

import (
	"context"

	"github.com/google/wire"
	domain "github.com/jobs/routineload/internal/biz/txn"
	"github.com/jobs/routineload/internal/infra/persistence/commonrepo"
	"github.com/samber/lo"
)

var Provider = wire.NewSet(NewRepositoryImpl)

type RepositoryImpl struct {
	commonrepo.DefaultRepo
}

func NewRepositoryImpl(db commonrepo.DB) domain.Repo {
	return &RepositoryImpl{DefaultRepo: commonrepo.NewDefaultRepo(db)}
}

func (r *RepositoryImpl) Create(ctx context.Context, txn *domain.Transaction) error {
	po := new(TransactionPo).FromDomain(txn)
	if err := r.Db(ctx).Create(po).Error; err != nil {
		return err
	}
	txn.CreatedAt = po.CreatedAt
	txn.UpdatedAt = po.UpdatedAt
	return nil
}

func (r *RepositoryImpl) GetByID(ctx context.Context, id uint64) (*domain.Transaction, error) {
	var pos []TransactionPo
	if err := r.Db(ctx).Where("id = ?", id).Limit(1).Find(&pos).Error; err != nil {
		return nil, err
	}
	if len(pos) == 0 {
		return nil, nil
	}
	return pos[0].ToDomain(), nil
}

func (r *RepositoryImpl) GetByLabel(ctx context.Context, dbID uint64, label string) ([]*domain.Transaction, error) {
	var pos []TransactionPo
	if err := r.Db(ctx).Where("db_id = ? AND label = ?", dbID, label).Order("id").Find(&pos).Error; err != nil {
		return nil, err
	}
	return toDomains(pos), nil
}

func (r *RepositoryImpl) CountRunning(ctx context.Context, dbID uint64) (int64, error) {
	var n int64
	err := r.Db(ctx).Model(&TransactionPo{}).
		Where("db_id = ? AND status IN ?", dbID, []domain.Status{domain.StatusPrepare, domain.StatusCommitted}).
		Count(&n).Error
	return n, err
}

func (r *RepositoryImpl) Update(ctx context.Context, id uint64, patch *domain.TransactionPatch) error {
	values := patchToMap(patch)
	if len(values) == 0 {
		return nil
	}
	res := r.Db(ctx).Model(&TransactionPo{}).Where("id = ?", id).Updates(values)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.ErrTxnNotFound
	}
	return nil
}

func (r *RepositoryImpl) List(ctx context.Context, filter *domain.TransactionFilter) ([]*domain.Transaction, error) {
	var pos []TransactionPo
	query := r.Db(ctx).Model(&TransactionPo{})
	if filter.DBID.IsPresent() {
		query = query.Where("db_id = ?", filter.DBID.MustGet())
	}
	if filter.ListenerID.IsPresent() {
		query = query.Where("listener_id = ?", filter.ListenerID.MustGet())
	}
	if filter.Status.IsPresent() {
		query = query.Where("status = ?", filter.Status.MustGet())
	}
	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}
	if err := query.Order("id DESC").Find(&pos).Error; err != nil {
		return nil, err
	}
	return toDomains(pos), nil
}

func toDomains(pos []TransactionPo) []*domain.Transaction {
	return lo.Map(pos, func(po TransactionPo, _ int) *domain.Transaction {
		return po.ToDomain()
	})
}
