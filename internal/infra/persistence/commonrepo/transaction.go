package commonrepo

import (
	"context"

	"gorm.io/gorm"
)

type Transaction interface {
	Execute(ctx context.Context, fn func(ctx context.Context) error) error
}

type dbContextKey struct{}

var _ Transaction = (*DefaultRepo)(nil)

type DefaultRepo struct {
	db DB
}

func NewDefaultRepo(db DB) DefaultRepo {
	return DefaultRepo{db: db}
}

// Execute 在同一个数据库事务内执行 fn，fn 内的仓储调用会复用该事务
func (r *DefaultRepo) Execute(ctx context.Context, fn func(ctx context.Context) error) error {
	return r.Db(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(context.WithValue(ctx, dbContextKey{}, tx))
	})
}

func (r *DefaultRepo) Db(ctx context.Context) *gorm.DB {
	if tx, ok := ctx.Value(dbContextKey{}).(*gorm.DB); ok {
		return tx.WithContext(ctx)
	}
	return r.db.WithContext(ctx)
}

// NewTransaction 供跨仓储的业务操作使用
func NewTransaction(db DB) Transaction {
	r := NewDefaultRepo(db)
	return &r
}
