package commonrepo

import (
	"context"
	"database/sql"

	"gorm.io/gorm"
)

// DB 仓储层使用到的 gorm 方法
type DB interface {
	Model(value any) (tx *gorm.DB)
	Create(value any) (tx *gorm.DB)
	Where(query any, args ...any) (tx *gorm.DB)
	First(dest any, conds ...any) (tx *gorm.DB)
	Find(dest any, conds ...any) (tx *gorm.DB)
	Transaction(fn func(tx *gorm.DB) error, opts ...*sql.TxOptions) error
	WithContext(ctx context.Context) *gorm.DB
	AutoMigrate(dst ...any) error

	Count(count *int64) *gorm.DB
	Updates(values any) *gorm.DB
	Order(value any) *gorm.DB
	Limit(limit int) *gorm.DB
}
