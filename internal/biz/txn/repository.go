package txn

import (
	"context"

	"github.com/samber/mo"
)

type Repo interface {
	Create(ctx context.Context, txn *Transaction) error
	GetByID(ctx context.Context, id uint64) (*Transaction, error)
	// GetByLabel 返回该库下使用此 label 的全部事务
	GetByLabel(ctx context.Context, dbID uint64, label string) ([]*Transaction, error)
	CountRunning(ctx context.Context, dbID uint64) (int64, error)
	Update(ctx context.Context, id uint64, patch *TransactionPatch) error
	List(ctx context.Context, filter *TransactionFilter) ([]*Transaction, error)
}

type TransactionFilter struct {
	DBID       mo.Option[uint64]
	ListenerID mo.Option[uint64]
	Status     mo.Option[Status]
	Limit      int
}
