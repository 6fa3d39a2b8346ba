package txnrepo

import (
	"time"

	domain "github.com/jobs/routineload/internal/biz/txn"
	"github.com/jobs/routineload/internal/infra/persistence/commonrepo"
)

type TransactionPo struct {
	commonrepo.Model
	DBID           uint64            `gorm:"column:db_id;not null;index:idx_db_label"`
	Label          string            `gorm:"column:label;size:128;not null;index:idx_db_label"`
	RequestID      string            `gorm:"column:request_id;size:64"`
	Coordinator    string            `gorm:"column:coordinator;size:128"`
	SourceType     domain.SourceType `gorm:"column:source_type;size:32;not null"`
	ListenerID     uint64            `gorm:"column:listener_id;index"`
	TimeoutSeconds int64             `gorm:"column:timeout_seconds;not null"`
	Status         domain.Status     `gorm:"column:status;size:16;not null;index"`
	Reason         string            `gorm:"column:reason;size:1024"`
	PrepareTime    time.Time         `gorm:"column:prepare_time"`
	CommitTime     *time.Time        `gorm:"column:commit_time"`
	FinishTime     *time.Time        `gorm:"column:finish_time"`
}

func (TransactionPo) TableName() string {
	return "transactions"
}
