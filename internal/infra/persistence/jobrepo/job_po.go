package jobrepo

import (
	domain "github.com/jobs/routineload/internal/biz/routineload"
	"github.com/jobs/routineload/internal/infra/persistence/commonrepo"
	"gorm.io/datatypes"
)

type JobPo struct {
	commonrepo.Model
	Name               string                                `gorm:"column:name;uniqueIndex;size:128;not null"`
	ClusterName        string                                `gorm:"column:cluster_name;size:128"`
	DBID               uint64                                `gorm:"column:db_id;not null;index"`
	DBName             string                                `gorm:"column:db_name;size:128;not null"`
	TblName            string                                `gorm:"column:table_name;size:128;not null"`
	SourceKind         domain.SourceKind                     `gorm:"column:source_kind;size:32;not null"`
	Properties         datatypes.JSONMap                     `gorm:"column:properties;type:json"`                // 数据源属性
	Progress           datatypes.JSONType[map[string]string] `gorm:"column:progress;type:json"`                  // 消费进度
	TaskTimeoutSeconds int                                   `gorm:"column:task_timeout_seconds;default:20"`     // 单个任务超时时间
	State              domain.JobState                       `gorm:"column:state;size:32;not null;index"`        // 作业状态
	Reason             string                                `gorm:"column:reason;size:1024"`                    // 暂停/停止原因
}

func (JobPo) TableName() string {
	return "routine_load_jobs"
}
