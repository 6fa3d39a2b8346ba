package routineload

import (
	"time"

	"github.com/spf13/cast"
)

const (
	timeLayout = "2006-01-02 15:04:05"
	nullString = "N/A"
)

// TaskShowTitles 与 ShowInfo 的列一一对应
var TaskShowTitles = []string{
	"TaskId", "TxnId", "TxnStatus", "JobId", "CreateTime",
	"ExecuteStartTime", "Timeout", "BeId", "DataSourceProperties",
}

// ShowInfo 返回固定九列的任务展示信息
func (t *Task) ShowInfo(loc *time.Location) []string {
	if loc == nil {
		loc = time.Local
	}
	return []string{
		t.id.String(),
		cast.ToString(t.TxnID()),
		t.TxnStatus().String(),
		cast.ToString(t.jobID),
		formatMillis(t.createTimeMs, loc),
		formatMillis(t.ExecuteStartTimeMs(), loc),
		cast.ToString(int64(t.timeout.Seconds())),
		cast.ToString(t.BeID()),
		t.source.Properties(),
	}
}

func formatMillis(ms int64, loc *time.Location) string {
	if ms <= 0 {
		return nullString
	}
	return time.UnixMilli(ms).In(loc).Format(timeLayout)
}
