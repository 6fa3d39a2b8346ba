package jobrepo

import (
	domain "github.com/jobs/routineload/internal/biz/routineload"
	"github.com/jobs/routineload/internal/infra/persistence/commonrepo"
	"gorm.io/datatypes"
)

func (po *JobPo) FromDomain(in *domain.Job) *JobPo {
	progress := in.Progress
	if progress == nil {
		progress = map[string]string{}
	}
	return &JobPo{
		Model: commonrepo.Model{
			ID:        in.ID,
			CreatedAt: in.CreatedAt,
			UpdatedAt: in.UpdatedAt,
		},
		Name:               in.Name,
		ClusterName:        in.ClusterName,
		DBID:               in.DBID,
		DBName:             in.DBName,
		TblName:            in.TableName,
		SourceKind:         in.SourceKind,
		Properties:         datatypes.JSONMap(in.Properties),
		Progress:           datatypes.NewJSONType(progress),
		TaskTimeoutSeconds: in.TaskTimeoutSeconds,
		State:              in.State,
		Reason:             in.Reason,
	}
}

func (po *JobPo) ToDomain() *domain.Job {
	return &domain.Job{
		ID:                 po.ID,
		CreatedAt:          po.CreatedAt,
		UpdatedAt:          po.UpdatedAt,
		Name:               po.Name,
		ClusterName:        po.ClusterName,
		DBID:               po.DBID,
		DBName:             po.DBName,
		TableName:          po.TblName,
		SourceKind:         po.SourceKind,
		Properties:         map[string]any(po.Properties),
		Progress:           po.Progress.Data(),
		TaskTimeoutSeconds: po.TaskTimeoutSeconds,
		State:              po.State,
		Reason:             po.Reason,
	}
}

func patchToMap(input *domain.JobPatch) map[string]any {
	var values = make(map[string]any)

	if input.State != nil {
		values["state"] = *input.State
	}

	if input.Reason != nil {
		values["reason"] = *input.Reason
	}

	if input.Progress != nil {
		values["progress"] = datatypes.NewJSONType(*input.Progress)
	}

	return values
}
