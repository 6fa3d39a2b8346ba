package api

import (
	"errors"
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jobs/routineload/internal/biz/routineload"
	"github.com/jobs/routineload/internal/scheduler"
	"github.com/samber/mo"
	"github.com/spf13/cast"
	"go.uber.org/zap"
)

type IJobAPI interface {
	// Create 创建例行导入作业
	// @POST(api/v1/jobs)
	Create(ctx *gin.Context, req CreateJobReq) (JobResp, error)

	// List 获取作业列表
	// @GET(api/v1/jobs)
	List(ctx *gin.Context, req ListJobsReq) ([]JobResp, error)

	// Get 获取作业详情
	// @GET(api/v1/jobs/{id})
	Get(ctx *gin.Context, id string) (JobResp, error)

	// Pause 暂停作业，放弃正在执行的任务
	// @POST(api/v1/jobs/{id}/pause)
	Pause(ctx *gin.Context, id string, req PauseJobReq) (JobResp, error)

	// Resume 恢复作业
	// @POST(api/v1/jobs/{id}/resume)
	Resume(ctx *gin.Context, id string) (JobResp, error)

	// Stop 停止作业，停止后不可恢复
	// @POST(api/v1/jobs/{id}/stop)
	Stop(ctx *gin.Context, id string) (JobResp, error)

	// Tasks 查看作业当前的任务
	// @GET(api/v1/jobs/{id}/tasks)
	Tasks(ctx *gin.Context, id string) (TaskShowResp, error)
}

type CreateJobReq struct {
	Name               string            `json:"name" binding:"required"`
	ClusterName        string            `json:"cluster_name"`
	DBID               uint64            `json:"db_id" binding:"required"`
	DBName             string            `json:"db_name" binding:"required"`
	TableName          string            `json:"table_name" binding:"required"`
	SourceKind         string            `json:"source_kind" binding:"required"`
	Properties         map[string]any    `json:"properties"`
	Progress           map[string]string `json:"progress"`
	TaskTimeoutSeconds int               `json:"task_timeout_seconds"`
}

type ListJobsReq struct {
	State string `form:"state"`
	DBID  uint64 `form:"db_id"`
}

type PauseJobReq struct {
	Reason string `json:"reason"`
}

var _ IJobAPI = (*JobAPI)(nil)

type JobAPI struct {
	jobs   *routineload.JobUsecase
	sched  *scheduler.TaskScheduler
	logger *zap.Logger
	loc    *time.Location
}

func NewJobAPI(jobs *routineload.JobUsecase, sched *scheduler.TaskScheduler, logger *zap.Logger) *JobAPI {
	return &JobAPI{jobs: jobs, sched: sched, logger: logger, loc: time.Local}
}

func parseID(id string) (uint64, error) {
	v, err := cast.ToUint64E(id)
	if err != nil || v == 0 {
		return 0, fmt.Errorf("%w: invalid id %q", ErrBadRequest, id)
	}
	return v, nil
}

func (a *JobAPI) Create(ctx *gin.Context, req CreateJobReq) (JobResp, error) {
	job := &routineload.Job{
		Name:               req.Name,
		ClusterName:        req.ClusterName,
		DBID:               req.DBID,
		DBName:             req.DBName,
		TableName:          req.TableName,
		SourceKind:         routineload.SourceKind(req.SourceKind),
		Properties:         req.Properties,
		Progress:           req.Progress,
		TaskTimeoutSeconds: req.TaskTimeoutSeconds,
	}
	if job.Properties == nil {
		job.Properties = map[string]any{}
	}
	if job.Progress == nil {
		job.Progress = map[string]string{}
	}
	if err := a.jobs.Create(ctx, job); err != nil {
		return JobResp{}, err
	}
	a.submit(ctx, job.ID)
	return toJobResp(job), nil
}

func (a *JobAPI) List(ctx *gin.Context, req ListJobsReq) ([]JobResp, error) {
	filter := &routineload.JobFilter{}
	if req.State != "" {
		filter.State = mo.Some(routineload.JobState(req.State))
	}
	if req.DBID != 0 {
		filter.DBID = mo.Some(req.DBID)
	}
	jobs, err := a.jobs.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	return toJobResps(jobs), nil
}

func (a *JobAPI) Get(ctx *gin.Context, id string) (JobResp, error) {
	jobID, err := parseID(id)
	if err != nil {
		return JobResp{}, err
	}
	job, err := a.jobs.Get(ctx, jobID)
	if err != nil {
		return JobResp{}, err
	}
	return toJobResp(job), nil
}

func (a *JobAPI) Pause(ctx *gin.Context, id string, req PauseJobReq) (JobResp, error) {
	jobID, err := parseID(id)
	if err != nil {
		return JobResp{}, err
	}
	reason := req.Reason
	if reason == "" {
		reason = "paused by user"
	}
	job, err := a.jobs.Pause(ctx, jobID, reason)
	if err != nil {
		return JobResp{}, err
	}
	a.sched.RemoveJobTasks(ctx, jobID, "job paused: "+reason)
	return toJobResp(job), nil
}

func (a *JobAPI) Resume(ctx *gin.Context, id string) (JobResp, error) {
	jobID, err := parseID(id)
	if err != nil {
		return JobResp{}, err
	}
	job, err := a.jobs.Resume(ctx, jobID)
	if err != nil {
		return JobResp{}, err
	}
	a.submit(ctx, jobID)
	return toJobResp(job), nil
}

func (a *JobAPI) Stop(ctx *gin.Context, id string) (JobResp, error) {
	jobID, err := parseID(id)
	if err != nil {
		return JobResp{}, err
	}
	job, err := a.jobs.Stop(ctx, jobID)
	if err != nil {
		return JobResp{}, err
	}
	a.sched.RemoveJobTasks(ctx, jobID, "job stopped")
	return toJobResp(job), nil
}

func (a *JobAPI) Tasks(ctx *gin.Context, id string) (TaskShowResp, error) {
	jobID, err := parseID(id)
	if err != nil {
		return TaskShowResp{}, err
	}
	if _, err := a.jobs.Get(ctx, jobID); err != nil {
		return TaskShowResp{}, err
	}
	return toTaskShowResp(a.sched.TasksOfJob(jobID), a.loc), nil
}

// submit 非 leader 实例由 leader 的作业同步创建任务
func (a *JobAPI) submit(ctx *gin.Context, jobID uint64) {
	if _, err := a.sched.SubmitJob(ctx, jobID); err != nil && !errors.Is(err, scheduler.ErrNotLeader) {
		a.logger.Warn("failed to submit routine load job",
			zap.Uint64("job_id", jobID),
			zap.Error(err))
	}
}
