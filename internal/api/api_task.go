package api

import (
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jobs/routineload/internal/biz/routineload"
	"github.com/jobs/routineload/internal/scheduler"
)

type ITaskAPI interface {
	// Get 查看任务
	// id 为任务 label 或 uuid
	// @GET(api/v1/tasks/{id})
	Get(ctx *gin.Context, id string) (TaskShowResp, error)
}

var _ ITaskAPI = (*TaskAPI)(nil)

type TaskAPI struct {
	sched *scheduler.TaskScheduler
	loc   *time.Location
}

func NewTaskAPI(sched *scheduler.TaskScheduler) *TaskAPI {
	return &TaskAPI{sched: sched, loc: time.Local}
}

func (a *TaskAPI) Get(ctx *gin.Context, id string) (TaskShowResp, error) {
	taskID, err := routineload.ParseTaskID(id)
	if err != nil {
		return TaskShowResp{}, fmt.Errorf("%w: %v", ErrBadRequest, err)
	}
	t, err := a.sched.Task(taskID)
	if err != nil {
		return TaskShowResp{}, err
	}
	return toTaskShowResp([]*routineload.Task{t}, a.loc), nil
}
