package api

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jobs/routineload/internal/orm"
	"github.com/jobs/routineload/internal/scheduler"
)

type ICommonAPI interface {
	// HealthCheck 健康检查
	// 检查服务是否健康
	// @GET(api/v1/health)
	HealthCheck(ctx *gin.Context) (gin.H, error)
}

var _ ICommonAPI = (*CommonAPI)(nil)

type CommonAPI struct {
	storage *orm.Storage
	sched   *scheduler.TaskScheduler
}

func NewCommonAPI(storage *orm.Storage, sched *scheduler.TaskScheduler) *CommonAPI {
	return &CommonAPI{
		storage: storage,
		sched:   sched,
	}
}

func (c *CommonAPI) HealthCheck(ctx *gin.Context) (gin.H, error) {
	if err := c.storage.Ping(); err != nil {
		return gin.H{}, err
	}

	return gin.H{
		"status":    "healthy",
		"is_leader": c.sched.IsLeader(),
		"time":      time.Now(),
	}, nil
}
