package api

import (
	"errors"
	"net/http"
	"sync/atomic"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/jobs/routineload/internal/biz/routineload"
	"github.com/jobs/routineload/internal/biz/txn"
	"github.com/jobs/routineload/internal/scheduler"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ErrorResponse 统一错误响应格式
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

type errorMapping struct {
	targets []error
	status  int
	code    string
}

var errorMappings = []errorMapping{
	{[]error{routineload.ErrJobNotFound, txn.ErrTxnNotFound, scheduler.ErrTaskNotFound, gorm.ErrRecordNotFound}, http.StatusNotFound, "NOT_FOUND"},
	{[]error{routineload.ErrJobAlreadyExists, txn.ErrLabelAlreadyUsed, txn.ErrDuplicatedRequest, gorm.ErrDuplicatedKey}, http.StatusConflict, "DUPLICATE"},
	{[]error{routineload.ErrIllegalJobState, txn.ErrIllegalStatus}, http.StatusConflict, "ILLEGAL_STATE"},
	{[]error{
		ErrBadRequest, routineload.ErrInvalidJob, routineload.ErrUnknownSourceKind, routineload.ErrInvalidTimeout,
		routineload.ErrNoPartitions, routineload.ErrNoShards, txn.ErrAnalysis,
	}, http.StatusBadRequest, "INVALID_ARGUMENT"},
	{[]error{txn.ErrBeginTxn}, http.StatusTooManyRequests, "TOO_MANY_TXNS"},
	{[]error{scheduler.ErrNotLeader}, http.StatusServiceUnavailable, "NOT_LEADER"},
}

func errorStatus(err error) (int, string) {
	for _, m := range errorMappings {
		for _, target := range m.targets {
			if errors.Is(err, target) {
				return m.status, m.code
			}
		}
	}
	return http.StatusInternalServerError, "INTERNAL_ERROR"
}

// ErrorHandlingMiddleware 统一错误处理中间件
func ErrorHandlingMiddleware(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if err := recover(); err != nil {
				logger.Error("panic recovered",
					zap.Any("error", err),
					zap.String("path", c.Request.URL.Path),
					zap.String("method", c.Request.Method))

				c.JSON(http.StatusInternalServerError, ErrorResponse{
					Code:    "INTERNAL_ERROR",
					Message: "An internal error occurred",
				})
				c.Abort()
			}
		}()

		c.Next()

		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}
		err := c.Errors.Last().Err
		status, code := errorStatus(err)
		if status >= http.StatusInternalServerError {
			logger.Error("request error",
				zap.Error(err),
				zap.String("path", c.Request.URL.Path),
				zap.String("method", c.Request.Method))
		} else {
			logger.Debug("request rejected",
				zap.Error(err),
				zap.String("path", c.Request.URL.Path),
				zap.Int("status", status))
		}
		c.JSON(status, ErrorResponse{
			Code:    code,
			Message: err.Error(),
		})
	}
}

// NetworkPartitionDetector 网络分区检测中间件
func NetworkPartitionDetector(storage interface{ Ping() error }, logger *zap.Logger) gin.HandlerFunc {
	var consecutiveFailures atomic.Int32
	const maxFailures = 3

	return func(c *gin.Context) {
		if err := storage.Ping(); err != nil {
			failures := consecutiveFailures.Add(1)
			logger.Warn("database connection check failed",
				zap.Error(err),
				zap.Int32("consecutive_failures", failures))

			if failures >= maxFailures {
				logger.Error("possible network partition detected")
				c.JSON(http.StatusServiceUnavailable, ErrorResponse{
					Code:    "SERVICE_UNAVAILABLE",
					Message: "Service is temporarily unavailable",
				})
				c.Abort()
				return
			}
		} else {
			consecutiveFailures.Store(0)
		}

		c.Next()
	}
}

// Cors CORS配置
func Cors() gin.HandlerFunc {
	config := cors.DefaultConfig()
	config.AllowAllOrigins = true
	config.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "HEAD", "OPTIONS"}
	config.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type", "Authorization"}
	return cors.New(config)
}
