package api

import (
	"github.com/gin-gonic/gin"
	"github.com/jobs/routineload/internal/orm"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

type Server struct {
	router *gin.Engine
}

func NewServer(
	storage *orm.Storage,
	jobAPI *JobAPI,
	taskAPI *TaskAPI,
	txnAPI *TxnAPI,
	commonAPI *CommonAPI,
	registry *prometheus.Registry,
	logger *zap.Logger,
) *Server {
	s := &Server{}

	s.router = gin.New()
	s.router.Use(gin.Recovery())
	s.router.Use(ErrorHandlingMiddleware(logger))
	s.router.Use(Cors())
	s.router.Use(NetworkPartitionDetector(storage, logger))

	NewJobAPIWrap(jobAPI).BindAll(s.router)
	NewTaskAPIWrap(taskAPI).BindAll(s.router)
	NewTxnAPIWrap(txnAPI).BindAll(s.router)
	NewCommonAPIWrap(commonAPI).BindAll(s.router)

	if registry != nil {
		s.router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))
	}

	return s
}

func (s *Server) Router() *gin.Engine {
	return s.router
}
