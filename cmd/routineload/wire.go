//go:build wireinject
// +build wireinject

package main

//go:generate go run -mod=mod github.com/google/wire/cmd/wire

import (
	"github.com/google/wire"
	"github.com/jobs/routineload/internal/api"
	"github.com/jobs/routineload/internal/biz/routineload"
	"github.com/jobs/routineload/internal/biz/txn"
	"github.com/jobs/routineload/internal/infra/persistence/commonrepo"
	"github.com/jobs/routineload/internal/infra/persistence/jobrepo"
	"github.com/jobs/routineload/internal/infra/persistence/txnrepo"
	"github.com/jobs/routineload/internal/orm"
	"github.com/jobs/routineload/internal/scheduler"
	"github.com/jobs/routineload/pkg/config"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

func InitializeApp(logger *zap.Logger, cfg config.Config, storage *orm.Storage) (*App, error) {
	wire.Build(
		NewApp,

		ProvideDB,
		ProvideSQLDB,
		ProvideRegistry,
		ProvideRedisClient,
		ProvideIDGenerator,
		ProvideTxnManager,

		wire.Bind(new(prometheus.Registerer), new(*prometheus.Registry)),
		wire.Bind(new(scheduler.JobService), new(*routineload.JobUsecase)),
		wire.Bind(new(scheduler.TxnService), new(*txn.Manager)),

		// other
		scheduler.Provider,

		// http api providers
		api.Provider,

		// biz providers
		routineload.Provider,

		// infra providers
		commonrepo.Provider,
		jobrepo.Provider,
		txnrepo.Provider,
	)
	return nil, nil
}
