package routineload

import "github.com/google/wire"

var Provider = wire.NewSet(
	NewJobUsecase,
	wire.Bind(new(JobRegistry), new(*JobUsecase)),
)
