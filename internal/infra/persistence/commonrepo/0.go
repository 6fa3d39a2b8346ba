package commonrepo

import "github.com/google/wire"

var Provider = wire.NewSet(NewTransaction)
