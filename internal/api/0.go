package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/wire"
)

var Provider = wire.NewSet(
	NewJobAPI,
	NewTaskAPI,
	NewTxnAPI,
	NewCommonAPI,
	NewServer,
)

// ErrBadRequest 请求参数错误
var ErrBadRequest = errors.New("bad request")

func onGinBind(c *gin.Context, val any, typ string) bool {
	var err error
	switch typ {
	case "JSON":
		err = c.ShouldBindJSON(val)
	case "QUERY":
		err = c.ShouldBindQuery(val)
	default:
		err = c.ShouldBind(val)
	}
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Code:    "INVALID_ARGUMENT",
			Message: err.Error(),
		})
		return false
	}
	return true
}

// onGinResponse 错误交给 ErrorHandlingMiddleware 统一处理
func onGinResponse[T any](c *gin.Context, data T, err error) {
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, data)
}
