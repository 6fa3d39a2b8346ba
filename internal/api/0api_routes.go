package api

import (
	"github.com/gin-gonic/gin"
)

type JobAPIWrap struct {
	inner IJobAPI
}

func NewJobAPIWrap(inner IJobAPI) *JobAPIWrap {
	return &JobAPIWrap{inner: inner}
}

func (a *JobAPIWrap) Create(ctx *gin.Context) {
	var req CreateJobReq
	if !onGinBind(ctx, &req, "JSON") {
		return
	}
	var result, err = a.inner.Create(ctx, req)
	onGinResponse(ctx, result, err)
}

func (a *JobAPIWrap) List(ctx *gin.Context) {
	var req ListJobsReq
	if !onGinBind(ctx, &req, "QUERY") {
		return
	}
	var result, err = a.inner.List(ctx, req)
	onGinResponse(ctx, result, err)
}

func (a *JobAPIWrap) Get(ctx *gin.Context) {
	var result, err = a.inner.Get(ctx, ctx.Param("id"))
	onGinResponse(ctx, result, err)
}

func (a *JobAPIWrap) Pause(ctx *gin.Context) {
	var req PauseJobReq
	if ctx.Request.ContentLength > 0 && !onGinBind(ctx, &req, "JSON") {
		return
	}
	var result, err = a.inner.Pause(ctx, ctx.Param("id"), req)
	onGinResponse(ctx, result, err)
}

func (a *JobAPIWrap) Resume(ctx *gin.Context) {
	var result, err = a.inner.Resume(ctx, ctx.Param("id"))
	onGinResponse(ctx, result, err)
}

func (a *JobAPIWrap) Stop(ctx *gin.Context) {
	var result, err = a.inner.Stop(ctx, ctx.Param("id"))
	onGinResponse(ctx, result, err)
}

func (a *JobAPIWrap) Tasks(ctx *gin.Context) {
	var result, err = a.inner.Tasks(ctx, ctx.Param("id"))
	onGinResponse(ctx, result, err)
}

func (a *JobAPIWrap) BindAll(router gin.IRoutes) {
	router.POST("/api/v1/jobs", a.Create)
	router.GET("/api/v1/jobs", a.List)
	router.GET("/api/v1/jobs/:id", a.Get)
	router.POST("/api/v1/jobs/:id/pause", a.Pause)
	router.POST("/api/v1/jobs/:id/resume", a.Resume)
	router.POST("/api/v1/jobs/:id/stop", a.Stop)
	router.GET("/api/v1/jobs/:id/tasks", a.Tasks)
}

type TaskAPIWrap struct {
	inner ITaskAPI
}

func NewTaskAPIWrap(inner ITaskAPI) *TaskAPIWrap {
	return &TaskAPIWrap{inner: inner}
}

func (a *TaskAPIWrap) Get(ctx *gin.Context) {
	var result, err = a.inner.Get(ctx, ctx.Param("id"))
	onGinResponse(ctx, result, err)
}

func (a *TaskAPIWrap) BindAll(router gin.IRoutes) {
	router.GET("/api/v1/tasks/:id", a.Get)
}

type TxnAPIWrap struct {
	inner ITxnAPI
}

func NewTxnAPIWrap(inner ITxnAPI) *TxnAPIWrap {
	return &TxnAPIWrap{inner: inner}
}

func (a *TxnAPIWrap) List(ctx *gin.Context) {
	var req ListTxnsReq
	if !onGinBind(ctx, &req, "QUERY") {
		return
	}
	var result, err = a.inner.List(ctx, req)
	onGinResponse(ctx, result, err)
}

func (a *TxnAPIWrap) Get(ctx *gin.Context) {
	var result, err = a.inner.Get(ctx, ctx.Param("id"))
	onGinResponse(ctx, result, err)
}

func (a *TxnAPIWrap) Commit(ctx *gin.Context) {
	var req CommitTxnReq
	if ctx.Request.ContentLength > 0 && !onGinBind(ctx, &req, "JSON") {
		return
	}
	var result, err = a.inner.Commit(ctx, ctx.Param("id"), req)
	onGinResponse(ctx, result, err)
}

func (a *TxnAPIWrap) Publish(ctx *gin.Context) {
	var result, err = a.inner.Publish(ctx, ctx.Param("id"))
	onGinResponse(ctx, result, err)
}

func (a *TxnAPIWrap) Abort(ctx *gin.Context) {
	var req AbortTxnReq
	if ctx.Request.ContentLength > 0 && !onGinBind(ctx, &req, "JSON") {
		return
	}
	var result, err = a.inner.Abort(ctx, ctx.Param("id"), req)
	onGinResponse(ctx, result, err)
}

func (a *TxnAPIWrap) BindAll(router gin.IRoutes) {
	router.GET("/api/v1/txns", a.List)
	router.GET("/api/v1/txns/:id", a.Get)
	router.POST("/api/v1/txns/:id/commit", a.Commit)
	router.POST("/api/v1/txns/:id/publish", a.Publish)
	router.POST("/api/v1/txns/:id/abort", a.Abort)
}

type CommonAPIWrap struct {
	inner ICommonAPI
}

func NewCommonAPIWrap(inner ICommonAPI) *CommonAPIWrap {
	return &CommonAPIWrap{inner: inner}
}

func (a *CommonAPIWrap) HealthCheck(ctx *gin.Context) {
	var result, err = a.inner.HealthCheck(ctx)
	onGinResponse(ctx, result, err)
}

func (a *CommonAPIWrap) BindAll(router gin.IRoutes) {
	router.GET("/api/v1/health", a.HealthCheck)
}
