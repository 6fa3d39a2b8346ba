package api

import (
	"github.com/gin-gonic/gin"
	"github.com/jobs/routineload/internal/biz/txn"
	"github.com/jobs/routineload/internal/scheduler"
	"github.com/samber/lo"
	"github.com/samber/mo"
)

type ITxnAPI interface {
	// List 获取事务列表
	// @GET(api/v1/txns)
	List(ctx *gin.Context, req ListTxnsReq) ([]TxnResp, error)

	// Get 获取事务详情
	// @GET(api/v1/txns/{id})
	Get(ctx *gin.Context, id string) (TxnResp, error)

	// Commit 提交事务
	// 执行节点导入完成后回调，progress 为消费到的位置
	// @POST(api/v1/txns/{id}/commit)
	Commit(ctx *gin.Context, id string, req CommitTxnReq) (TxnResp, error)

	// Publish 已提交的事务变为可见
	// @POST(api/v1/txns/{id}/publish)
	Publish(ctx *gin.Context, id string) (TxnResp, error)

	// Abort 中止事务
	// @POST(api/v1/txns/{id}/abort)
	Abort(ctx *gin.Context, id string, req AbortTxnReq) (TxnResp, error)
}

type ListTxnsReq struct {
	DBID       uint64 `form:"db_id"`
	ListenerID uint64 `form:"listener_id"`
	Status     string `form:"status"`
	Limit      int    `form:"limit"`
}

type CommitTxnReq struct {
	Progress map[string]string `json:"progress"`
}

type AbortTxnReq struct {
	Reason string `json:"reason"`
}

var _ ITxnAPI = (*TxnAPI)(nil)

type TxnAPI struct {
	txns  *txn.Manager
	sched *scheduler.TaskScheduler
}

func NewTxnAPI(txns *txn.Manager, sched *scheduler.TaskScheduler) *TxnAPI {
	return &TxnAPI{txns: txns, sched: sched}
}

func (a *TxnAPI) List(ctx *gin.Context, req ListTxnsReq) ([]TxnResp, error) {
	filter := &txn.TransactionFilter{Limit: req.Limit}
	if filter.Limit <= 0 {
		filter.Limit = 100
	}
	if req.DBID != 0 {
		filter.DBID = mo.Some(req.DBID)
	}
	if req.ListenerID != 0 {
		filter.ListenerID = mo.Some(req.ListenerID)
	}
	if req.Status != "" {
		status, err := txn.ParseStatus(req.Status)
		if err != nil {
			return nil, err
		}
		filter.Status = mo.Some(status)
	}
	txns, err := a.txns.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	return lo.Map(txns, func(t *txn.Transaction, _ int) TxnResp { return toTxnResp(t) }), nil
}

func (a *TxnAPI) Get(ctx *gin.Context, id string) (TxnResp, error) {
	txnID, err := parseID(id)
	if err != nil {
		return TxnResp{}, err
	}
	t, err := a.txns.Get(ctx, txnID)
	if err != nil {
		return TxnResp{}, err
	}
	return toTxnResp(t), nil
}

func (a *TxnAPI) Commit(ctx *gin.Context, id string, req CommitTxnReq) (TxnResp, error) {
	txnID, err := parseID(id)
	if err != nil {
		return TxnResp{}, err
	}
	t, err := a.sched.CommitTxn(ctx, txnID, req.Progress)
	if err != nil {
		return TxnResp{}, err
	}
	return toTxnResp(t), nil
}

func (a *TxnAPI) Publish(ctx *gin.Context, id string) (TxnResp, error) {
	txnID, err := parseID(id)
	if err != nil {
		return TxnResp{}, err
	}
	t, err := a.txns.Publish(ctx, txnID)
	if err != nil {
		return TxnResp{}, err
	}
	return toTxnResp(t), nil
}

func (a *TxnAPI) Abort(ctx *gin.Context, id string, req AbortTxnReq) (TxnResp, error) {
	txnID, err := parseID(id)
	if err != nil {
		return TxnResp{}, err
	}
	reason := req.Reason
	if reason == "" {
		reason = "aborted by user"
	}
	t, err := a.txns.Abort(ctx, txnID, reason)
	if err != nil {
		return TxnResp{}, err
	}
	return toTxnResp(t), nil
}
