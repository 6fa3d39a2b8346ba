package txnrepo

import (
	domain "github.com/jobs/routineload/internal/biz/txn"
	"github.com/jobs/routineload/internal/infra/persistence/commonrepo"
)

func (po *TransactionPo) FromDomain(in *domain.Transaction) *TransactionPo {
	return &TransactionPo{
		Model: commonrepo.Model{
			ID:        in.ID,
			CreatedAt: in.CreatedAt,
			UpdatedAt: in.UpdatedAt,
		},
		DBID:           in.DBID,
		Label:          in.Label,
		RequestID:      in.RequestID,
		Coordinator:    in.Coordinator,
		SourceType:     in.SourceType,
		ListenerID:     in.ListenerID,
		TimeoutSeconds: in.TimeoutSeconds,
		Status:         in.Status,
		Reason:         in.Reason,
		PrepareTime:    in.PrepareTime,
		CommitTime:     in.CommitTime,
		FinishTime:     in.FinishTime,
	}
}

func (po *TransactionPo) ToDomain() *domain.Transaction {
	return &domain.Transaction{
		ID:             po.ID,
		CreatedAt:      po.CreatedAt,
		UpdatedAt:      po.UpdatedAt,
		DBID:           po.DBID,
		Label:          po.Label,
		RequestID:      po.RequestID,
		Coordinator:    po.Coordinator,
		SourceType:     po.SourceType,
		ListenerID:     po.ListenerID,
		TimeoutSeconds: po.TimeoutSeconds,
		Status:         po.Status,
		Reason:         po.Reason,
		PrepareTime:    po.PrepareTime,
		CommitTime:     po.CommitTime,
		FinishTime:     po.FinishTime,
	}
}

func patchToMap(input *domain.TransactionPatch) map[string]any {
	var values = make(map[string]any)

	if input.Status != nil {
		values["status"] = *input.Status
	}

	if input.Reason != nil {
		values["reason"] = *input.Reason
	}

	if input.CommitTime != nil {
		values["commit_time"] = *input.CommitTime
	}

	if input.FinishTime != nil {
		values["finish_time"] = *input.FinishTime
	}

	return values
}
