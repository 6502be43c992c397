package data

import (
	"github.com/target/scriptcheck/internal/core"
	"github.com/target/scriptcheck/internal/data/securebuf"
)

var (
	_ core.WorkflowRunRepository    = (*WorkflowRunRepo)(nil)
	_ core.WorkflowRunRepositoryTx  = (*WorkflowRunRepo)(nil)
	_ core.WorkflowRunReaper        = (*WorkflowRunRepo)(nil)
	_ core.HistoryRepository        = (*WorkflowHistoryRepo)(nil)
	_ core.JobMetadataRepository    = (*JobMetadataRepo)(nil)
	_ core.JobMetadataRepositoryTx  = (*JobMetadataRepo)(nil)
	_ core.ReportMetadataRepository = (*ReportMetadataRepo)(nil)
	_ core.APIKeyRepository         = (*APIKeyRepo)(nil)
	_ core.TxRunner                 = TxRunner{}
	_ core.TransientStore           = (*securebuf.Store)(nil)
)
