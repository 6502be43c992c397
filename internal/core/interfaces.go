// Package core declares the ports between the safety-check services and
// their storage, queue and LLM adapters.
package core

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/target/scriptcheck/internal/domain/model"
)

// Repository interfaces (ports in hexagonal architecture). Services depend on
// these, the data and adapter packages implement them.

// TransientStore is the encrypted, TTL-bounded store for script content and
// intermediate pipeline results. Retrieve fails with securebuf.ErrNotFound
// for missing, expired or unauthenticated entries. StoreWithTTL with a
// ttl <= 0 returns a key that is never retrievable.
type TransientStore interface {
	Store(ctx context.Context, payload any) (string, error)
	StoreWithTTL(ctx context.Context, payload any, ttl time.Duration) (string, error)
	Retrieve(ctx context.Context, key string, dst any) error
	RetrieveRaw(ctx context.Context, key string) (json.RawMessage, error)
	Delete(ctx context.Context, keys ...string) (int, error)
	Exists(ctx context.Context, key string) (bool, error)
	Health(ctx context.Context) error
}

// WorkflowRunRepository is the durable run queue.
type WorkflowRunRepository interface {
	Create(ctx context.Context, req *model.CreateRunRequest) (*model.WorkflowRun, error)
	GetByID(ctx context.Context, id string) (*model.WorkflowRun, error)
	ReserveNext(ctx context.Context, wt model.WorkflowType, lease time.Duration) (*model.WorkflowRun, error)
	WaitForNotification(ctx context.Context, wt model.WorkflowType) error
	Heartbeat(ctx context.Context, id string, lease time.Duration) (model.LeaseState, error)
	Complete(ctx context.Context, id string, result json.RawMessage) (bool, error)
	Fail(ctx context.Context, id string, failure model.RunFailure) (model.RunStatus, error)
	MarkCanceled(ctx context.Context, id, reason string) (bool, error)
	RequestCancel(ctx context.Context, id string) (model.RunStatus, error)
	Stats(ctx context.Context, wt model.WorkflowType) (*model.RunStats, error)
}

// WorkflowRunRepositoryTx enqueues a run inside a caller-owned transaction.
type WorkflowRunRepositoryTx interface {
	CreateInTx(ctx context.Context, tx *sql.Tx, req *model.CreateRunRequest) (*model.WorkflowRun, error)
}

// DeleteOldRunsParams selects finished runs to purge.
type DeleteOldRunsParams struct {
	Status    model.RunStatus
	MaxAge    time.Duration
	BatchSize int
}

// WorkflowRunReaper performs queue housekeeping.
type WorkflowRunReaper interface {
	FailStalePendingRuns(ctx context.Context, maxAge time.Duration, batchSize int) (int64, error)
	FailOverdueRuns(ctx context.Context, batchSize int) (int64, error)
	DeleteOldRuns(ctx context.Context, params DeleteOldRunsParams) (int64, error)
}

// HistoryRepository is the durable execution log used for replay.
type HistoryRepository interface {
	Append(ctx context.Context, ev *model.HistoryEvent) (bool, error)
	List(ctx context.Context, workflowID string) ([]model.HistoryEvent, error)
}

// JobMetadataRepository stores the audit record of each job.
type JobMetadataRepository interface {
	Create(ctx context.Context, req *model.CreateJobRequest) (*model.JobMetadata, error)
	GetByID(ctx context.Context, id string) (*model.JobMetadata, error)
	GetForUser(ctx context.Context, id, userID string) (*model.JobMetadata, error)
	GetByIdempotencyKey(ctx context.Context, key string) (*model.JobMetadata, error)
	ListForUser(ctx context.Context, f model.JobListFilter) ([]*model.JobMetadata, error)
	UpdateStatus(ctx context.Context, id string, upd model.JobStatusUpdate) (bool, error)
}

// JobMetadataRepositoryTx creates job records inside a caller-owned transaction.
type JobMetadataRepositoryTx interface {
	CreateInTx(ctx context.Context, tx *sql.Tx, req *model.CreateJobRequest) (*model.JobMetadata, error)
}

// ReportMetadataRepository stores report records and enforces one-shot retrieval.
type ReportMetadataRepository interface {
	Create(ctx context.Context, req *model.CreateReportRequest) (bool, error)
	ClaimForRetrieval(ctx context.Context, reportID, userID string) (*model.ReportMetadata, error)
	GetByID(ctx context.Context, reportID string) (*model.ReportMetadata, error)
}

// APIKeyRepository stores hashed API credentials.
type APIKeyRepository interface {
	Create(ctx context.Context, req *model.CreateAPIKeyRequest) (*model.APIKey, error)
	GetByHash(ctx context.Context, hash string) (*model.APIKey, error)
	Touch(ctx context.Context, id string) error
	Revoke(ctx context.Context, id string) (bool, error)
	ListForUser(ctx context.Context, userID string) ([]*model.APIKey, error)
}

// TxRunner runs fn inside a database transaction that commits when fn returns nil.
type TxRunner interface {
	WithTx(ctx context.Context, fn func(ctx context.Context, tx *sql.Tx) error) error
}
