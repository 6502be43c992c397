// Package mocks provides gomock implementations of the core ports.
//
// To regenerate mocks after interface changes, run:
//
//	go generate ./internal/mocks
//
// Usage in tests:
//
//	ctrl := gomock.NewController(t)
//	jobs := mocks.NewMockJobMetadataRepository(ctrl)
//	jobs.EXPECT().UpdateStatus(gomock.Any(), "job-1", gomock.Any()).Return(true, nil)
package mocks

// Repositories: Create, GetByID, GetForUser, GetByIdempotencyKey, ListForUser, UpdateStatus
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=job_metadata_repository_mock.go github.com/target/scriptcheck/internal/core JobMetadataRepository
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=job_metadata_repository_tx_mock.go github.com/target/scriptcheck/internal/core JobMetadataRepositoryTx

// Create, ClaimForRetrieval, GetByID
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=report_metadata_repository_mock.go github.com/target/scriptcheck/internal/core ReportMetadataRepository

//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=api_key_repository_mock.go github.com/target/scriptcheck/internal/core APIKeyRepository

// Durable run queue and its housekeeping.
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=workflow_run_repository_mock.go github.com/target/scriptcheck/internal/core WorkflowRunRepository
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=workflow_run_repository_tx_mock.go github.com/target/scriptcheck/internal/core WorkflowRunRepositoryTx
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=workflow_run_reaper_mock.go github.com/target/scriptcheck/internal/core WorkflowRunReaper

// Transient store, LLM provider and push delivery.
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=transient_store_mock.go github.com/target/scriptcheck/internal/core TransientStore
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=llm_provider_mock.go github.com/target/scriptcheck/internal/core LLMProvider
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=report_pusher_mock.go github.com/target/scriptcheck/internal/core ReportPusher

// Bearer token verification.
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=token_verifier_mock.go github.com/target/scriptcheck/internal/ports TokenVerifier
