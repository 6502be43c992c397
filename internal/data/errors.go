package data

import "errors"

// Shared sentinel errors for data-layer repositories.
var (
	ErrRunNotFound    = errors.New("workflow run not found")
	ErrJobNotFound    = errors.New("job not found")
	ErrReportNotFound = errors.New("report not found")
	// ErrReportAlreadyRetrieved is returned when a pull report was claimed before.
	ErrReportAlreadyRetrieved = errors.New("report already retrieved")
	ErrAPIKeyNotFound         = errors.New("API key not found")
)
