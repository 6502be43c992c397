package httpx

import (
	"errors"
	"log/slog"
	"net/http"

	apperrors "github.com/target/scriptcheck/internal/errors"
)

// internalMessage is shown for every unclassified failure; the cause is only logged.
const internalMessage = "An unexpected error occurred"

// errorStatus maps AppError codes to a status and a public error code.
var errorStatus = map[apperrors.ErrorCode]struct { //nolint:gochecknoglobals // read-only lookup table
	status int
	code   string
}{
	apperrors.ErrCodeValidation:   {http.StatusBadRequest, "validation_error"},
	apperrors.ErrCodeUnauthorized: {http.StatusUnauthorized, "unauthorized"},
	apperrors.ErrCodeNotFound:     {http.StatusNotFound, "not_found"},
	apperrors.ErrCodeConflict:     {http.StatusConflict, "conflict"},
	apperrors.ErrCodeForeignKey:   {http.StatusConflict, "conflict"},
	apperrors.ErrCodeGone:         {http.StatusGone, "gone"},
	apperrors.ErrCodeTimeout:      {http.StatusGatewayTimeout, "timeout"},
	apperrors.ErrCodeCanceled:     {http.StatusServiceUnavailable, "canceled"},
}

// DetermineErrorStatus returns the HTTP status for err.
func DetermineErrorStatus(err error) int {
	if m, ok := errorStatus[apperrors.GetCode(err)]; ok {
		return m.status
	}
	return http.StatusInternalServerError
}

// RenderError writes err as a JSON error body. AppErrors keep their message;
// anything else is logged and rendered as a generic 500.
func RenderError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		if m, ok := errorStatus[appErr.Code]; ok {
			WriteError(w, ErrorParams{Code: m.status, ErrCode: m.code, Err: errors.New(appErr.Message), Field: appErr.Field})
			return
		}
	}
	if logger == nil {
		logger = slog.Default()
	}
	logger.ErrorContext(r.Context(), "request failed",
		"method", r.Method,
		"path", r.URL.Path,
		"error", err,
	)
	WriteError(w, ErrorParams{
		Code:    http.StatusInternalServerError,
		ErrCode: "internal_error",
		Err:     errors.New(internalMessage),
	})
}
