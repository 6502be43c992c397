// Package httpx provides the HTTP boundary of the screenplay safety-check service.
package httpx

import (
	"context"
	"encoding/base64"
	"errors"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/target/scriptcheck/internal/domain/model"
	apperrors "github.com/target/scriptcheck/internal/errors"
	"github.com/target/scriptcheck/internal/service"
	"github.com/target/scriptcheck/internal/service/parser"
)

// Submitter accepts check requests.
type Submitter interface {
	Submit(ctx context.Context, req service.SubmitRequest) (*model.SubmitResponse, error)
}

// JobQuerier reads and cancels a user's jobs.
type JobQuerier interface {
	Status(ctx context.Context, jobID, userID string) (*model.JobStatusResponse, error)
	List(ctx context.Context, f model.JobListFilter) ([]model.JobStatusResponse, error)
	Cancel(ctx context.Context, jobID, userID string) (*model.JobStatusResponse, error)
}

// ReportRetriever hands out a finished report exactly once.
type ReportRetriever interface {
	Retrieve(ctx context.Context, reportID, userID string) (*model.ReportResponse, error)
}

// SecurityHandlers serves the /v1/security API.
type SecurityHandlers struct {
	Submissions Submitter
	Jobs        JobQuerier
	Reports     ReportRetriever
	Logger      *slog.Logger
}

// checkRequest is the JSON submission body. script_content is base64.
type checkRequest struct {
	ScriptContent  string             `json:"script_content"`
	ScriptFormat   string             `json:"script_format"`
	ProjectID      string             `json:"project_id"`
	Priority       *int               `json:"priority"`
	Delivery       model.DeliveryMode `json:"delivery"`
	IdempotencyKey *string            `json:"idempotency_key"`
	Metadata       map[string]any     `json:"metadata"`
}

// SubmitCheck handles POST /v1/security/check:async.
func (h *SecurityHandlers) SubmitCheck(w http.ResponseWriter, r *http.Request) {
	req, ok := h.resolveSubmission(w, r)
	if !ok {
		return
	}
	req.UserID = UserIDFromContext(r.Context())
	if key := strings.TrimSpace(r.Header.Get(HeaderIdempotencyKey)); key != "" && req.IdempotencyKey == nil {
		req.IdempotencyKey = &key
	}

	resp, err := h.Submissions.Submit(r.Context(), req)
	if err != nil {
		RenderError(w, r, h.Logger, err)
		return
	}
	w.Header().Set("Location", resp.StatusURL)
	WriteJSON(w, http.StatusAccepted, resp)
}

func (h *SecurityHandlers) resolveSubmission(w http.ResponseWriter, r *http.Request) (service.SubmitRequest, bool) {
	ct := strings.ToLower(r.Header.Get("Content-Type"))
	if strings.HasPrefix(ct, "multipart/form-data") {
		return h.resolveMultipart(w, r)
	}
	return h.resolveJSON(w, r)
}

func (h *SecurityHandlers) resolveJSON(w http.ResponseWriter, r *http.Request) (service.SubmitRequest, bool) {
	var body checkRequest
	if !DecodeJSON(w, r, &body) {
		return service.SubmitRequest{}, false
	}
	format, err := model.ParseScriptFormat(body.ScriptFormat)
	if err != nil {
		RenderError(w, r, h.Logger, apperrors.ValidationField("script_format", err.Error()))
		return service.SubmitRequest{}, false
	}
	content, err := base64.StdEncoding.DecodeString(strings.TrimSpace(body.ScriptContent))
	if err != nil {
		RenderError(w, r, h.Logger, apperrors.ValidationField("script_content", "script_content must be valid base64"))
		return service.SubmitRequest{}, false
	}
	req := service.SubmitRequest{
		ProjectID:      strings.TrimSpace(body.ProjectID),
		Format:         format,
		Content:        content,
		DeliveryMode:   body.Delivery,
		IdempotencyKey: body.IdempotencyKey,
		Metadata:       body.Metadata,
	}
	if body.Priority != nil {
		if *body.Priority == 0 {
			RenderError(w, r, h.Logger, apperrors.ValidationField("priority", "priority must be between 1 and 10"))
			return service.SubmitRequest{}, false
		}
		req.Priority = *body.Priority
	}
	return req, true
}

func (h *SecurityHandlers) resolveMultipart(w http.ResponseWriter, r *http.Request) (service.SubmitRequest, bool) {
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) {
			WriteError(w, ErrorParams{Code: http.StatusRequestEntityTooLarge, ErrCode: "request_too_large", Err: errors.New("request body too large")})
			return service.SubmitRequest{}, false
		}
		RenderError(w, r, h.Logger, apperrors.Validation("malformed multipart body"))
		return service.SubmitRequest{}, false
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	file, header, err := r.FormFile(formFileField)
	if err != nil {
		RenderError(w, r, h.Logger, apperrors.ValidationField(formFileField, "Multipart request must include a 'file' field"))
		return service.SubmitRequest{}, false
	}
	defer func() { _ = file.Close() }()

	content, ok := h.readUpload(w, r, file)
	if !ok {
		return service.SubmitRequest{}, false
	}

	format, err := formatFromFilename(header.Filename)
	if sf := r.FormValue("script_format"); sf != "" {
		format, err = model.ParseScriptFormat(sf)
	}
	if err != nil {
		RenderError(w, r, h.Logger, apperrors.ValidationField("script_format", err.Error()))
		return service.SubmitRequest{}, false
	}

	req := service.SubmitRequest{
		ProjectID: strings.TrimSpace(r.FormValue("project_id")),
		Format:    format,
		Content:   content,
	}
	if v := r.FormValue("priority"); v != "" {
		p, perr := strconv.Atoi(v)
		if perr != nil || p == 0 {
			RenderError(w, r, h.Logger, apperrors.ValidationField("priority", "priority must be between 1 and 10"))
			return service.SubmitRequest{}, false
		}
		req.Priority = p
	}
	if v := r.FormValue("delivery"); v != "" {
		if err := req.DeliveryMode.UnmarshalText([]byte(v)); err != nil {
			RenderError(w, r, h.Logger, apperrors.ValidationField("delivery", err.Error()))
			return service.SubmitRequest{}, false
		}
	}
	if v := strings.TrimSpace(r.FormValue("idempotency_key")); v != "" {
		req.IdempotencyKey = &v
	}
	return req, true
}

func (h *SecurityHandlers) readUpload(w http.ResponseWriter, r *http.Request, file multipart.File) ([]byte, bool) {
	content, err := io.ReadAll(io.LimitReader(file, parser.MaxInputBytes+1))
	if err != nil {
		RenderError(w, r, h.Logger, err)
		return nil, false
	}
	if len(content) > parser.MaxInputBytes {
		WriteError(w, ErrorParams{
			Code:    http.StatusRequestEntityTooLarge,
			ErrCode: "request_too_large",
			Err:     errors.New("File exceeds maximum size of " + strconv.Itoa(parser.MaxInputBytes) + " bytes"),
		})
		return nil, false
	}
	if len(content) == 0 {
		RenderError(w, r, h.Logger, apperrors.ValidationField(formFileField, "Uploaded file is empty"))
		return nil, false
	}
	return content, true
}

func formatFromFilename(name string) (model.ScriptFormat, error) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".fdx":
		return model.ScriptFormatFDX, nil
	case ".pdf":
		return model.ScriptFormatPDF, nil
	default:
		return "", errors.New("Unsupported file type. Allowed: .fdx, .pdf")
	}
}

// GetJob handles GET /v1/security/jobs/{job_id}.
func (h *SecurityHandlers) GetJob(w http.ResponseWriter, r *http.Request) {
	resp, err := h.Jobs.Status(r.Context(), r.PathValue("job_id"), UserIDFromContext(r.Context()))
	if err != nil {
		RenderError(w, r, h.Logger, err)
		return
	}
	WriteJSON(w, http.StatusOK, resp)
}

type jobListResponse struct {
	Jobs   []model.JobStatusResponse `json:"jobs"`
	Limit  int                       `json:"limit"`
	Offset int                       `json:"offset"`
}

// ListJobs handles GET /v1/security/jobs.
func (h *SecurityHandlers) ListJobs(w http.ResponseWriter, r *http.Request) {
	limit, offset := ParseLimitOffset(r, defaultListLimit, maxListLimit)
	f := model.JobListFilter{
		UserID: UserIDFromContext(r.Context()),
		Limit:  limit,
		Offset: offset,
	}
	if v := queryString(r, "status"); v != nil {
		f.Status = model.JobStatus(strings.ToLower(*v))
	}
	if v := queryString(r, "project_id"); v != nil {
		f.ProjectID = *v
	}
	jobs, err := h.Jobs.List(r.Context(), f)
	if err != nil {
		RenderError(w, r, h.Logger, err)
		return
	}
	WriteJSON(w, http.StatusOK, jobListResponse{Jobs: jobs, Limit: limit, Offset: offset})
}

// CancelJob handles POST /v1/security/jobs/{job_id}/cancel.
func (h *SecurityHandlers) CancelJob(w http.ResponseWriter, r *http.Request) {
	resp, err := h.Jobs.Cancel(r.Context(), r.PathValue("job_id"), UserIDFromContext(r.Context()))
	if err != nil {
		RenderError(w, r, h.Logger, err)
		return
	}
	WriteJSON(w, http.StatusOK, resp)
}

// GetReport handles GET /v1/security/reports/{report_id}. The URL works once.
func (h *SecurityHandlers) GetReport(w http.ResponseWriter, r *http.Request) {
	resp, err := h.Reports.Retrieve(r.Context(), r.PathValue("report_id"), UserIDFromContext(r.Context()))
	if err != nil {
		RenderError(w, r, h.Logger, err)
		return
	}
	w.Header().Set("Cache-Control", "no-store")
	WriteJSON(w, http.StatusOK, resp)
}
