package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/careerboard/internal/middleware"
	"github.com/hitoshi/careerboard/internal/model"
)

// ApplicationServiceInterface は応募ハンドラーが必要とするサービスインターフェース。
type ApplicationServiceInterface interface {
	Apply(ctx context.Context, p *model.Principal, jobID string) (string, error)
	ListForCandidate(ctx context.Context, p *model.Principal) ([]*model.Application, error)
	ListForJob(ctx context.Context, p *model.Principal, jobID string) ([]*model.Application, error)
	UpdateStatus(ctx context.Context, p *model.Principal, applicationID string, status model.ApplicationStatus) (*model.Application, error)
}

// ApplicationHandler は応募のHTTPハンドラー。
type ApplicationHandler struct {
	service   ApplicationServiceInterface
	validator *RequestValidator
}

// NewApplicationHandler はApplicationHandlerを生成する。
func NewApplicationHandler(service ApplicationServiceInterface, v *RequestValidator) *ApplicationHandler {
	return &ApplicationHandler{service: service, validator: v}
}

type applyResponse struct {
	ApplicationID string `json:"application_id"`
}

type statusUpdateRequest struct {
	Status string `json:"status" validate:"required,oneof=applied shortlisted rejected hired"`
}

// Apply は求職者として求人に応募する。
// POST /jobs/{id}/apply
func (h *ApplicationHandler) Apply(w http.ResponseWriter, r *http.Request) {
	p, ok := principalOrReject(w, r)
	if !ok {
		return
	}

	id, err := h.service.Apply(r.Context(), p, jobIDParam(r))
	if err != nil {
		middleware.WriteError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, applyResponse{ApplicationID: id})
}

// ListForJob は自社求人への応募をスナップショット付きで返す。
// GET /applications?jobId=xxx
func (h *ApplicationHandler) ListForJob(w http.ResponseWriter, r *http.Request) {
	p, ok := principalOrReject(w, r)
	if !ok {
		return
	}

	apps, err := h.service.ListForJob(r.Context(), p, r.URL.Query().Get("jobId"))
	if err != nil {
		middleware.WriteError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newApplicationList(apps))
}

// UpdateStatus は応募の選考状態を更新する。
// PATCH /applications/{id}/status
func (h *ApplicationHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	p, ok := principalOrReject(w, r)
	if !ok {
		return
	}

	var req statusUpdateRequest
	if err := h.validator.Decode(w, r, &req); err != nil {
		middleware.WriteError(w, r, err)
		return
	}

	updated, err := h.service.UpdateStatus(r.Context(), p, chi.URLParam(r, "id"), model.ApplicationStatus(req.Status))
	if err != nil {
		middleware.WriteError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newApplicationResponse(updated))
}
