package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/careerboard/internal/job"
	"github.com/hitoshi/careerboard/internal/middleware"
	"github.com/hitoshi/careerboard/internal/model"
)

// JobServiceInterface は求人ハンドラーが必要とするサービスインターフェース。
type JobServiceInterface interface {
	Create(ctx context.Context, p *model.Principal, in job.Posting) (*model.Job, error)
	ListActive(ctx context.Context, limit int) ([]*model.Job, error)
}

// JobHandler は求人のHTTPハンドラー。
type JobHandler struct {
	service   JobServiceInterface
	validator *RequestValidator
}

// NewJobHandler はJobHandlerを生成する。
func NewJobHandler(service JobServiceInterface, v *RequestValidator) *JobHandler {
	return &JobHandler{service: service, validator: v}
}

type jobCreateRequest struct {
	Title       string   `json:"title" validate:"required,max=200"`
	Description string   `json:"description" validate:"omitempty,max=10000"`
	Skills      []string `json:"skills" validate:"omitempty,max=30,dive,max=60"`
}

// List は募集中の求人一覧を返す。
// GET /jobs?limit=N
func (h *JobHandler) List(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			middleware.WriteErrorResponse(w, model.NewValidationError("limitは0以上の整数で指定してください。"))
			return
		}
		limit = n
	}

	jobs, err := h.service.ListActive(r.Context(), limit)
	if err != nil {
		middleware.WriteError(w, r, err)
		return
	}

	out := make([]jobResponse, 0, len(jobs))
	for _, j := range jobs {
		out = append(out, newJobResponse(j))
	}
	writeJSON(w, http.StatusOK, out)
}

// Create は求人を掲載する。
// POST /jobs
func (h *JobHandler) Create(w http.ResponseWriter, r *http.Request) {
	p, ok := principalOrReject(w, r)
	if !ok {
		return
	}

	var req jobCreateRequest
	if err := h.validator.Decode(w, r, &req); err != nil {
		middleware.WriteError(w, r, err)
		return
	}

	created, err := h.service.Create(r.Context(), p, job.Posting{
		Title:       req.Title,
		Description: req.Description,
		Skills:      req.Skills,
	})
	if err != nil {
		middleware.WriteError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, newJobResponse(created))
}

// jobIDParam はURLパスの求人IDを返す。
func jobIDParam(r *http.Request) string {
	return chi.URLParam(r, "id")
}
