package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/geocoder89/casehub/internal/actorctx"
	"github.com/geocoder89/casehub/internal/domain/legalcase"
	"github.com/gin-gonic/gin"
)

const (
	defaultPageSize = 10
	maxPageSize     = 100
)

type CasesRepo interface {
	Create(ctx context.Context, req legalcase.CreateCaseRequest) (legalcase.Case, error)
	List(ctx context.Context, f legalcase.ListFilter) ([]legalcase.Case, int, error)
	GetByID(ctx context.Context, id string) (legalcase.Case, error)
	Update(ctx context.Context, id string, req legalcase.UpdateCaseRequest) (legalcase.Case, error)
	AddHearing(ctx context.Context, id string, h legalcase.Hearing) (legalcase.Case, error)
	UpdateHearingStatus(ctx context.Context, id, hearingID, status string) (legalcase.Case, error)
	AddDocument(ctx context.Context, id string, d legalcase.Document) (legalcase.Case, error)
	AddNote(ctx context.Context, id string, n legalcase.Note) (legalcase.Case, error)
}

type CasesHandler struct {
	repo CasesRepo
	log  *slog.Logger
	now  func() time.Time
}

func NewCasesHandler(repo CasesRepo, log *slog.Logger) *CasesHandler {
	return &CasesHandler{repo: repo, log: log, now: time.Now}
}

func (h *CasesHandler) CreateCase(ctx *gin.Context) {
	var req legalcase.CreateCaseRequest
	if !BindJSON(ctx, &req) {
		return
	}

	cctx, cancel := requestContext(ctx, 5*time.Second)
	defer cancel()

	c, err := h.repo.Create(cctx, req)
	if err != nil {
		h.log.ErrorContext(ctx.Request.Context(), "create_case_failed", "err", err)
		RespondInternal(ctx, "Could not create case")
		return
	}

	ctx.JSON(http.StatusCreated, gin.H{"success": true, "message": "Case created successfully", "case": c})
}

func (h *CasesHandler) ListCases(ctx *gin.Context) {
	page, ok := queryInt(ctx, "page", 1)
	if !ok || page < 1 {
		RespondValidation(ctx, "page must be a positive integer")
		return
	}
	limit, ok := queryInt(ctx, "limit", defaultPageSize)
	if !ok || limit < 1 || limit > maxPageSize {
		RespondValidation(ctx, "limit must be between 1 and 100")
		return
	}

	filter := legalcase.ListFilter{Limit: limit, Offset: (page - 1) * limit}

	if s := strings.TrimSpace(ctx.Query("search")); s != "" {
		filter.Search = &s
	}
	if s := strings.TrimSpace(ctx.Query("status")); s != "" && s != "all" {
		if !legalcase.ValidStatus(s) {
			RespondValidation(ctx, "Unknown case status")
			return
		}
		filter.Status = &s
	}
	if t := strings.TrimSpace(ctx.Query("caseType")); t != "" && t != "all" {
		if !legalcase.ValidCaseType(t) {
			RespondValidation(ctx, "Unknown case type")
			return
		}
		filter.CaseType = &t
	}

	cctx, cancel := requestContext(ctx, 5*time.Second)
	defer cancel()

	cases, total, err := h.repo.List(cctx, filter)
	if err != nil {
		h.log.ErrorContext(ctx.Request.Context(), "list_cases_failed", "err", err)
		RespondInternal(ctx, "Could not list cases")
		return
	}

	totalPages := (total + limit - 1) / limit

	ctx.JSON(http.StatusOK, gin.H{
		"success":     true,
		"cases":       cases,
		"total":       total,
		"totalPages":  totalPages,
		"currentPage": page,
	})
}

func (h *CasesHandler) GetCase(ctx *gin.Context) {
	cctx, cancel := requestContext(ctx, 3*time.Second)
	defer cancel()

	c, err := h.repo.GetByID(cctx, ctx.Param("id"))
	if err != nil {
		h.respondCaseError(ctx, "get_case_failed", "Could not fetch case", err)
		return
	}

	RespondJSONWithETag(ctx, http.StatusOK, gin.H{"success": true, "case": c})
}

func (h *CasesHandler) UpdateCase(ctx *gin.Context) {
	var req legalcase.UpdateCaseRequest
	if !BindJSON(ctx, &req) {
		return
	}
	if req.Empty() {
		RespondValidation(ctx, "No updatable fields supplied")
		return
	}

	cctx, cancel := requestContext(ctx, 5*time.Second)
	defer cancel()

	c, err := h.repo.Update(cctx, ctx.Param("id"), req)
	if err != nil {
		h.respondCaseError(ctx, "update_case_failed", "Could not update case", err)
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"success": true, "message": "Case updated successfully", "case": c})
}

func (h *CasesHandler) AddHearing(ctx *gin.Context) {
	var req legalcase.AddHearingRequest
	if !BindJSON(ctx, &req) {
		return
	}

	cctx, cancel := requestContext(ctx, 5*time.Second)
	defer cancel()

	c, err := h.repo.AddHearing(cctx, ctx.Param("id"), legalcase.NewHearing(req))
	if err != nil {
		h.respondCaseError(ctx, "add_hearing_failed", "Could not add hearing", err)
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"success": true, "message": "Hearing added successfully", "case": c})
}

func (h *CasesHandler) UpdateHearingStatus(ctx *gin.Context) {
	var req legalcase.UpdateHearingStatusRequest
	if !BindJSON(ctx, &req) {
		return
	}

	cctx, cancel := requestContext(ctx, 5*time.Second)
	defer cancel()

	c, err := h.repo.UpdateHearingStatus(cctx, ctx.Param("id"), ctx.Param("hearingId"), req.Status)
	if err != nil {
		h.respondCaseError(ctx, "update_hearing_failed", "Could not update hearing", err)
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"success": true, "message": "Hearing status updated", "case": c})
}

func (h *CasesHandler) AddDocument(ctx *gin.Context) {
	var req legalcase.AddDocumentRequest
	if !BindJSON(ctx, &req) {
		return
	}
	actor, _ := actorctx.UserIDFrom(ctx.Request.Context())

	cctx, cancel := requestContext(ctx, 5*time.Second)
	defer cancel()

	doc := legalcase.NewDocument(req, actor, h.now().UTC())
	c, err := h.repo.AddDocument(cctx, ctx.Param("id"), doc)
	if err != nil {
		h.respondCaseError(ctx, "add_document_failed", "Could not add document", err)
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"success": true, "message": "Document added successfully", "case": c})
}

func (h *CasesHandler) AddNote(ctx *gin.Context) {
	var req legalcase.AddNoteRequest
	if !BindJSON(ctx, &req) {
		return
	}
	actor, _ := actorctx.UserIDFrom(ctx.Request.Context())

	cctx, cancel := requestContext(ctx, 5*time.Second)
	defer cancel()

	note := legalcase.NewNote(req, actor, h.now().UTC())
	c, err := h.repo.AddNote(cctx, ctx.Param("id"), note)
	if err != nil {
		h.respondCaseError(ctx, "add_note_failed", "Could not add note", err)
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"success": true, "message": "Note added successfully", "case": c})
}

func (h *CasesHandler) respondCaseError(ctx *gin.Context, event, message string, err error) {
	switch {
	case errors.Is(err, legalcase.ErrNotFound):
		RespondNotFound(ctx, "Case not found")
	case errors.Is(err, legalcase.ErrHearingNotFound):
		RespondNotFound(ctx, "Hearing not found")
	case errors.Is(err, legalcase.ErrNoChanges):
		RespondValidation(ctx, "No updatable fields supplied")
	default:
		h.log.ErrorContext(ctx.Request.Context(), event, "err", err)
		RespondInternal(ctx, message)
	}
}

func queryInt(ctx *gin.Context, key string, fallback int) (int, bool) {
	raw := strings.TrimSpace(ctx.Query(key))
	if raw == "" {
		return fallback, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false
	}
	return n, true
}
