package handler

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/university-portal-api/internal/models"
	"github.com/noah-isme/university-portal-api/internal/service"
	appErrors "github.com/noah-isme/university-portal-api/pkg/errors"
	"github.com/noah-isme/university-portal-api/pkg/response"
)

type transcriptOperations interface {
	Submit(ctx context.Context, requesterID string, req service.SubmitTranscriptRequest) (*models.TranscriptRequest, error)
	StartReview(ctx context.Context, actorID, requestID string) (*models.TranscriptRequest, error)
	Approve(ctx context.Context, actorID, requestID string, req service.ReviewDecisionRequest) (*models.TranscriptRequest, error)
	Reject(ctx context.Context, actorID, requestID string, req service.ReviewDecisionRequest) (*models.TranscriptRequest, error)
	Issue(ctx context.Context, actorID, requestID string) (*models.TranscriptRequest, error)
	Cancel(ctx context.Context, requesterID, requestID string) (*models.TranscriptRequest, error)
	ListForRequester(ctx context.Context, requesterID string, status models.TranscriptStatus) ([]models.TranscriptRequest, error)
	ListQueue(ctx context.Context, status models.TranscriptStatus) ([]models.TranscriptRequest, error)
	Get(ctx context.Context, callerID string, staff bool, requestID string) (*service.TranscriptRequestDetail, error)
	OfficialPDF(ctx context.Context, callerID string, staff bool, requestID string) ([]byte, error)
	UnofficialPDF(ctx context.Context, studentID string) ([]byte, error)
}

// TranscriptHandler exposes the transcript request workflow.
type TranscriptHandler struct {
	transcripts transcriptOperations
}

// NewTranscriptHandler constructs TranscriptHandler.
func NewTranscriptHandler(transcripts transcriptOperations) *TranscriptHandler {
	return &TranscriptHandler{transcripts: transcripts}
}

// Submit godoc
// @Summary Submit a transcript request
// @Tags Transcripts
// @Accept json
// @Produce json
// @Param payload body service.SubmitTranscriptRequest true "Request payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /transcript-requests [post]
func (h *TranscriptHandler) Submit(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req service.SubmitTranscriptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}

	request, err := h.transcripts.Submit(c.Request.Context(), claims.UserID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, request)
}

// List godoc
// @Summary List transcript requests
// @Description Requesters see their own requests; registrars see the review queue
// @Tags Transcripts
// @Produce json
// @Param status query string false "Filter by status"
// @Success 200 {object} response.Envelope
// @Router /transcript-requests [get]
func (h *TranscriptHandler) List(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	status := models.TranscriptStatus(strings.ToUpper(c.Query("status")))
	var (
		requests []models.TranscriptRequest
		err      error
	)
	if claims.Role == models.RoleRegistrar || claims.Role == models.RoleAdmin {
		requests, err = h.transcripts.ListQueue(c.Request.Context(), status)
	} else {
		requests, err = h.transcripts.ListForRequester(c.Request.Context(), claims.UserID, status)
	}
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, requests, nil)
}

// Get godoc
// @Summary Get a transcript request with its history
// @Tags Transcripts
// @Produce json
// @Param id path string true "Request ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /transcript-requests/{id} [get]
func (h *TranscriptHandler) Get(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	staff := claims.Role == models.RoleRegistrar || claims.Role == models.RoleAdmin
	detail, err := h.transcripts.Get(c.Request.Context(), claims.UserID, staff, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, detail, nil)
}

// StartReview godoc
// @Summary Start reviewing a request
// @Tags Transcripts
// @Produce json
// @Param id path string true "Request ID"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /transcript-requests/{id}/review [put]
func (h *TranscriptHandler) StartReview(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	request, err := h.transcripts.StartReview(c.Request.Context(), claims.UserID, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, request, nil)
}

// Approve godoc
// @Summary Approve a transcript request
// @Tags Transcripts
// @Accept json
// @Produce json
// @Param id path string true "Request ID"
// @Param payload body service.ReviewDecisionRequest false "Decision payload"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /transcript-requests/{id}/approve [put]
func (h *TranscriptHandler) Approve(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req service.ReviewDecisionRequest
	_ = c.ShouldBindJSON(&req)

	request, err := h.transcripts.Approve(c.Request.Context(), claims.UserID, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, request, nil)
}

// Reject godoc
// @Summary Reject a transcript request
// @Tags Transcripts
// @Accept json
// @Produce json
// @Param id path string true "Request ID"
// @Param payload body service.ReviewDecisionRequest true "Decision payload with reason"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /transcript-requests/{id}/reject [put]
func (h *TranscriptHandler) Reject(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req service.ReviewDecisionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}

	request, err := h.transcripts.Reject(c.Request.Context(), claims.UserID, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, request, nil)
}

// Issue godoc
// @Summary Issue an approved transcript
// @Tags Transcripts
// @Produce json
// @Param id path string true "Request ID"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /transcript-requests/{id}/issue [put]
func (h *TranscriptHandler) Issue(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	request, err := h.transcripts.Issue(c.Request.Context(), claims.UserID, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, request, nil)
}

// Cancel godoc
// @Summary Cancel own transcript request
// @Tags Transcripts
// @Produce json
// @Param id path string true "Request ID"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /transcript-requests/{id}/cancel [put]
func (h *TranscriptHandler) Cancel(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	request, err := h.transcripts.Cancel(c.Request.Context(), claims.UserID, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, request, nil)
}

// Download godoc
// @Summary Download the issued transcript PDF
// @Tags Transcripts
// @Produce application/pdf
// @Param id path string true "Request ID"
// @Success 200 {file} binary
// @Failure 404 {object} response.Envelope
// @Failure 412 {object} response.Envelope
// @Router /transcript-requests/{id}/download [get]
func (h *TranscriptHandler) Download(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	staff := claims.Role == models.RoleRegistrar || claims.Role == models.RoleAdmin
	pdf, err := h.transcripts.OfficialPDF(c.Request.Context(), claims.UserID, staff, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}

	filename := fmt.Sprintf("transcript-%s.pdf", c.Param("id"))
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK, "application/pdf", pdf)
}

// Unofficial godoc
// @Summary Download an unofficial transcript of own released grades
// @Tags Transcripts
// @Produce application/pdf
// @Success 200 {file} binary
// @Router /transcripts/unofficial [get]
func (h *TranscriptHandler) Unofficial(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	pdf, err := h.transcripts.UnofficialPDF(c.Request.Context(), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}

	c.Header("Content-Disposition", `attachment; filename="transcript-unofficial.pdf"`)
	c.Data(http.StatusOK, "application/pdf", pdf)
}
