package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/university-portal-api/internal/models"
	"github.com/noah-isme/university-portal-api/internal/service"
	appErrors "github.com/noah-isme/university-portal-api/pkg/errors"
	"github.com/noah-isme/university-portal-api/pkg/response"
)

type registrationOperations interface {
	RequestSeat(ctx context.Context, studentID string, req service.SeatRequest) (*service.RegistrationResult, error)
	DropSeat(ctx context.Context, studentID string, req service.SeatRequest) (*service.RegistrationResult, error)
	ListForStudent(ctx context.Context, studentID, termID string) ([]models.EnrollmentDetail, error)
	SeatCount(ctx context.Context, sectionID string) (*models.SeatCount, error)
}

// RegistrationHandler exposes seat allocation endpoints.
type RegistrationHandler struct {
	registrations registrationOperations
}

// NewRegistrationHandler constructs RegistrationHandler.
func NewRegistrationHandler(registrations registrationOperations) *RegistrationHandler {
	return &RegistrationHandler{registrations: registrations}
}

// RequestSeat godoc
// @Summary Request a seat in a section
// @Description Enrolls the caller or waitlists them when the section is full
// @Tags Registration
// @Accept json
// @Produce json
// @Param payload body service.SeatRequest true "Seat request"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /registrations [post]
func (h *RegistrationHandler) RequestSeat(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req service.SeatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}

	result, err := h.registrations.RequestSeat(c.Request.Context(), claims.UserID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// DropSeat godoc
// @Summary Drop a seat
// @Tags Registration
// @Accept json
// @Produce json
// @Param payload body service.SeatRequest true "Seat request"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /registrations/drop [post]
func (h *RegistrationHandler) DropSeat(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req service.SeatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}

	result, err := h.registrations.DropSeat(c.Request.Context(), claims.UserID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// ListMine godoc
// @Summary List own enrollments
// @Tags Registration
// @Produce json
// @Param termId query string false "Term ID, defaults to active term"
// @Success 200 {object} response.Envelope
// @Router /registrations [get]
func (h *RegistrationHandler) ListMine(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	enrollments, err := h.registrations.ListForStudent(c.Request.Context(), claims.UserID, c.Query("termId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, enrollments, nil)
}

// SeatCount godoc
// @Summary Get section seat occupancy
// @Tags Registration
// @Produce json
// @Param id path string true "Section ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /sections/{id}/seats [get]
func (h *RegistrationHandler) SeatCount(c *gin.Context) {
	count, err := h.registrations.SeatCount(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, count, nil)
}
