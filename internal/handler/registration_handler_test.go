package handler

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/university-portal-api/internal/middleware"
	"github.com/noah-isme/university-portal-api/internal/models"
	"github.com/noah-isme/university-portal-api/internal/service"
	appErrors "github.com/noah-isme/university-portal-api/pkg/errors"
)

type registrationServiceMock struct {
	result      *service.RegistrationResult
	err         error
	lastStudent string
	lastSection string
}

func (m *registrationServiceMock) RequestSeat(ctx context.Context, studentID string, req service.SeatRequest) (*service.RegistrationResult, error) {
	m.lastStudent = studentID
	m.lastSection = req.SectionID
	return m.result, m.err
}

func (m *registrationServiceMock) DropSeat(ctx context.Context, studentID string, req service.SeatRequest) (*service.RegistrationResult, error) {
	m.lastStudent = studentID
	m.lastSection = req.SectionID
	return m.result, m.err
}

func (m *registrationServiceMock) ListForStudent(ctx context.Context, studentID, termID string) ([]models.EnrollmentDetail, error) {
	m.lastStudent = studentID
	return nil, m.err
}

func (m *registrationServiceMock) SeatCount(ctx context.Context, sectionID string) (*models.SeatCount, error) {
	m.lastSection = sectionID
	if m.err != nil {
		return nil, m.err
	}
	return &models.SeatCount{SectionID: sectionID, Capacity: 30, Enrolled: 12}, nil
}

func studentContext(w *httptest.ResponseRecorder) (*gin.Context, *models.JWTClaims) {
	c, _ := gin.CreateTestContext(w)
	claims := &models.JWTClaims{UserID: "stu-1", Role: models.RoleStudent}
	c.Set(middleware.ContextUserKey, claims)
	return c, claims
}

func TestRegistrationHandlerRequestSeat(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &registrationServiceMock{
		result: &service.RegistrationResult{SectionID: "sec-1", StudentID: "stu-1", Outcome: models.OutcomeEnrolled},
	}
	handler := NewRegistrationHandler(mockSvc)

	w := httptest.NewRecorder()
	c, _ := studentContext(w)
	req, _ := http.NewRequest(http.MethodPost, "/registrations", bytes.NewBufferString(`{"section_id":"sec-1"}`))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req

	handler.RequestSeat(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "stu-1", mockSvc.lastStudent)
	assert.Equal(t, "sec-1", mockSvc.lastSection)
	assert.Contains(t, w.Body.String(), string(models.OutcomeEnrolled))
}

func TestRegistrationHandlerRequestSeatInvalidBody(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewRegistrationHandler(&registrationServiceMock{})

	w := httptest.NewRecorder()
	c, _ := studentContext(w)
	req, _ := http.NewRequest(http.MethodPost, "/registrations", bytes.NewBufferString(`{"section_id":`))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req

	handler.RequestSeat(c)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRegistrationHandlerRequestSeatClosedWindow(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &registrationServiceMock{err: appErrors.ErrRegistrationClosed}
	handler := NewRegistrationHandler(mockSvc)

	w := httptest.NewRecorder()
	c, _ := studentContext(w)
	req, _ := http.NewRequest(http.MethodPost, "/registrations", bytes.NewBufferString(`{"section_id":"sec-1"}`))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req

	handler.RequestSeat(c)
	require.Equal(t, http.StatusConflict, w.Code)
	assert.Contains(t, w.Body.String(), appErrors.ErrRegistrationClosed.Code)
}

func TestRegistrationHandlerRequestSeatMissingClaims(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewRegistrationHandler(&registrationServiceMock{})

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodPost, "/registrations", bytes.NewBufferString(`{"section_id":"sec-1"}`))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req

	handler.RequestSeat(c)
	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRegistrationHandlerDropSeat(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &registrationServiceMock{
		result: &service.RegistrationResult{SectionID: "sec-1", StudentID: "stu-1", Outcome: models.OutcomeDropped},
	}
	handler := NewRegistrationHandler(mockSvc)

	w := httptest.NewRecorder()
	c, _ := studentContext(w)
	req, _ := http.NewRequest(http.MethodPost, "/registrations/drop", bytes.NewBufferString(`{"section_id":"sec-1"}`))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req

	handler.DropSeat(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), string(models.OutcomeDropped))
}

func TestRegistrationHandlerSeatCount(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &registrationServiceMock{}
	handler := NewRegistrationHandler(mockSvc)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodGet, "/sections/sec-1/seats", nil)
	c.Request = req
	c.Params = gin.Params{{Key: "id", Value: "sec-1"}}

	handler.SeatCount(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "sec-1", mockSvc.lastSection)
}
