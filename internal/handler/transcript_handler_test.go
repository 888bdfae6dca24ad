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

type transcriptServiceMock struct {
	request     *models.TranscriptRequest
	detail      *service.TranscriptRequestDetail
	pdf         []byte
	err         error
	queueCalled bool
	ownCalled   bool
	lastActor   string
	lastStaff   bool
}

func (m *transcriptServiceMock) Submit(ctx context.Context, requesterID string, req service.SubmitTranscriptRequest) (*models.TranscriptRequest, error) {
	m.lastActor = requesterID
	return m.request, m.err
}

func (m *transcriptServiceMock) StartReview(ctx context.Context, actorID, requestID string) (*models.TranscriptRequest, error) {
	m.lastActor = actorID
	return m.request, m.err
}

func (m *transcriptServiceMock) Approve(ctx context.Context, actorID, requestID string, req service.ReviewDecisionRequest) (*models.TranscriptRequest, error) {
	m.lastActor = actorID
	return m.request, m.err
}

func (m *transcriptServiceMock) Reject(ctx context.Context, actorID, requestID string, req service.ReviewDecisionRequest) (*models.TranscriptRequest, error) {
	m.lastActor = actorID
	return m.request, m.err
}

func (m *transcriptServiceMock) Issue(ctx context.Context, actorID, requestID string) (*models.TranscriptRequest, error) {
	m.lastActor = actorID
	return m.request, m.err
}

func (m *transcriptServiceMock) Cancel(ctx context.Context, requesterID, requestID string) (*models.TranscriptRequest, error) {
	m.lastActor = requesterID
	return m.request, m.err
}

func (m *transcriptServiceMock) ListForRequester(ctx context.Context, requesterID string, status models.TranscriptStatus) ([]models.TranscriptRequest, error) {
	m.ownCalled = true
	return nil, m.err
}

func (m *transcriptServiceMock) ListQueue(ctx context.Context, status models.TranscriptStatus) ([]models.TranscriptRequest, error) {
	m.queueCalled = true
	return nil, m.err
}

func (m *transcriptServiceMock) Get(ctx context.Context, callerID string, staff bool, requestID string) (*service.TranscriptRequestDetail, error) {
	m.lastStaff = staff
	return m.detail, m.err
}

func (m *transcriptServiceMock) OfficialPDF(ctx context.Context, callerID string, staff bool, requestID string) ([]byte, error) {
	m.lastStaff = staff
	return m.pdf, m.err
}

func (m *transcriptServiceMock) UnofficialPDF(ctx context.Context, studentID string) ([]byte, error) {
	m.lastActor = studentID
	return m.pdf, m.err
}

func transcriptContext(w *httptest.ResponseRecorder, role models.UserRole) *gin.Context {
	c, _ := gin.CreateTestContext(w)
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "user-1", Role: role})
	return c
}

func TestTranscriptHandlerSubmit(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &transcriptServiceMock{
		request: &models.TranscriptRequest{ID: "req-1", Status: models.TranscriptStatusSubmitted},
	}
	handler := NewTranscriptHandler(mockSvc)

	w := httptest.NewRecorder()
	c := transcriptContext(w, models.RoleStudent)
	req, _ := http.NewRequest(http.MethodPost, "/transcript-requests",
		bytes.NewBufferString(`{"purpose":"Job application","delivery_method":"EMAIL"}`))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req

	handler.Submit(c)
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "user-1", mockSvc.lastActor)
}

func TestTranscriptHandlerListRoutesByRole(t *testing.T) {
	gin.SetMode(gin.TestMode)

	mockSvc := &transcriptServiceMock{}
	handler := NewTranscriptHandler(mockSvc)

	w := httptest.NewRecorder()
	c := transcriptContext(w, models.RoleStudent)
	req, _ := http.NewRequest(http.MethodGet, "/transcript-requests", nil)
	c.Request = req
	handler.List(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, mockSvc.ownCalled)
	assert.False(t, mockSvc.queueCalled)

	mockSvc = &transcriptServiceMock{}
	handler = NewTranscriptHandler(mockSvc)
	w = httptest.NewRecorder()
	c = transcriptContext(w, models.RoleRegistrar)
	req, _ = http.NewRequest(http.MethodGet, "/transcript-requests?status=submitted", nil)
	c.Request = req
	handler.List(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, mockSvc.queueCalled)
	assert.False(t, mockSvc.ownCalled)
}

func TestTranscriptHandlerGetPassesStaffFlag(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &transcriptServiceMock{
		detail: &service.TranscriptRequestDetail{Request: models.TranscriptRequest{ID: "req-1"}},
	}
	handler := NewTranscriptHandler(mockSvc)

	w := httptest.NewRecorder()
	c := transcriptContext(w, models.RoleRegistrar)
	req, _ := http.NewRequest(http.MethodGet, "/transcript-requests/req-1", nil)
	c.Request = req
	c.Params = gin.Params{{Key: "id", Value: "req-1"}}

	handler.Get(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, mockSvc.lastStaff)
}

func TestTranscriptHandlerRejectInvalidTransition(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &transcriptServiceMock{err: appErrors.ErrInvalidTransition}
	handler := NewTranscriptHandler(mockSvc)

	w := httptest.NewRecorder()
	c := transcriptContext(w, models.RoleRegistrar)
	req, _ := http.NewRequest(http.MethodPut, "/transcript-requests/req-1/reject",
		bytes.NewBufferString(`{"reason":"Hold on account"}`))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req
	c.Params = gin.Params{{Key: "id", Value: "req-1"}}

	handler.Reject(c)
	require.Equal(t, http.StatusConflict, w.Code)
	assert.Contains(t, w.Body.String(), appErrors.ErrInvalidTransition.Code)
}

func TestTranscriptHandlerApproveWithoutBody(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &transcriptServiceMock{
		request: &models.TranscriptRequest{ID: "req-1", Status: models.TranscriptStatusApproved},
	}
	handler := NewTranscriptHandler(mockSvc)

	w := httptest.NewRecorder()
	c := transcriptContext(w, models.RoleRegistrar)
	req, _ := http.NewRequest(http.MethodPut, "/transcript-requests/req-1/approve", nil)
	c.Request = req
	c.Params = gin.Params{{Key: "id", Value: "req-1"}}

	handler.Approve(c)
	require.Equal(t, http.StatusOK, w.Code)
}

func TestTranscriptHandlerDownload(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &transcriptServiceMock{pdf: []byte("%PDF")}
	handler := NewTranscriptHandler(mockSvc)

	w := httptest.NewRecorder()
	c := transcriptContext(w, models.RoleStudent)
	req, _ := http.NewRequest(http.MethodGet, "/transcript-requests/req-1/download", nil)
	c.Request = req
	c.Params = gin.Params{{Key: "id", Value: "req-1"}}

	handler.Download(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/pdf", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), "transcript-req-1.pdf")
}

func TestTranscriptHandlerDownloadNotIssued(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &transcriptServiceMock{err: appErrors.ErrPreconditionFailed}
	handler := NewTranscriptHandler(mockSvc)

	w := httptest.NewRecorder()
	c := transcriptContext(w, models.RoleStudent)
	req, _ := http.NewRequest(http.MethodGet, "/transcript-requests/req-1/download", nil)
	c.Request = req
	c.Params = gin.Params{{Key: "id", Value: "req-1"}}

	handler.Download(c)
	require.Equal(t, http.StatusPreconditionFailed, w.Code)
}
