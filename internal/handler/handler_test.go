package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/membership-consent-api/internal/dto"
	"github.com/noah-isme/membership-consent-api/internal/middleware"
	"github.com/noah-isme/membership-consent-api/internal/models"
	appErrors "github.com/noah-isme/membership-consent-api/pkg/errors"
	"github.com/noah-isme/membership-consent-api/pkg/export"
)

const (
	memberID  = "8d2f9a8e-2b0a-4c55-9a53-0d6f4f7a1c10"
	versionID = "6f1c1d3e-6a52-4a0c-9d1f-2f6a7c1b9e01"
	docID     = "0b7d3c44-5e0f-4f5a-a0d4-2c1d6b7e8f90"
)

type envelope struct {
	Data  json.RawMessage        `json:"data"`
	Error *appErrors.Error       `json:"error"`
	Meta  map[string]interface{} `json:"meta"`
}

func decode(t *testing.T, w *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	return env
}

func newTestContext(method, target string, body interface{}) (*gin.Context, *httptest.ResponseRecorder) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		raw, _ := json.Marshal(b)
		reader = bytes.NewReader(raw)
	}
	req, _ := http.NewRequest(method, target, reader)
	req.Header.Set("Content-Type", "application/json")
	c.Request = req
	return c, w
}

type consentServiceStub struct {
	created  bool
	lastReq  dto.RecordConsentRequest
	err      error
	listResp []models.ConsentRecord
}

func (s *consentServiceStub) RecordConsent(_ context.Context, req dto.RecordConsentRequest) (*models.ConsentRecord, bool, error) {
	s.lastReq = req
	if s.err != nil {
		return nil, false, s.err
	}
	return &models.ConsentRecord{ID: "c1", UserID: req.UserID, DocumentVersionID: req.DocumentVersionID}, s.created, nil
}

func (s *consentServiceStub) ListUserConsents(context.Context, string) ([]models.ConsentRecord, error) {
	return s.listResp, nil
}

func TestConsentHandlerRecordUsesRequestContext(t *testing.T) {
	stub := &consentServiceStub{created: true}
	h := NewConsentHandler(stub)
	c, w := newTestContext(http.MethodPost, "/members/"+memberID+"/consents", map[string]string{"documentVersionId": versionID})
	c.Params = gin.Params{{Key: "id", Value: memberID}}
	c.Request.Header.Set("User-Agent", "Firefox/140")
	c.Request.RemoteAddr = "203.0.113.9:5555"
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: memberID, Role: models.RoleMember})

	h.Record(c)
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, memberID, stub.lastReq.UserID)
	assert.Equal(t, "203.0.113.9", stub.lastReq.IPAddress)
	assert.Equal(t, "Firefox/140", stub.lastReq.UserAgent)

	var resp dto.RecordConsentResponse
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &resp))
	assert.True(t, resp.Created)
}

func TestConsentHandlerDuplicateIsOK(t *testing.T) {
	h := NewConsentHandler(&consentServiceStub{created: false})
	c, w := newTestContext(http.MethodPost, "/", map[string]string{"documentVersionId": versionID})
	c.Params = gin.Params{{Key: "id", Value: memberID}}

	h.Record(c)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestConsentHandlerRejectsBadInput(t *testing.T) {
	h := NewConsentHandler(&consentServiceStub{})

	c, w := newTestContext(http.MethodPost, "/", map[string]string{"documentVersionId": versionID})
	c.Params = gin.Params{{Key: "id", Value: "not-a-uuid"}}
	h.Record(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	c, w = newTestContext(http.MethodPost, "/", "{broken")
	c.Params = gin.Params{{Key: "id", Value: memberID}}
	h.Record(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestConsentHandlerMapsNotFound(t *testing.T) {
	h := NewConsentHandler(&consentServiceStub{err: appErrors.Clone(appErrors.ErrNotFound, "document version not found")})
	c, w := newTestContext(http.MethodPost, "/", map[string]string{"documentVersionId": versionID})
	c.Params = gin.Params{{Key: "id", Value: memberID}}
	h.Record(c)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "NOT_FOUND", decode(t, w).Error.Code)
}

type calculatorStub struct {
	scopes []string
	ids    []string
}

func (s *calculatorStub) Evaluate(_ context.Context, userID, scopeID string) (*models.MemberStatus, error) {
	s.scopes = append(s.scopes, scopeID)
	return &models.MemberStatus{UserID: userID, ScopeID: scopeID, Status: models.MembershipStatusActive, MissingVersions: []string{}}, nil
}

func (s *calculatorStub) ComputeStatusesForScope(_ context.Context, ids []string, scopeID string) (map[string]models.MembershipStatus, error) {
	s.ids = ids
	s.scopes = append(s.scopes, scopeID)
	out := map[string]models.MembershipStatus{}
	for _, id := range ids {
		out[id] = models.MembershipStatusNone
	}
	return out, nil
}

func (s *calculatorStub) EveryoneScope() string { return models.ScopeEveryone }

func TestMembershipHandlerStatus(t *testing.T) {
	stub := &calculatorStub{}
	h := NewMembershipHandler(stub, nil)

	c, w := newTestContext(http.MethodGet, "/members/"+memberID+"/status?scope="+docID, nil)
	c.Params = gin.Params{{Key: "id", Value: memberID}}
	h.Status(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []string{docID}, stub.scopes)

	c, w = newTestContext(http.MethodGet, "/members/"+memberID+"/status?scope=board", nil)
	c.Params = gin.Params{{Key: "id", Value: memberID}}
	h.Status(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestMembershipHandlerBatchStatus(t *testing.T) {
	stub := &calculatorStub{}
	h := NewMembershipHandler(stub, nil)

	c, w := newTestContext(http.MethodPost, "/members/status", dto.BatchStatusRequest{UserIDs: []string{memberID}})
	h.BatchStatus(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []string{models.ScopeEveryone}, stub.scopes)
	assert.Equal(t, models.ScopeEveryone, decode(t, w).Meta["scope_id"])

	c, w = newTestContext(http.MethodPost, "/members/status", dto.BatchStatusRequest{UserIDs: []string{}})
	h.BatchStatus(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	c, w = newTestContext(http.MethodPost, "/members/status", dto.BatchStatusRequest{UserIDs: []string{"bob"}})
	h.BatchStatus(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

type syncServiceStub struct {
	report *models.SyncReport
	err    error
}

func (s *syncServiceStub) SyncAll(context.Context) (*models.SyncReport, error) { return s.report, s.err }
func (s *syncServiceStub) SyncDocument(_ context.Context, id string) (*models.SyncResult, error) {
	return &models.SyncResult{DocumentID: id, Outcome: models.SyncOutcomeUnchanged}, s.err
}
func (s *syncServiceStub) CheckForUpdates(context.Context) ([]models.LegalDocument, error) {
	return []models.LegalDocument{}, s.err
}
func (s *syncServiceStub) GetRequiredVersions(context.Context) ([]models.RequiredVersion, error) {
	return []models.RequiredVersion{{ScopeID: models.ScopeEveryone}}, nil
}
func (s *syncServiceStub) GetRequiredVersionsForScope(_ context.Context, scope string) ([]models.RequiredVersion, error) {
	return []models.RequiredVersion{{ScopeID: scope}}, nil
}
func (s *syncServiceStub) GetVersionByID(_ context.Context, id string) (*models.DocumentVersion, error) {
	return nil, appErrors.Clone(appErrors.ErrNotFound, "document version not found")
}
func (s *syncServiceStub) ListVersions(context.Context, string) ([]models.DocumentVersion, error) {
	return []models.DocumentVersion{}, nil
}

type documentServiceStub struct{}

func (documentServiceStub) List(context.Context, dto.LegalDocumentQuery) ([]models.LegalDocument, error) {
	return []models.LegalDocument{}, nil
}
func (documentServiceStub) Get(_ context.Context, id string) (*models.LegalDocument, error) {
	return &models.LegalDocument{ID: id}, nil
}
func (documentServiceStub) Create(_ context.Context, req dto.CreateLegalDocumentRequest) (*models.LegalDocument, error) {
	return &models.LegalDocument{ID: docID, Name: req.Name}, nil
}
func (documentServiceStub) Update(_ context.Context, id string, req dto.UpdateLegalDocumentRequest) (*models.LegalDocument, error) {
	return &models.LegalDocument{ID: id, Name: req.Name}, nil
}

func TestLegalDocumentHandlerSyncAllReportsCounts(t *testing.T) {
	report := &models.SyncReport{Results: []models.SyncResult{
		{Outcome: models.SyncOutcomeUpdated},
		{Outcome: models.SyncOutcomeFailed},
		{Outcome: models.SyncOutcomeSkipped},
		{Outcome: models.SyncOutcomeSkipped},
	}}
	h := NewLegalDocumentHandler(documentServiceStub{}, &syncServiceStub{report: report})
	c, w := newTestContext(http.MethodPost, "/legal-documents/sync", nil)
	h.SyncAll(c)
	require.Equal(t, http.StatusOK, w.Code)
	meta := decode(t, w).Meta
	assert.EqualValues(t, 1, meta["updated"])
	assert.EqualValues(t, 2, meta["skipped"])
}

func TestLegalDocumentHandlerSyncAllBackoff(t *testing.T) {
	backoff := appErrors.New("SOURCE_BACKOFF", http.StatusServiceUnavailable, "document source is backing off")
	h := NewLegalDocumentHandler(documentServiceStub{}, &syncServiceStub{err: backoff})
	c, w := newTestContext(http.MethodPost, "/legal-documents/sync", nil)
	h.SyncAll(c)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestLegalDocumentHandlerRoutesParams(t *testing.T) {
	h := NewLegalDocumentHandler(documentServiceStub{}, &syncServiceStub{})

	c, w := newTestContext(http.MethodGet, "/legal-documents/required-versions?scope="+docID, nil)
	h.RequiredVersions(c)
	require.Equal(t, http.StatusOK, w.Code)
	var versions []models.RequiredVersion
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &versions))
	require.Len(t, versions, 1)
	assert.Equal(t, docID, versions[0].ScopeID)

	c, w = newTestContext(http.MethodGet, "/document-versions/"+versionID, nil)
	c.Params = gin.Params{{Key: "id", Value: versionID}}
	h.GetVersion(c)
	assert.Equal(t, http.StatusNotFound, w.Code)

	c, w = newTestContext(http.MethodGet, "/legal-documents/x", nil)
	c.Params = gin.Params{{Key: "id", Value: "x"}}
	h.Get(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	c, w = newTestContext(http.MethodPost, "/legal-documents", dto.CreateLegalDocumentRequest{Name: "Statutes", GracePeriodDays: 7})
	h.Create(c)
	assert.Equal(t, http.StatusCreated, w.Code)
}

type complianceServiceStub struct {
	format export.Format
}

func (s *complianceServiceStub) NonCompliantMembers(context.Context) ([]models.NonCompliantMember, error) {
	return []models.NonCompliantMember{{UserID: memberID}}, nil
}

func (s *complianceServiceStub) Report(_ context.Context, format export.Format) ([]byte, error) {
	s.format = format
	if format == export.FormatPDF {
		return []byte("%PDF-1.3"), nil
	}
	return []byte("user_id\n"), nil
}

func TestComplianceHandlerReport(t *testing.T) {
	stub := &complianceServiceStub{}
	h := NewComplianceHandler(stub)

	c, w := newTestContext(http.MethodGet, "/compliance/report?format=pdf", nil)
	h.Report(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, export.FormatPDF, stub.format)
	assert.Equal(t, "application/pdf", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), ".pdf")

	c, w = newTestContext(http.MethodGet, "/compliance/report?format=xml", nil)
	h.Report(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	c, w = newTestContext(http.MethodGet, "/compliance/non-compliant", nil)
	h.NonCompliant(c)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 1, decode(t, w).Meta["total"])
}

func TestMetricsHandlerReady(t *testing.T) {
	h := NewMetricsHandler(nil, map[string]Pinger{
		"postgres": PingFunc(func(context.Context) error { return nil }),
	})
	c, w := newTestContext(http.MethodGet, "/ready", nil)
	h.Ready(c)
	assert.Equal(t, http.StatusOK, w.Code)

	h = NewMetricsHandler(nil, map[string]Pinger{
		"redis": PingFunc(func(context.Context) error { return errors.New("connection refused") }),
	})
	c, w = newTestContext(http.MethodGet, "/ready", nil)
	h.Ready(c)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), "connection refused")
}
