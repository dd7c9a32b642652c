package http_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/atinyakov/CertTrack/internal/apperr"
	"github.com/atinyakov/CertTrack/internal/models"
	handler "github.com/atinyakov/CertTrack/internal/server/handler/http"
	"github.com/atinyakov/CertTrack/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeCertificateService records calls and returns preconfigured results.
type fakeCertificateService struct {
	createIn service.CreateCertificateInput
	updateID string
	updateIn service.UpdateCertificateInput
	keys     []models.CertificateKey
	fileBody map[models.Category]string
	list     []models.Certificate
	cert     *models.Certificate
	deleted  int64
	err      error
}

func (f *fakeCertificateService) List(context.Context) ([]models.Certificate, error) {
	return f.list, f.err
}

func (f *fakeCertificateService) Create(_ context.Context, in service.CreateCertificateInput) (*models.Certificate, error) {
	f.createIn = in
	f.readFiles(in.Files)
	return f.cert, f.err
}

func (f *fakeCertificateService) Update(_ context.Context, id string, in service.UpdateCertificateInput) (*models.Certificate, error) {
	f.updateID, f.updateIn = id, in
	f.readFiles(in.Files)
	return f.cert, f.err
}

func (f *fakeCertificateService) DeleteBulk(_ context.Context, keys []models.CertificateKey) (int64, error) {
	f.keys = keys
	return f.deleted, f.err
}

func (f *fakeCertificateService) readFiles(files map[models.Category]*models.Attachment) {
	f.fileBody = map[models.Category]string{}
	for c, a := range files {
		b, _ := io.ReadAll(a.Content)
		f.fileBody[c] = a.OriginalName + ":" + string(b)
	}
}

var sampleCert = models.Certificate{
	ID:                "abc",
	NumCert:           2001,
	Serial:            "X1",
	UploadDate:        time.Date(2024, 7, 1, 10, 30, 0, 123000000, time.UTC),
	Result:            models.ResultCompliant,
	CompanyID:         "ACME",
	AssignedUsernames: []string{"alice"},
	Links:             models.DefaultLinks(),
}

func newTestRouter(certs *fakeCertificateService) http.Handler {
	return handler.NewRouter(
		&handler.CertificateHandler{CertificateService: certs},
		&handler.AuthHandler{AuthService: &fakeAuthService{}},
		&handler.AdminHandler{FolderService: &fakeFolderService{}},
		nil,
	)
}

func multipartBody(t *testing.T, fields map[string][]string, files map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	buf := &bytes.Buffer{}
	mw := multipart.NewWriter(buf)
	for k, vs := range fields {
		for _, v := range vs {
			require.NoError(t, mw.WriteField(k, v))
		}
	}
	for field, content := range files {
		fw, err := mw.CreateFormFile(field, field+".pdf")
		require.NoError(t, err)
		_, err = fw.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())
	return buf, mw.FormDataContentType()
}

func TestCertificateList(t *testing.T) {
	fake := &fakeCertificateService{list: []models.Certificate{sampleCert}}
	req := httptest.NewRequest(http.MethodGet, "/api/certificates", nil)
	w := httptest.NewRecorder()

	newTestRouter(fake).ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var got []map[string]any
	require.NoError(t, json.NewDecoder(w.Body).Decode(&got))
	require.Len(t, got, 1)
	assert.Equal(t, "abc", got[0]["id"])
	assert.Equal(t, "2024-07-01T10:30:00.123Z", got[0]["uploadDate"])
	assert.Equal(t, map[string]any{"reportUrl": "#", "formatUrl": "#", "certificateUrl": "#"}, got[0]["links"])
}

func TestCertificateList_Empty(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/certificates", nil)
	w := httptest.NewRecorder()

	newTestRouter(&fakeCertificateService{}).ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "[]\n", w.Body.String())
}

func TestCertificateCreate_Multipart(t *testing.T) {
	fake := &fakeCertificateService{cert: &sampleCert}
	body, ct := multipartBody(t, map[string][]string{
		"numCert":           {"2001"},
		"serial":            {"X1"},
		"companyId":         {"ACME"},
		"assignedUsernames": {"alice,bob", "carol"},
		"uploadDate":        {"2024-07-01"},
		"formatFolder":      {"folder-f"},
	}, map[string]string{"report": "REPORT", "certificate": "CERT"})

	req := httptest.NewRequest(http.MethodPost, "/api/certificates", body)
	req.Header.Set("Content-Type", ct)
	w := httptest.NewRecorder()

	newTestRouter(fake).ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	in := fake.createIn
	require.NotNil(t, in.NumCert)
	assert.Equal(t, 2001, *in.NumCert)
	assert.Equal(t, "X1", in.Serial)
	assert.Equal(t, "ACME", in.CompanyID)
	assert.Equal(t, []string{"alice", "bob", "carol"}, in.AssignedUsernames)
	require.NotNil(t, in.UploadDate)
	assert.Equal(t, time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC), *in.UploadDate)
	assert.Equal(t, models.FolderRouting{Format: "folder-f"}, in.Folders)
	assert.Equal(t, map[models.Category]string{
		models.CategoryReport:      "report.pdf:REPORT",
		models.CategoryCertificate: "certificate.pdf:CERT",
	}, fake.fileBody)

	var got map[string]any
	require.NoError(t, json.NewDecoder(w.Body).Decode(&got))
	assert.Equal(t, "abc", got["id"])
}

func TestCertificateCreate_JSON(t *testing.T) {
	fake := &fakeCertificateService{cert: &sampleCert}
	payload := `{"numCert":2001,"serial":"X1","companyId":"ACME","assignedUsernames":["alice"]}`
	req := httptest.NewRequest(http.MethodPost, "/api/certificates", strings.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()

	newTestRouter(fake).ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	require.NotNil(t, fake.createIn.NumCert)
	assert.Equal(t, 2001, *fake.createIn.NumCert)
	assert.Equal(t, []string{"alice"}, fake.createIn.AssignedUsernames)
}

func TestCertificateCreate_Errors(t *testing.T) {
	tests := []struct {
		name    string
		numCert string
		err     error
		code    int
		message string
	}{
		{"non integer numCert", "abc", nil, http.StatusBadRequest, "numCert must be an integer"},
		{"validation", "1", apperr.Validation("required fields: numCert, serial, companyId, assignedUsernames"), http.StatusBadRequest, "required fields: numCert, serial, companyId, assignedUsernames"},
		{"upload failure", "1", apperr.Upload("error uploading files to Google Drive", errors.New("googleapi: 500 secret detail")), http.StatusInternalServerError, "error uploading files to Google Drive"},
		{"unexpected", "1", errors.New("boom"), http.StatusInternalServerError, "internal error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := &fakeCertificateService{err: tt.err}
			body, ct := multipartBody(t, map[string][]string{"numCert": {tt.numCert}}, nil)
			req := httptest.NewRequest(http.MethodPost, "/api/certificates", body)
			req.Header.Set("Content-Type", ct)
			w := httptest.NewRecorder()

			newTestRouter(fake).ServeHTTP(w, req)

			assert.Equal(t, tt.code, w.Code)
			var got map[string]string
			require.NoError(t, json.NewDecoder(w.Body).Decode(&got))
			assert.Equal(t, tt.message, got["message"])
		})
	}
}

func TestCertificateUpdate_RequiresAdmin(t *testing.T) {
	fake := &fakeCertificateService{cert: &sampleCert}
	body, ct := multipartBody(t, map[string][]string{"serial": {"NEW"}}, nil)
	req := httptest.NewRequest(http.MethodPut, "/api/certificates/abc", body)
	req.Header.Set("Content-Type", ct)
	w := httptest.NewRecorder()

	newTestRouter(fake).ServeHTTP(w, req)

	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Empty(t, fake.updateID)
}

func TestCertificateUpdate_PartialFields(t *testing.T) {
	fake := &fakeCertificateService{cert: &sampleCert}
	body, ct := multipartBody(t, map[string][]string{
		"serial":    {"NEW"},
		"companyId": {""},
	}, map[string]string{"format": "FMT"})
	req := httptest.NewRequest(http.MethodPut, "/api/certificates/abc", body)
	req.Header.Set("Content-Type", ct)
	req.Header.Set("X-Role", "admin")
	w := httptest.NewRecorder()

	newTestRouter(fake).ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "abc", fake.updateID)
	in := fake.updateIn
	require.NotNil(t, in.Serial)
	assert.Equal(t, "NEW", *in.Serial)
	assert.Nil(t, in.CompanyID)
	assert.Nil(t, in.NumCert)
	assert.Nil(t, in.AssignedUsernames)
	assert.Equal(t, map[models.Category]string{models.CategoryFormat: "format.pdf:FMT"}, fake.fileBody)
}

func TestCertificateUpdate_NotFound(t *testing.T) {
	fake := &fakeCertificateService{err: apperr.NotFound("certificate does not exist")}
	req := httptest.NewRequest(http.MethodPut, "/api/certificates/abc", strings.NewReader(`{"serial":"x"}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Role", "ADMIN")
	w := httptest.NewRecorder()

	newTestRouter(fake).ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.JSONEq(t, `{"message":"certificate does not exist"}`, w.Body.String())
}

func TestCertificateDeleteBulk(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"wrapped", `{"items":[{"companyId":"ACME","numCert":1,"serial":"S1"}]}`},
		{"bare array", `[{"companyId":"ACME","numCert":1,"serial":"S1"}]`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := &fakeCertificateService{deleted: 1}
			req := httptest.NewRequest(http.MethodDelete, "/api/certificates/bulk", strings.NewReader(tt.body))
			req.Header.Set("Content-Type", "application/json")
			w := httptest.NewRecorder()

			newTestRouter(fake).ServeHTTP(w, req)

			require.Equal(t, http.StatusOK, w.Code)
			assert.JSONEq(t, `{"ok":true,"deleted":1}`, w.Body.String())
			assert.Equal(t, []models.CertificateKey{{CompanyID: "ACME", NumCert: 1, Serial: "S1"}}, fake.keys)
		})
	}
}

func TestCertificateDeleteBulk_Errors(t *testing.T) {
	fake := &fakeCertificateService{err: apperr.Validation("empty list")}
	req := httptest.NewRequest(http.MethodDelete, "/api/certificates/bulk", strings.NewReader(`{"items":[]}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()

	newTestRouter(fake).ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.JSONEq(t, `{"message":"empty list"}`, w.Body.String())

	req = httptest.NewRequest(http.MethodDelete, "/api/certificates/bulk", strings.NewReader(`{"items":`))
	req.Header.Set("Content-Type", "application/json")
	w = httptest.NewRecorder()

	newTestRouter(&fakeCertificateService{}).ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHealthz(t *testing.T) {
	w := httptest.NewRecorder()
	newTestRouter(&fakeCertificateService{}).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}
