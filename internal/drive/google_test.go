package drive

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/atinyakov/CertTrack/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
	"google.golang.org/api/option"
)

type driveRecorder struct {
	permission map[string]any
	authHeader string
	uploadBody string
}

func newDriveServer(t *testing.T, rec *driveRecorder) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec.authHeader = r.Header.Get("Authorization")
		w.Header().Set("Content-Type", "application/json")

		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/files/folder-1":
			_, _ = io.WriteString(w, `{"id":"folder-1","name":"Reports","mimeType":"application/vnd.google-apps.folder","parents":["root"],"driveId":"d1"}`)
		case r.Method == http.MethodGet && r.URL.Path == "/files/expired":
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = io.WriteString(w, `{"error":{"code":401,"message":"Invalid Credentials","errors":[{"reason":"authError"}]}}`)
		case r.Method == http.MethodPost && r.URL.Path == "/upload/drive/v3/files":
			b, _ := io.ReadAll(r.Body)
			rec.uploadBody = string(b)
			_, _ = io.WriteString(w, `{"id":"new-file","webViewLink":"https://drive.google.com/file/d/new-file/view","webContentLink":"https://drive.google.com/uc?id=new-file"}`)
		case r.Method == http.MethodPost && r.URL.Path == "/files/new-file/permissions":
			_ = json.NewDecoder(r.Body).Decode(&rec.permission)
			_, _ = io.WriteString(w, `{"id":"perm-1"}`)
		default:
			w.WriteHeader(http.StatusNotFound)
			_, _ = io.WriteString(w, `{"error":{"code":404,"message":"File not found"}}`)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newTestProvider(t *testing.T, srv *httptest.Server) *GoogleProvider {
	t.Helper()
	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: "tok", TokenType: "Bearer"})
	client := oauth2.NewClient(context.Background(), ts)
	p, err := NewGoogleProvider(context.Background(), ts,
		option.WithHTTPClient(client),
		option.WithEndpoint(srv.URL+"/"),
	)
	require.NoError(t, err)
	return p
}

func TestGoogleProvider_GetFile(t *testing.T) {
	rec := &driveRecorder{}
	p := newTestProvider(t, newDriveServer(t, rec))

	info, err := p.GetFile(context.Background(), "folder-1")
	require.NoError(t, err)
	assert.Equal(t, &models.FileInfo{
		ID:       "folder-1",
		Name:     "Reports",
		MimeType: models.FolderMimeType,
		Parents:  []string{"root"},
		DriveID:  "d1",
	}, info)
	assert.Equal(t, "Bearer tok", rec.authHeader)
}

func TestGoogleProvider_GetFile_Unauthorized(t *testing.T) {
	p := newTestProvider(t, newDriveServer(t, &driveRecorder{}))

	_, err := p.GetFile(context.Background(), "expired")
	require.Error(t, err)
	assert.True(t, IsAuthError(err))

	_, err = p.GetFile(context.Background(), "unknown")
	require.Error(t, err)
	assert.False(t, IsAuthError(err))
}

func TestGoogleProvider_CreateFileAndShare(t *testing.T) {
	rec := &driveRecorder{}
	p := newTestProvider(t, newDriveServer(t, rec))

	file, err := p.CreateFile(context.Background(), models.UploadRequest{
		Content:     strings.NewReader("%PDF-1.4 body"),
		FileName:    "ACME_2001_X1_1.pdf",
		MimeType:    "application/pdf",
		Description: "Users: alice | NumCert: 2001 | Serial: X1",
		Tags:        map[string]string{"NumCert": "2001"},
	}, "folder-1")
	require.NoError(t, err)
	assert.Equal(t, "new-file", file.ID)
	assert.Equal(t, "https://drive.google.com/file/d/new-file/view", file.ViewURL)
	assert.Equal(t, "https://drive.google.com/uc?id=new-file", file.DownloadURL)
	assert.Contains(t, rec.uploadBody, "ACME_2001_X1_1.pdf")
	assert.Contains(t, rec.uploadBody, "%PDF-1.4 body")

	err = p.CreatePermission(context.Background(), "new-file", Permission{Type: "domain", Role: "reader", Domain: "acme.test"})
	require.NoError(t, err)
	assert.Equal(t, "domain", rec.permission["type"])
	assert.Equal(t, "reader", rec.permission["role"])
	assert.Equal(t, "acme.test", rec.permission["domain"])
}
