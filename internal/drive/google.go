package drive

import (
	"context"
	"fmt"

	"github.com/atinyakov/CertTrack/internal/models"
	"golang.org/x/oauth2"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

// GoogleProvider implements Provider with the Drive v3 API.
type GoogleProvider struct {
	svc *drive.Service
}

// NewGoogleProvider builds a Drive client that authenticates every request
// with a token from ts.
func NewGoogleProvider(ctx context.Context, ts oauth2.TokenSource, opts ...option.ClientOption) (*GoogleProvider, error) {
	opts = append([]option.ClientOption{option.WithTokenSource(ts)}, opts...)
	svc, err := drive.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create drive service: %w", err)
	}
	return &GoogleProvider{svc: svc}, nil
}

// NewGoogleProviderWithService wraps an existing Drive service.
func NewGoogleProviderWithService(svc *drive.Service) *GoogleProvider {
	return &GoogleProvider{svc: svc}
}

// GetFile returns the metadata of a file or folder, including shared drives.
func (p *GoogleProvider) GetFile(ctx context.Context, id string) (*models.FileInfo, error) {
	f, err := p.svc.Files.Get(id).
		Fields("id", "name", "mimeType", "parents", "driveId").
		SupportsAllDrives(true).
		Context(ctx).
		Do()
	if err != nil {
		return nil, err
	}
	return &models.FileInfo{
		ID:       f.Id,
		Name:     f.Name,
		MimeType: f.MimeType,
		Parents:  f.Parents,
		DriveID:  f.DriveId,
	}, nil
}

// CreateFile uploads the request content as a new file inside folderID.
func (p *GoogleProvider) CreateFile(ctx context.Context, req models.UploadRequest, folderID string) (*models.UploadedFile, error) {
	meta := &drive.File{
		Name:          req.FileName,
		Parents:       []string{folderID},
		MimeType:      req.MimeType,
		Description:   req.Description,
		AppProperties: req.Tags,
	}

	call := p.svc.Files.Create(meta).
		Fields("id", "webViewLink", "webContentLink").
		SupportsAllDrives(true).
		Context(ctx)
	if req.Content != nil {
		call = call.Media(req.Content, googleapi.ContentType(req.MimeType))
	}

	f, err := call.Do()
	if err != nil {
		return nil, err
	}
	return &models.UploadedFile{ID: f.Id, ViewURL: f.WebViewLink, DownloadURL: f.WebContentLink}, nil
}

// CreatePermission shares the file.
func (p *GoogleProvider) CreatePermission(ctx context.Context, fileID string, perm Permission) error {
	body := &drive.Permission{Type: perm.Type, Role: perm.Role}
	if perm.Type == "domain" && perm.Domain != "" {
		body.Domain = perm.Domain
	}
	_, err := p.svc.Permissions.Create(fileID, body).
		SupportsAllDrives(true).
		Context(ctx).
		Do()
	return err
}
