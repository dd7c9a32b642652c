package drive

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/atinyakov/CertTrack/internal/apperr"
	"github.com/atinyakov/CertTrack/internal/models"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"google.golang.org/api/googleapi"
)

// ErrNoDestination is returned when neither the request nor the
// configuration names a destination folder.
var ErrNoDestination = errors.New("no destination folder configured")

// Permission is the share permission granted on every uploaded file.
type Permission struct {
	// Type is anyone, domain, user or group.
	Type string
	// Role is reader, commenter or writer.
	Role string
	// Domain is only sent when Type is "domain".
	Domain string
}

// Provider is the subset of the storage provider API the gateway needs.
type Provider interface {
	// GetFile returns the metadata of a file or folder.
	GetFile(ctx context.Context, id string) (*models.FileInfo, error)
	// CreateFile uploads req.Content into folderID.
	CreateFile(ctx context.Context, req models.UploadRequest, folderID string) (*models.UploadedFile, error)
	// CreatePermission shares the file.
	CreatePermission(ctx context.Context, fileID string, perm Permission) error
}

// Refresher forces a new access token.
type Refresher interface {
	Refresh(ctx context.Context) error
}

// Options configure a Gateway.
type Options struct {
	// DefaultFolderID is used when a request names no folder.
	DefaultFolderID string
	// Share is granted after each upload; an empty Type disables sharing.
	Share Permission
}

// Gateway uploads files through a Provider. Every provider call that fails
// with an authorization error is retried exactly once after a forced
// credential refresh.
type Gateway struct {
	provider Provider
	creds    Refresher
	opts     Options
	log      *zap.Logger
}

// NewGateway constructs a Gateway.
func NewGateway(provider Provider, creds Refresher, opts Options, log *zap.Logger) *Gateway {
	if log == nil {
		log = zap.NewNop()
	}
	return &Gateway{provider: provider, creds: creds, opts: opts, log: log}
}

// Upload verifies access to the destination folder, creates the file and
// shares it. Any failure is returned as an upload error.
func (g *Gateway) Upload(ctx context.Context, req models.UploadRequest) (*models.UploadedFile, error) {
	folder := cmp.Or(req.FolderID, g.opts.DefaultFolderID)
	if folder == "" {
		return nil, apperr.Upload("no destination folder", ErrNoDestination)
	}

	err := g.withRetry(ctx, "files.get", func() error {
		_, err := g.provider.GetFile(ctx, folder)
		return err
	})
	if err != nil {
		return nil, apperr.Upload("destination folder is not accessible", err)
	}

	var file *models.UploadedFile
	err = g.withRetry(ctx, "files.create", func() error {
		if req.Content != nil {
			if _, err := req.Content.Seek(0, io.SeekStart); err != nil {
				return fmt.Errorf("rewind content: %w", err)
			}
		}
		created, err := g.provider.CreateFile(ctx, req, folder)
		if err == nil && created == nil {
			err = errors.New("provider returned no file")
		}
		file = created
		return err
	})
	if err != nil {
		return nil, apperr.Upload("provider rejected the upload", err)
	}

	if g.opts.Share.Type != "" {
		err = g.withRetry(ctx, "permissions.create", func() error {
			return g.provider.CreatePermission(ctx, file.ID, g.opts.Share)
		})
		if err != nil {
			return nil, apperr.Upload("could not share the uploaded file", err)
		}
	}

	g.log.Info("file uploaded",
		zap.String("file_id", file.ID),
		zap.String("name", req.FileName),
		zap.String("folder_id", folder),
	)
	return file, nil
}

// Describe returns the metadata of a file or folder.
func (g *Gateway) Describe(ctx context.Context, id string) (*models.FileInfo, error) {
	var info *models.FileInfo
	err := g.withRetry(ctx, "files.get", func() error {
		got, err := g.provider.GetFile(ctx, id)
		info = got
		return err
	})
	if err != nil {
		return nil, err
	}
	return info, nil
}

func (g *Gateway) withRetry(ctx context.Context, op string, call func() error) error {
	err := call()
	if err == nil || !IsAuthError(err) {
		return err
	}

	g.log.Warn("authorization failure, refreshing credentials", zap.String("op", op), zap.Error(err))
	if rerr := g.creds.Refresh(ctx); rerr != nil {
		// The retry still runs; its own error is what the caller sees.
		g.log.Warn("credential refresh failed", zap.String("op", op), zap.Error(rerr))
	}
	return call()
}

// IsAuthError reports whether err is an authorization failure: HTTP 401 or
// an invalid_grant error code from the provider or the token endpoint.
func IsAuthError(err error) bool {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		if gerr.Code == http.StatusUnauthorized {
			return true
		}
		for _, item := range gerr.Errors {
			if item.Reason == "invalid_grant" {
				return true
			}
		}
	}

	var rerr *oauth2.RetrieveError
	if errors.As(err, &rerr) {
		if rerr.ErrorCode == "invalid_grant" {
			return true
		}
		if rerr.Response != nil && rerr.Response.StatusCode == http.StatusUnauthorized {
			return true
		}
	}
	return false
}
