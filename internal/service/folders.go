package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/atinyakov/CertTrack/internal/apperr"
	"github.com/atinyakov/CertTrack/internal/models"
	"go.uber.org/zap"
)

// FolderRoutingRepository persists the folder routing singleton.
type FolderRoutingRepository interface {
	// GetFolderRouting returns the stored routing or models.ErrRecordNotFound.
	GetFolderRouting(ctx context.Context) (*models.StoredFolderRouting, error)
	// SaveFolderRouting upserts the routing.
	SaveFolderRouting(ctx context.Context, routing models.FolderRouting, at time.Time) error
}

// FileInspector looks up provider metadata.
type FileInspector interface {
	Describe(ctx context.Context, id string) (*models.FileInfo, error)
}

// FolderService reads and edits the folder routing and exposes provider
// metadata lookups to admins.
type FolderService struct {
	repo      FolderRoutingRepository
	inspector FileInspector
	defaults  models.FolderRouting
	log       *zap.Logger
	now       func() time.Time
}

// NewFolderService constructs a FolderService. defaults is returned while no
// routing has been stored.
func NewFolderService(repo FolderRoutingRepository, inspector FileInspector, defaults models.FolderRouting, log *zap.Logger) *FolderService {
	if log == nil {
		log = zap.NewNop()
	}
	return &FolderService{repo: repo, inspector: inspector, defaults: defaults, log: log, now: time.Now}
}

// Get returns the stored routing, or the defaults when none is stored.
func (s *FolderService) Get(ctx context.Context) (models.FolderRouting, error) {
	stored, err := s.repo.GetFolderRouting(ctx)
	if errors.Is(err, models.ErrRecordNotFound) {
		return s.defaults, nil
	}
	if err != nil {
		return models.FolderRouting{}, apperr.Internal("could not load folder routing", err)
	}
	return stored.Value, nil
}

// Update merges the supplied ids over the current routing. Every non-empty
// id must resolve to a folder on the provider.
func (s *FolderService) Update(ctx context.Context, upd models.FolderRoutingUpdate) (models.FolderRouting, error) {
	wanted, err := s.Get(ctx)
	if err != nil {
		return models.FolderRouting{}, err
	}
	for _, c := range models.Categories {
		if v := upd.Get(c); v != nil {
			wanted.Set(c, *v)
		}
	}

	for _, c := range models.Categories {
		id := wanted.Get(c)
		if id == "" {
			continue
		}
		info, err := s.inspector.Describe(ctx, id)
		if err != nil {
			s.log.Warn("folder lookup failed", zap.String("category", string(c)), zap.String("folder_id", id), zap.Error(err))
			return models.FolderRouting{}, apperr.Validation(fmt.Sprintf("invalid id for %s", c))
		}
		if !info.IsFolder() {
			return models.FolderRouting{}, apperr.Validation(fmt.Sprintf("%s is not a folder", c))
		}
	}

	if err := s.repo.SaveFolderRouting(ctx, wanted, s.now().UTC()); err != nil {
		return models.FolderRouting{}, apperr.Internal("could not save folder routing", err)
	}
	s.log.Info("folder routing updated",
		zap.String("report", wanted.Report),
		zap.String("format", wanted.Format),
		zap.String("certificate", wanted.Certificate),
	)
	return wanted, nil
}

// FileInfo returns the provider metadata of a file or folder.
func (s *FolderService) FileInfo(ctx context.Context, id string) (*models.FileInfo, error) {
	if id == "" {
		return nil, apperr.Validation("missing id")
	}
	info, err := s.inspector.Describe(ctx, id)
	if err != nil {
		s.log.Warn("file lookup failed", zap.String("file_id", id), zap.Error(err))
		return nil, apperr.NotFound("file not found")
	}
	return info, nil
}
