package service

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/atinyakov/CertTrack/internal/apperr"
	"github.com/atinyakov/CertTrack/internal/models"
	"go.uber.org/zap"
)

const defaultMimeType = "application/pdf"

// CertificateRepository defines the persistence operations needed by the
// CertificateService.
type CertificateRepository interface {
	// ListCertificates returns every certificate ordered by numCert ascending.
	ListCertificates(ctx context.Context) ([]models.Certificate, error)
	// GetCertificate returns the certificate, models.ErrInvalidID or
	// models.ErrRecordNotFound.
	GetCertificate(ctx context.Context, id string) (*models.Certificate, error)
	// InsertCertificate stores a new certificate and returns its id. A
	// duplicate (companyId, numCert) pair fails.
	InsertCertificate(ctx context.Context, cert models.Certificate) (string, error)
	// UpdateCertificate applies the non-nil fields of patch.
	UpdateCertificate(ctx context.Context, id string, patch models.CertificatePatch) error
	// DeleteCertificates removes every certificate matching one of keys
	// exactly and returns how many were removed.
	DeleteCertificates(ctx context.Context, keys []models.CertificateKey) (int64, error)
}

// UserFinder resolves assigned usernames.
type UserFinder interface {
	FindUsers(ctx context.Context, usernames []string) ([]models.User, error)
}

// Uploader puts a file on the storage provider.
type Uploader interface {
	Upload(ctx context.Context, req models.UploadRequest) (*models.UploadedFile, error)
}

// FolderDefaults are the process-wide upload destinations.
type FolderDefaults struct {
	// Routing holds the per-category defaults.
	Routing models.FolderRouting
	// ParentFolderID is the last resort for every category.
	ParentFolderID string
}

// CreateCertificateInput is a certificate submission.
type CreateCertificateInput struct {
	NumCert           *int
	Serial            string
	CompanyID         string
	AssignedUsernames []string
	// Result defaults to models.ResultCompliant.
	Result string
	// UploadDate defaults to now.
	UploadDate *time.Time
	// Folders overrides the destination folder per category.
	Folders models.FolderRouting
	Files   map[models.Category]*models.Attachment
}

// UpdateCertificateInput is a partial update; nil fields are not changed.
// A non-nil, empty AssignedUsernames is rejected.
type UpdateCertificateInput struct {
	NumCert           *int
	Serial            *string
	Result            *string
	UploadDate        *time.Time
	CompanyID         *string
	AssignedUsernames []string
	Folders           models.FolderRouting
	Files             map[models.Category]*models.Attachment
}

// CertificateService validates certificate requests, uploads attachments
// and persists the records.
type CertificateService struct {
	certs    CertificateRepository
	users    UserFinder
	folders  FolderRoutingRepository
	uploader Uploader
	defaults FolderDefaults
	log      *zap.Logger
	now      func() time.Time
}

// NewCertificateService constructs a CertificateService.
func NewCertificateService(
	certs CertificateRepository,
	users UserFinder,
	folders FolderRoutingRepository,
	uploader Uploader,
	defaults FolderDefaults,
	log *zap.Logger,
) *CertificateService {
	if log == nil {
		log = zap.NewNop()
	}
	return &CertificateService{
		certs:    certs,
		users:    users,
		folders:  folders,
		uploader: uploader,
		defaults: defaults,
		log:      log,
		now:      time.Now,
	}
}

// List returns every certificate ordered by numCert.
func (s *CertificateService) List(ctx context.Context) ([]models.Certificate, error) {
	certs, err := s.certs.ListCertificates(ctx)
	if err != nil {
		return nil, apperr.Internal("could not list certificates", err)
	}
	out := make([]models.Certificate, 0, len(certs))
	for _, c := range certs {
		out = append(out, normalize(c))
	}
	return out, nil
}

// Create validates the submission, uploads the attached files and stores the
// certificate. The first failed upload aborts the request before anything is
// written; files uploaded before it stay on the provider.
func (s *CertificateService) Create(ctx context.Context, in CreateCertificateInput) (*models.Certificate, error) {
	usernames := normalizeUsernames(in.AssignedUsernames)
	if in.NumCert == nil || strings.TrimSpace(in.Serial) == "" || in.CompanyID == "" || len(usernames) == 0 {
		return nil, apperr.Validation("required fields: numCert, serial, companyId, assignedUsernames")
	}

	if err := s.validateAssignment(ctx, in.CompanyID, usernames); err != nil {
		return nil, err
	}

	cert := models.Certificate{
		NumCert:           *in.NumCert,
		Serial:            in.Serial,
		UploadDate:        s.now(),
		Result:            cmp.Or(in.Result, models.ResultCompliant),
		CompanyID:         in.CompanyID,
		AssignedUsernames: usernames,
		Links:             models.DefaultLinks(),
	}
	if in.UploadDate != nil {
		cert.UploadDate = *in.UploadDate
	}
	cert.UploadDate = canonicalTime(cert.UploadDate)

	links, err := s.uploadAttachments(ctx, cert, in.Files, in.Folders, cert.Links)
	if err != nil {
		return nil, err
	}
	cert.Links = links

	id, err := s.certs.InsertCertificate(ctx, cert)
	if err != nil {
		s.log.Error("failed to insert certificate",
			zap.String("company_id", cert.CompanyID),
			zap.Int("num_cert", cert.NumCert),
			zap.Error(err),
		)
		return nil, apperr.Internal("could not save certificate", err)
	}
	cert.ID = id
	return &cert, nil
}

// Update applies the supplied fields and replaces the supplied attachments.
// Company and assigned users are revalidated only when one of them changes.
// Nothing is written unless every upload succeeds.
func (s *CertificateService) Update(ctx context.Context, id string, in UpdateCertificateInput) (*models.Certificate, error) {
	existing, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}

	patch := models.CertificatePatch{
		NumCert:   in.NumCert,
		Serial:    in.Serial,
		Result:    in.Result,
		CompanyID: in.CompanyID,
	}
	if in.UploadDate != nil {
		t := canonicalTime(*in.UploadDate)
		patch.UploadDate = &t
	}
	if in.AssignedUsernames != nil {
		patch.AssignedUsernames = normalizeUsernames(in.AssignedUsernames)
		if len(patch.AssignedUsernames) == 0 {
			return nil, apperr.Validation("assignedUsernames must not be empty")
		}
	}
	if in.CompanyID != nil && *in.CompanyID == "" {
		return nil, apperr.Validation("companyId must not be empty")
	}

	effective := patch.Apply(*existing)
	if in.CompanyID != nil || in.AssignedUsernames != nil {
		if err := s.validateAssignment(ctx, effective.CompanyID, effective.AssignedUsernames); err != nil {
			return nil, err
		}
	}

	if hasFiles(in.Files) {
		links, err := s.uploadAttachments(ctx, effective, in.Files, in.Folders, existing.Links.WithDefaults())
		if err != nil {
			return nil, err
		}
		patch.Links = &links
	}

	if !patch.IsEmpty() {
		err := s.certs.UpdateCertificate(ctx, id, patch)
		if errors.Is(err, models.ErrRecordNotFound) {
			return nil, apperr.NotFound("certificate does not exist")
		}
		if err != nil {
			s.log.Error("failed to update certificate", zap.String("id", id), zap.Error(err))
			return nil, apperr.Internal("could not update certificate", err)
		}
	}

	return s.get(ctx, id)
}

// DeleteBulk removes the certificates matching the given keys.
func (s *CertificateService) DeleteBulk(ctx context.Context, keys []models.CertificateKey) (int64, error) {
	if len(keys) == 0 {
		return 0, apperr.Validation("empty list")
	}

	n, err := s.certs.DeleteCertificates(ctx, keys)
	if err != nil {
		s.log.Error("failed to delete certificates", zap.Int("keys", len(keys)), zap.Error(err))
		return 0, apperr.Internal("could not delete certificates", err)
	}
	s.log.Info("certificates deleted", zap.Int("requested", len(keys)), zap.Int64("deleted", n))
	return n, nil
}

func (s *CertificateService) get(ctx context.Context, id string) (*models.Certificate, error) {
	cert, err := s.certs.GetCertificate(ctx, id)
	switch {
	case errors.Is(err, models.ErrInvalidID):
		return nil, apperr.Validation("invalid certificate id")
	case errors.Is(err, models.ErrRecordNotFound):
		return nil, apperr.NotFound("certificate does not exist")
	case err != nil:
		return nil, apperr.Internal("could not load certificate", err)
	}
	c := normalize(*cert)
	return &c, nil
}

// validateAssignment checks that every username exists and belongs to
// companyID. usernames must already be de-duplicated.
func (s *CertificateService) validateAssignment(ctx context.Context, companyID string, usernames []string) error {
	users, err := s.users.FindUsers(ctx, usernames)
	if err != nil {
		return apperr.Internal("could not load assigned users", err)
	}
	if len(users) != len(usernames) {
		return apperr.Validation("assigned users must exist and belong to the selected company")
	}
	for _, u := range users {
		if u.CompanyID != companyID {
			return apperr.Validation("assigned users must exist and belong to the selected company")
		}
	}
	return nil
}

// uploadAttachments uploads the supplied files in category order and returns
// links with each uploaded category replaced.
func (s *CertificateService) uploadAttachments(
	ctx context.Context,
	cert models.Certificate,
	files map[models.Category]*models.Attachment,
	overrides models.FolderRouting,
	links models.Links,
) (models.Links, error) {
	if !hasFiles(files) {
		return links, nil
	}

	stored, err := s.storedRouting(ctx)
	if err != nil {
		return links, err
	}

	stamp := s.now().UnixMilli()
	users := strings.Join(cert.AssignedUsernames, ",")
	num := strconv.Itoa(cert.NumCert)
	tags := map[string]string{"Users": users, "NumCert": num, "Serial": cert.Serial}
	description := fmt.Sprintf("Users: %s | NumCert: %s | Serial: %s", users, num, cert.Serial)

	for _, category := range models.Categories {
		att := files[category]
		if att == nil {
			continue
		}
		req := models.UploadRequest{
			Content:     att.Content,
			FileName:    FileName(cert.CompanyID, cert.NumCert, cert.Serial, stamp, att.OriginalName),
			MimeType:    cmp.Or(att.MimeType, defaultMimeType),
			Description: description,
			Tags:        tags,
			FolderID:    s.resolveFolder(category, overrides, stored),
		}
		up, err := s.uploader.Upload(ctx, req)
		if err != nil {
			s.log.Error("failed to upload attachment",
				zap.String("category", string(category)),
				zap.String("file_name", req.FileName),
				zap.Error(err),
			)
			return links, apperr.Upload("error uploading files to Google Drive", err)
		}
		links.Set(category, cmp.Or(up.ViewURL, links.Get(category), models.LinkPlaceholder))
	}
	return links, nil
}

func (s *CertificateService) storedRouting(ctx context.Context) (models.FolderRouting, error) {
	stored, err := s.folders.GetFolderRouting(ctx)
	if errors.Is(err, models.ErrRecordNotFound) {
		return models.FolderRouting{}, nil
	}
	if err != nil {
		return models.FolderRouting{}, apperr.Internal("could not load folder routing", err)
	}
	return stored.Value, nil
}

// resolveFolder picks the destination by priority: request override, stored
// routing, category default, parent folder.
func (s *CertificateService) resolveFolder(c models.Category, overrides, stored models.FolderRouting) string {
	return cmp.Or(overrides.Get(c), stored.Get(c), s.defaults.Routing.Get(c), s.defaults.ParentFolderID)
}

// FileName builds the provider file name of an attachment. The millisecond
// stamp keeps replacements of the same certificate apart.
func FileName(companyID string, numCert int, serial string, stampMillis int64, originalName string) string {
	ext := filepath.Ext(originalName)
	if ext == "" {
		ext = ".pdf"
	}
	return fmt.Sprintf("%s_%d_%s_%d%s", companyID, numCert, serial, stampMillis, ext)
}

func hasFiles(files map[models.Category]*models.Attachment) bool {
	for _, f := range files {
		if f != nil {
			return true
		}
	}
	return false
}

// normalizeUsernames trims, drops empty entries and removes duplicates,
// keeping the first occurrence order.
func normalizeUsernames(in []string) []string {
	out := make([]string, 0, len(in))
	seen := make(map[string]struct{}, len(in))
	for _, u := range in {
		u = strings.TrimSpace(u)
		if u == "" {
			continue
		}
		if _, ok := seen[u]; ok {
			continue
		}
		seen[u] = struct{}{}
		out = append(out, u)
	}
	return out
}

func canonicalTime(t time.Time) time.Time {
	return t.UTC().Truncate(time.Millisecond)
}

func normalize(c models.Certificate) models.Certificate {
	c.UploadDate = canonicalTime(c.UploadDate)
	c.Links = c.Links.WithDefaults()
	if c.AssignedUsernames == nil {
		c.AssignedUsernames = []string{}
	}
	return c
}
