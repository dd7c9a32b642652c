package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/atinyakov/CertTrack/internal/models"
	"github.com/google/uuid"
	"github.com/lib/pq"
)

const certificateColumns = `id, num_cert, serial, upload_date, result, company_id, assigned_usernames, report_url, format_url, certificate_url`

// ListCertificates returns every certificate ordered by numCert.
func (s *PostgresStore) ListCertificates(ctx context.Context) ([]models.Certificate, error) {
	rows, err := s.DB.QueryContext(ctx,
		`SELECT `+certificateColumns+` FROM certificates ORDER BY num_cert ASC`)
	if err != nil {
		return nil, fmt.Errorf("ListCertificates: %w", err)
	}
	defer rows.Close()

	var certs []models.Certificate
	for rows.Next() {
		c, err := scanCertificate(rows)
		if err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		certs = append(certs, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	return certs, nil
}

// GetCertificate returns the certificate with the given id.
func (s *PostgresStore) GetCertificate(ctx context.Context, id string) (*models.Certificate, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, models.ErrInvalidID
	}
	row := s.DB.QueryRowContext(ctx, `SELECT `+certificateColumns+` FROM certificates WHERE id = $1`, id)
	c, err := scanCertificate(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrRecordNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("GetCertificate: %w", err)
	}
	return c, nil
}

// InsertCertificate stores cert under a new id. The unique
// (company_id, num_cert) constraint rejects duplicates.
func (s *PostgresStore) InsertCertificate(ctx context.Context, cert models.Certificate) (string, error) {
	id := uuid.NewString()
	_, err := s.DB.ExecContext(ctx, `
		INSERT INTO certificates (`+certificateColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, id, cert.NumCert, cert.Serial, cert.UploadDate, cert.Result, cert.CompanyID,
		pq.Array(nonNil(cert.AssignedUsernames)),
		cert.Links.ReportURL, cert.Links.FormatURL, cert.Links.CertificateURL)
	if err != nil {
		return "", fmt.Errorf("InsertCertificate: %w", err)
	}
	return id, nil
}

// UpsertCertificate inserts cert or replaces the one with the same
// (companyId, numCert).
func (s *PostgresStore) UpsertCertificate(ctx context.Context, cert models.Certificate) error {
	_, err := s.DB.ExecContext(ctx, `
		INSERT INTO certificates (`+certificateColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (company_id, num_cert) DO UPDATE SET
			serial = EXCLUDED.serial,
			upload_date = EXCLUDED.upload_date,
			result = EXCLUDED.result,
			assigned_usernames = EXCLUDED.assigned_usernames,
			report_url = EXCLUDED.report_url,
			format_url = EXCLUDED.format_url,
			certificate_url = EXCLUDED.certificate_url
	`, uuid.NewString(), cert.NumCert, cert.Serial, cert.UploadDate, cert.Result, cert.CompanyID,
		pq.Array(nonNil(cert.AssignedUsernames)),
		cert.Links.ReportURL, cert.Links.FormatURL, cert.Links.CertificateURL)
	if err != nil {
		return fmt.Errorf("UpsertCertificate: %w", err)
	}
	return nil
}

// UpdateCertificate applies patch to the certificate with the given id.
func (s *PostgresStore) UpdateCertificate(ctx context.Context, id string, patch models.CertificatePatch) error {
	if _, err := uuid.Parse(id); err != nil {
		return models.ErrInvalidID
	}
	query, args := updateQuery(id, patch)
	if query == "" {
		return nil
	}
	res, err := s.DB.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("UpdateCertificate: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("UpdateCertificate: %w", err)
	}
	if n == 0 {
		return models.ErrRecordNotFound
	}
	return nil
}

// DeleteCertificates removes every certificate matching one of keys.
func (s *PostgresStore) DeleteCertificates(ctx context.Context, keys []models.CertificateKey) (int64, error) {
	if len(keys) == 0 {
		return 0, nil
	}
	query, args := deleteQuery(keys)
	res, err := s.DB.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("DeleteCertificates: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("DeleteCertificates: %w", err)
	}
	return n, nil
}

// GetFolderRouting returns the stored routing.
func (s *PostgresStore) GetFolderRouting(ctx context.Context) (*models.StoredFolderRouting, error) {
	var r models.StoredFolderRouting
	err := s.DB.QueryRowContext(ctx,
		`SELECT report, format, certificate, updated_at FROM config WHERE key = $1`, folderRoutingKey,
	).Scan(&r.Value.Report, &r.Value.Format, &r.Value.Certificate, &r.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrRecordNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("GetFolderRouting: %w", err)
	}
	return &r, nil
}

// SaveFolderRouting upserts the routing singleton.
func (s *PostgresStore) SaveFolderRouting(ctx context.Context, routing models.FolderRouting, at time.Time) error {
	_, err := s.DB.ExecContext(ctx, `
		INSERT INTO config (key, report, format, certificate, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (key) DO UPDATE SET
			report = EXCLUDED.report,
			format = EXCLUDED.format,
			certificate = EXCLUDED.certificate,
			updated_at = EXCLUDED.updated_at
	`, folderRoutingKey, routing.Report, routing.Format, routing.Certificate, at)
	if err != nil {
		return fmt.Errorf("SaveFolderRouting: %w", err)
	}
	return nil
}

func scanCertificate(row rowScanner) (*models.Certificate, error) {
	var c models.Certificate
	err := row.Scan(&c.ID, &c.NumCert, &c.Serial, &c.UploadDate, &c.Result, &c.CompanyID,
		pq.Array(&c.AssignedUsernames),
		&c.Links.ReportURL, &c.Links.FormatURL, &c.Links.CertificateURL)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// updateQuery builds an UPDATE statement for the non-nil fields of patch.
// It returns an empty query when there is nothing to change.
func updateQuery(id string, p models.CertificatePatch) (string, []any) {
	var (
		sets []string
		args []any
	)
	add := func(col string, v any) {
		args = append(args, v)
		sets = append(sets, fmt.Sprintf("%s = $%d", col, len(args)))
	}
	if p.NumCert != nil {
		add("num_cert", *p.NumCert)
	}
	if p.Serial != nil {
		add("serial", *p.Serial)
	}
	if p.UploadDate != nil {
		add("upload_date", *p.UploadDate)
	}
	if p.Result != nil {
		add("result", *p.Result)
	}
	if p.CompanyID != nil {
		add("company_id", *p.CompanyID)
	}
	if p.AssignedUsernames != nil {
		add("assigned_usernames", pq.Array(p.AssignedUsernames))
	}
	if p.Links != nil {
		add("report_url", p.Links.ReportURL)
		add("format_url", p.Links.FormatURL)
		add("certificate_url", p.Links.CertificateURL)
	}
	if len(sets) == 0 {
		return "", nil
	}
	args = append(args, id)
	return fmt.Sprintf("UPDATE certificates SET %s WHERE id = $%d", strings.Join(sets, ", "), len(args)), args
}

func deleteQuery(keys []models.CertificateKey) (string, []any) {
	conds := make([]string, 0, len(keys))
	args := make([]any, 0, len(keys)*3)
	for _, k := range keys {
		n := len(args)
		conds = append(conds, fmt.Sprintf("(company_id = $%d AND num_cert = $%d AND serial = $%d)", n+1, n+2, n+3))
		args = append(args, k.CompanyID, k.NumCert, k.Serial)
	}
	return "DELETE FROM certificates WHERE " + strings.Join(conds, " OR "), args
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
