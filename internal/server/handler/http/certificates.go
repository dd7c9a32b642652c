package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/atinyakov/CertTrack/internal/apperr"
	"github.com/atinyakov/CertTrack/internal/models"
	"github.com/atinyakov/CertTrack/internal/service"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// DefaultMaxUploadBytes bounds a certificate request when the handler is not
// configured.
const DefaultMaxUploadBytes = 32 << 20

// uploadDateLayout renders uploadDate as UTC ISO-8601 with milliseconds.
const uploadDateLayout = "2006-01-02T15:04:05.000Z07:00"

// CertificateService defines the certificate operations required by the
// CertificateHandler.
type CertificateService interface {
	List(ctx context.Context) ([]models.Certificate, error)
	Create(ctx context.Context, in service.CreateCertificateInput) (*models.Certificate, error)
	Update(ctx context.Context, id string, in service.UpdateCertificateInput) (*models.Certificate, error)
	DeleteBulk(ctx context.Context, keys []models.CertificateKey) (int64, error)
}

// CertificateHandler serves the certificate endpoints.
type CertificateHandler struct {
	CertificateService CertificateService
	Log                *zap.Logger
	// MaxUploadBytes limits the multipart body kept in memory; larger files
	// spill to temporary files.
	MaxUploadBytes int64
}

// CertificateView is the JSON shape of a certificate.
type CertificateView struct {
	ID                string       `json:"id"`
	NumCert           int          `json:"numCert"`
	Serial            string       `json:"serial"`
	UploadDate        string       `json:"uploadDate"`
	Result            string       `json:"result"`
	CompanyID         string       `json:"companyId"`
	AssignedUsernames []string     `json:"assignedUsernames"`
	Links             models.Links `json:"links"`
}

// NewCertificateView formats c for the API.
func NewCertificateView(c models.Certificate) CertificateView {
	users := c.AssignedUsernames
	if users == nil {
		users = []string{}
	}
	return CertificateView{
		ID:                c.ID,
		NumCert:           c.NumCert,
		Serial:            c.Serial,
		UploadDate:        c.UploadDate.UTC().Format(uploadDateLayout),
		Result:            c.Result,
		CompanyID:         c.CompanyID,
		AssignedUsernames: users,
		Links:             c.Links.WithDefaults(),
	}
}

// List handles GET /api/certificates.
func (h *CertificateHandler) List(w http.ResponseWriter, r *http.Request) {
	certs, err := h.CertificateService.List(r.Context())
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	views := make([]CertificateView, 0, len(certs))
	for _, c := range certs {
		views = append(views, NewCertificateView(c))
	}
	writeJSON(w, http.StatusOK, views)
}

// Create handles POST /api/certificates. The body is a multipart form with
// optional report, format and certificate files; a JSON body without files
// is accepted too.
func (h *CertificateHandler) Create(w http.ResponseWriter, r *http.Request) {
	form, err := h.readForm(w, r)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	defer form.close()

	in := service.CreateCertificateInput{
		Serial:            form.get("serial"),
		CompanyID:         form.get("companyId"),
		AssignedUsernames: form.usernames(),
		Result:            form.get("result"),
		Folders:           form.folders(),
		Files:             form.files,
	}
	if v := form.get("numCert"); v != "" {
		n, err := parseNumCert(v)
		if err != nil {
			writeError(w, r, h.Log, err)
			return
		}
		in.NumCert = &n
	}
	if v := form.get("uploadDate"); v != "" {
		t, err := parseUploadDate(v)
		if err != nil {
			writeError(w, r, h.Log, err)
			return
		}
		in.UploadDate = &t
	}

	cert, err := h.CertificateService.Create(r.Context(), in)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, NewCertificateView(*cert))
}

// Update handles PUT /api/certificates/{id}. Only non-empty fields and
// supplied files are changed.
func (h *CertificateHandler) Update(w http.ResponseWriter, r *http.Request) {
	form, err := h.readForm(w, r)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	defer form.close()

	in := service.UpdateCertificateInput{
		Serial:    form.optional("serial"),
		Result:    form.optional("result"),
		CompanyID: form.optional("companyId"),
		Folders:   form.folders(),
		Files:     form.files,
	}
	if users := form.usernames(); len(users) > 0 {
		in.AssignedUsernames = users
	}
	if v := form.get("numCert"); v != "" {
		n, err := parseNumCert(v)
		if err != nil {
			writeError(w, r, h.Log, err)
			return
		}
		in.NumCert = &n
	}
	if v := form.get("uploadDate"); v != "" {
		t, err := parseUploadDate(v)
		if err != nil {
			writeError(w, r, h.Log, err)
			return
		}
		in.UploadDate = &t
	}

	cert, err := h.CertificateService.Update(r.Context(), chi.URLParam(r, "id"), in)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, NewCertificateView(*cert))
}

// DeleteBulk handles DELETE /api/certificates/bulk. The body is either
// {"items": [...]} or a bare array of {companyId, numCert, serial}.
func (h *CertificateHandler) DeleteBulk(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid request")
		return
	}
	keys, err := decodeKeys(body)
	if err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid request")
		return
	}

	n, err := h.CertificateService.DeleteBulk(r.Context(), keys)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, okResponse{OK: true, Deleted: &n})
}

func decodeKeys(body []byte) ([]models.CertificateKey, error) {
	trimmed := strings.TrimSpace(string(body))
	if trimmed == "" {
		return nil, nil
	}
	var keys []models.CertificateKey
	if strings.HasPrefix(trimmed, "[") {
		err := json.Unmarshal(body, &keys)
		return keys, err
	}
	var wrapped struct {
		Items []models.CertificateKey `json:"items"`
	}
	err := json.Unmarshal(body, &wrapped)
	return wrapped.Items, err
}

// certificateForm is the decoded body of a create or update request.
type certificateForm struct {
	values    map[string][]string
	files     map[models.Category]*models.Attachment
	multipart *multipart.Form
	open      []multipart.File
}

func (h *CertificateHandler) readForm(w http.ResponseWriter, r *http.Request) (*certificateForm, error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "application/json" {
		return readJSONForm(r.Body)
	}

	limit := h.MaxUploadBytes
	if limit <= 0 {
		limit = DefaultMaxUploadBytes
	}
	r.Body = http.MaxBytesReader(w, r.Body, limit)

	err := r.ParseMultipartForm(limit)
	if errors.Is(err, http.ErrNotMultipart) {
		if err := r.ParseForm(); err != nil {
			return nil, apperr.Validation("invalid form")
		}
		return &certificateForm{values: r.PostForm}, nil
	}
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, apperr.Validation("request too large")
		}
		return nil, apperr.Validation("invalid form")
	}

	form := &certificateForm{
		values:    r.MultipartForm.Value,
		files:     make(map[models.Category]*models.Attachment),
		multipart: r.MultipartForm,
	}
	for _, c := range models.Categories {
		headers := r.MultipartForm.File[string(c)]
		if len(headers) == 0 {
			continue
		}
		fh := headers[0]
		f, err := fh.Open()
		if err != nil {
			form.close()
			return nil, apperr.Internal("could not read uploaded file", err)
		}
		form.open = append(form.open, f)
		form.files[c] = &models.Attachment{
			Content:      f,
			OriginalName: fh.Filename,
			MimeType:     fh.Header.Get("Content-Type"),
		}
	}
	return form, nil
}

func readJSONForm(body io.Reader) (*certificateForm, error) {
	var raw map[string]any
	if err := json.NewDecoder(body).Decode(&raw); err != nil {
		return nil, apperr.Validation("invalid request")
	}
	values := make(map[string][]string, len(raw))
	for k, v := range raw {
		switch v := v.(type) {
		case []any:
			for _, item := range v {
				values[k] = append(values[k], jsonScalar(item))
			}
		case nil:
		default:
			values[k] = []string{jsonScalar(v)}
		}
	}
	return &certificateForm{values: values}, nil
}

func jsonScalar(v any) string {
	switch v := v.(type) {
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return fmt.Sprint(v)
	}
}

func (f *certificateForm) get(key string) string {
	if vs := f.values[key]; len(vs) > 0 {
		return strings.TrimSpace(vs[0])
	}
	return ""
}

// optional returns nil for absent or empty fields.
func (f *certificateForm) optional(key string) *string {
	if v := f.get(key); v != "" {
		return &v
	}
	return nil
}

// usernames accepts repeated fields and comma separated lists.
func (f *certificateForm) usernames() []string {
	var out []string
	for _, key := range []string{"assignedUsernames", "assignedUsernames[]"} {
		for _, v := range f.values[key] {
			for _, part := range strings.Split(v, ",") {
				if part = strings.TrimSpace(part); part != "" {
					out = append(out, part)
				}
			}
		}
	}
	return out
}

func (f *certificateForm) folders() models.FolderRouting {
	return models.FolderRouting{
		Report:      f.get("reportFolder"),
		Format:      f.get("formatFolder"),
		Certificate: f.get("certificateFolder"),
	}
}

func (f *certificateForm) close() {
	for _, file := range f.open {
		_ = file.Close()
	}
	if f.multipart != nil {
		_ = f.multipart.RemoveAll()
	}
}

func parseNumCert(v string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return 0, apperr.Validation("numCert must be an integer")
	}
	return n, nil
}

func parseUploadDate(v string) (time.Time, error) {
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, v); err == nil {
			return t, nil
		}
	}
	return time.Time{}, apperr.Validation("uploadDate must be an ISO-8601 date")
}
