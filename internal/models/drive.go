package models

import (
	"io"
	"time"
)

// LinkPlaceholder marks an attachment category that has no uploaded file.
const LinkPlaceholder = "#"

// FolderMimeType is the Drive mime type of a folder.
const FolderMimeType = "application/vnd.google-apps.folder"

// Category is one of the three attachment kinds of a certificate.
type Category string

const (
	// CategoryReport is the inspection report.
	CategoryReport Category = "report"
	// CategoryFormat is the filled inspection format.
	CategoryFormat Category = "format"
	// CategoryCertificate is the signed certificate itself.
	CategoryCertificate Category = "certificate"
)

// Categories lists the attachment categories in upload order.
var Categories = []Category{CategoryReport, CategoryFormat, CategoryCertificate}

// Links holds the shareable URL of each attachment category.
type Links struct {
	ReportURL      string `json:"reportUrl"`
	FormatURL      string `json:"formatUrl"`
	CertificateURL string `json:"certificateUrl"`
}

// DefaultLinks returns links with every category set to the placeholder.
func DefaultLinks() Links {
	return Links{ReportURL: LinkPlaceholder, FormatURL: LinkPlaceholder, CertificateURL: LinkPlaceholder}
}

// Get returns the link of the given category.
func (l Links) Get(c Category) string {
	switch c {
	case CategoryReport:
		return l.ReportURL
	case CategoryFormat:
		return l.FormatURL
	case CategoryCertificate:
		return l.CertificateURL
	}
	return ""
}

// Set replaces the link of the given category.
func (l *Links) Set(c Category, url string) {
	switch c {
	case CategoryReport:
		l.ReportURL = url
	case CategoryFormat:
		l.FormatURL = url
	case CategoryCertificate:
		l.CertificateURL = url
	}
}

// WithDefaults fills empty links with the placeholder.
func (l Links) WithDefaults() Links {
	for _, c := range Categories {
		if l.Get(c) == "" {
			l.Set(c, LinkPlaceholder)
		}
	}
	return l
}

// FolderRouting maps each attachment category to a Drive folder id.
type FolderRouting struct {
	Report      string `json:"report"`
	Format      string `json:"format"`
	Certificate string `json:"certificate"`
}

// Get returns the folder id of the given category.
func (f FolderRouting) Get(c Category) string {
	switch c {
	case CategoryReport:
		return f.Report
	case CategoryFormat:
		return f.Format
	case CategoryCertificate:
		return f.Certificate
	}
	return ""
}

// Set replaces the folder id of the given category.
func (f *FolderRouting) Set(c Category, id string) {
	switch c {
	case CategoryReport:
		f.Report = id
	case CategoryFormat:
		f.Format = id
	case CategoryCertificate:
		f.Certificate = id
	}
}

// FolderRoutingUpdate is a partial FolderRouting; nil fields keep their
// current value.
type FolderRoutingUpdate struct {
	Report      *string `json:"report"`
	Format      *string `json:"format"`
	Certificate *string `json:"certificate"`
}

// Get returns the supplied value for the category, if any.
func (u FolderRoutingUpdate) Get(c Category) *string {
	switch c {
	case CategoryReport:
		return u.Report
	case CategoryFormat:
		return u.Format
	case CategoryCertificate:
		return u.Certificate
	}
	return nil
}

// StoredFolderRouting is the persisted singleton with its modification time.
type StoredFolderRouting struct {
	Value     FolderRouting
	UpdatedAt time.Time
}

// Attachment is a file received with a certificate request.
type Attachment struct {
	// Content is rewound before every upload attempt.
	Content      io.ReadSeeker
	OriginalName string
	MimeType     string
}

// UploadRequest describes a file to put on Drive.
type UploadRequest struct {
	Content     io.ReadSeeker
	FileName    string
	MimeType    string
	Description string
	Tags        map[string]string
	FolderID    string
}

// UploadedFile is the result of a successful upload.
type UploadedFile struct {
	ID          string `json:"id"`
	ViewURL     string `json:"viewUrl"`
	DownloadURL string `json:"downloadUrl"`
}

// FileInfo is the Drive metadata returned by the file info endpoint.
type FileInfo struct {
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	MimeType string   `json:"mimeType"`
	Parents  []string `json:"parents,omitempty"`
	DriveID  string   `json:"driveId,omitempty"`
}

// IsFolder reports whether the file is a Drive folder.
func (f FileInfo) IsFolder() bool {
	return f.MimeType == FolderMimeType
}
