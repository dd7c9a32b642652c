// Package models defines the core data structures for users, certificates
// and the Drive folder routing configuration.
package models

import (
	"errors"
	"time"
)

var (
	// ErrRecordNotFound is returned by stores when no document matches.
	ErrRecordNotFound = errors.New("record not found")
	// ErrInvalidID is returned by stores when an id cannot be parsed
	// into the store's identity format.
	ErrInvalidID = errors.New("invalid id")
)

// Role is the access level of a user.
type Role string

const (
	// RoleAdmin may edit certificates, passwords and folder routing.
	RoleAdmin Role = "ADMIN"
	// RoleUser only sees certificates of its own company.
	RoleUser Role = "USER"
)

// User represents an application user with credentials.
type User struct {
	// Username is the unique login name.
	Username string `json:"username"`
	// Password is either a bcrypt digest or, for accounts that were never
	// migrated, the plain text secret.
	Password string `json:"-"`
	// Role is ADMIN or USER.
	Role Role `json:"role"`
	// CompanyID is the company the user belongs to.
	CompanyID string `json:"companyId"`
	// UpdatedAt is set whenever the password changes.
	UpdatedAt *time.Time `json:"updatedAt,omitempty"`
}

// Claims is what a successful login returns to the client.
type Claims struct {
	Username  string `json:"username"`
	Role      Role   `json:"role"`
	CompanyID string `json:"companyId"`
}

// Inspection results.
const (
	ResultCompliant    = "COMPLIANT"
	ResultNonCompliant = "NON_COMPLIANT"
)

// Certificate is a tracked inspection certificate and its attachments.
type Certificate struct {
	// ID is the store-assigned identity, always exposed as a string.
	ID string `json:"id"`
	// NumCert is unique within CompanyID.
	NumCert int `json:"numCert"`
	// Serial is the serial number of the certified equipment.
	Serial string `json:"serial"`
	// UploadDate is when the certificate was registered.
	UploadDate time.Time `json:"uploadDate"`
	// Result is COMPLIANT or NON_COMPLIANT.
	Result string `json:"result"`
	// CompanyID owns the certificate.
	CompanyID string `json:"companyId"`
	// AssignedUsernames are the users of CompanyID allowed to see it.
	AssignedUsernames []string `json:"assignedUsernames"`
	// Links point at the uploaded attachments.
	Links Links `json:"links"`
}

// CertificateKey identifies certificates for bulk deletion.
type CertificateKey struct {
	CompanyID string `json:"companyId"`
	NumCert   int    `json:"numCert"`
	Serial    string `json:"serial"`
}

// CertificatePatch carries the fields of a partial update. Nil fields are
// left untouched.
type CertificatePatch struct {
	NumCert           *int
	Serial            *string
	UploadDate        *time.Time
	Result            *string
	CompanyID         *string
	AssignedUsernames []string
	Links             *Links
}

// IsEmpty reports whether the patch changes nothing.
func (p CertificatePatch) IsEmpty() bool {
	return p.NumCert == nil && p.Serial == nil && p.UploadDate == nil && p.Result == nil &&
		p.CompanyID == nil && p.AssignedUsernames == nil && p.Links == nil
}

// Apply returns a copy of c with the patch applied.
func (p CertificatePatch) Apply(c Certificate) Certificate {
	if p.NumCert != nil {
		c.NumCert = *p.NumCert
	}
	if p.Serial != nil {
		c.Serial = *p.Serial
	}
	if p.UploadDate != nil {
		c.UploadDate = *p.UploadDate
	}
	if p.Result != nil {
		c.Result = *p.Result
	}
	if p.CompanyID != nil {
		c.CompanyID = *p.CompanyID
	}
	if p.AssignedUsernames != nil {
		c.AssignedUsernames = append([]string(nil), p.AssignedUsernames...)
	}
	if p.Links != nil {
		c.Links = *p.Links
	}
	return c
}
