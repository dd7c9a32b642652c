// Package repository provides the record store implementations: MongoDB,
// PostgreSQL and an in-memory store for tests and local runs.
package repository

import (
	"errors"
)

const (
	usersCollection        = "users"
	certificatesCollection = "certificates"
	configCollection       = "config"

	// folderRoutingKey identifies the folder routing singleton.
	folderRoutingKey = "driveFolders"
)

// ErrDuplicateCertificate is returned by the in-memory store when a
// (companyId, numCert) pair is already taken. The persistent stores surface
// their own unique-index errors.
var ErrDuplicateCertificate = errors.New("duplicate certificate for company")
