package catalog

import (
	"strings"

	"github.com/matzehuels/curator/pkg/errors"
)

// Placeholders used when the registry omits a field.
const (
	NotAvailable  = "N/A"
	UnknownAuthor = "Unknown"
	NoDescription = "No description"
)

// Status is the curation state of a record.
type Status string

const (
	StatusPending  Status = "pending"
	StatusAccepted Status = "accepted"
	StatusRejected Status = "rejected"
)

// ParseStatus converts s to a Status, case-insensitively.
func ParseStatus(s string) (Status, error) {
	switch st := Status(strings.ToLower(strings.TrimSpace(s))); st {
	case StatusPending, StatusAccepted, StatusRejected:
		return st, nil
	default:
		return "", errors.New(errors.ErrCodeInvalidStatus, "unknown status %q", s)
	}
}

// Terminal reports whether no further transition is allowed from s.
func (s Status) Terminal() bool {
	return s == StatusAccepted || s == StatusRejected
}

func (s Status) String() string { return string(s) }

// Record is the displayable metadata of one package at one concrete version.
//
// Records are values. Everything except Status is fixed when the record is
// built; holders copy on write and hand out copies on read.
type Record struct {
	Name          string `json:"name"`
	Version       string `json:"version"`
	RepositoryURL string `json:"repository_url"`
	TarballURL    string `json:"tarball_url"`
	Licence       string `json:"licence"`
	Author        string `json:"author"`
	Description   string `json:"description"`
	Status        Status `json:"status"`
}

// NewRecord builds a pending record, substituting placeholders for empty
// optional fields.
func NewRecord(name, version, repo, tarball, licence, author, description string) Record {
	return Record{
		Name:          name,
		Version:       version,
		RepositoryURL: orDefault(repo, NotAvailable),
		TarballURL:    orDefault(tarball, NotAvailable),
		Licence:       orDefault(licence, NotAvailable),
		Author:        orDefault(author, UnknownAuthor),
		Description:   orDefault(description, NoDescription),
		Status:        StatusPending,
	}
}

func orDefault(s, def string) string {
	if s = strings.TrimSpace(s); s == "" {
		return def
	}
	return s
}

// Entry is one dependency declared in a manifest.
type Entry struct {
	Name        string `json:"name"`
	VersionSpec string `json:"version_spec"`
}

// VersionHint is the version to request for e: VersionSpec with a single
// leading caret removed. Other range operators pass through unchanged.
func (e Entry) VersionHint() string {
	return strings.TrimPrefix(e.VersionSpec, "^")
}
