package stage

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path"

	"github.com/nao1215/siteaudit/internal/config"
)

// Stage names.
const (
	WebsiteMap       = "website_map.json"
	Captions         = "captions.json"
	MissionStatement = "mission_statement.json"
	WebsiteAudit     = "website_audit.json"
	ImagesAudit      = "images_audit.json"
	OutputReports    = "output_reports.json"
)

var (
	// ErrNotFound is returned by Load when no snapshot exists for a name.
	ErrNotFound = errors.New("stage snapshot not found")

	// ErrInvalidName is returned for names that would escape the store.
	ErrInvalidName = errors.New("invalid stage name")

	// ErrCorrupt is returned when a snapshot exists but cannot be decoded.
	ErrCorrupt = errors.New("stage snapshot is corrupt")
)

// Store persists stage artifacts for one organization.
type Store interface {
	// Exists reports whether a snapshot is stored under name.
	Exists(ctx context.Context, name string) (bool, error)

	// Load returns the snapshot stored under name or ErrNotFound.
	Load(ctx context.Context, name string) ([]byte, error)

	// Save stores data under name, replacing any previous snapshot.
	Save(ctx context.Context, name string, data []byte) error

	// Location describes where name is stored, for logs and reports.
	Location(name string) string
}

// ReportName returns the stage name of one stakeholder's report documents.
func ReportName(stakeholder string) string {
	return path.Join("reports", stakeholder+"_report.json")
}

// MarkdownReportName returns the name of one stakeholder's rendered report.
func MarkdownReportName(stakeholder string) string {
	return path.Join("reports_md", stakeholder+"_report.md")
}

// validName rejects empty, absolute and parent-relative names.
func validName(name string) error {
	if name == "" || path.IsAbs(name) {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	clean := path.Clean(name)
	if clean != name || clean == ".." || len(clean) >= 3 && clean[:3] == "../" {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return nil
}

// Encode marshals v the way every snapshot is written: UTF-8 JSON indented
// by four spaces with HTML characters left unescaped.
func Encode(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "    ")
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Open returns the store configured for organization: the S3 bucket when
// one is set, otherwise a directory under cfg.OutputDir.
func Open(cfg *config.Config, organization string) (Store, error) {
	if cfg.S3.Enabled() {
		return NewS3Store(cfg.S3, organization)
	}
	return NewDirStore(cfg.OutputDir, organization)
}
