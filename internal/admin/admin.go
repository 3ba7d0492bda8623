// Package admin holds the operations behind the admin CLI: seeding the
// report catalogue, repointing report files and uploading PDFs.
package admin

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"

	"gopkg.in/yaml.v3"

	"vanguard-platform/internal/apperr"
	"vanguard-platform/internal/models"
	"vanguard-platform/internal/objects"
	"vanguard-platform/internal/repository"
)

type ReportStore interface {
	ListReports(ctx context.Context) ([]models.AnalyticalReport, error)
	CreateReport(ctx context.Context, r models.AnalyticalReport) (*models.AnalyticalReport, error)
	UpdateReportFileURL(ctx context.Context, id int64, fileURL string) error
}

// SeedReports inserts the sample catalogue when no reports exist and
// returns how many were inserted.
func SeedReports(ctx context.Context, store ReportStore) (int, error) {
	existing, err := store.ListReports(ctx)
	if err != nil {
		return 0, err
	}
	if len(existing) > 0 {
		return 0, nil
	}

	n := 0
	for _, rep := range repository.SampleReports() {
		if _, err := store.CreateReport(ctx, rep); err != nil {
			return n, fmt.Errorf("seed %q: %w", rep.Title, err)
		}
		n++
	}
	return n, nil
}

// Mapping maps a report title to the PDF file name in the report bucket.
type Mapping map[string]string

// LoadMapping reads a YAML document of title: filename pairs.
func LoadMapping(r io.Reader) (Mapping, error) {
	var m Mapping
	if err := yaml.NewDecoder(r).Decode(&m); err != nil {
		if errors.Is(err, io.EOF) {
			return Mapping{}, nil
		}
		return nil, apperr.Wrap(apperr.ErrValidation, err, "invalid mapping file")
	}
	return m, nil
}

// URLUpdate is the outcome of UpdateFileURLs.
type URLUpdate struct {
	Updated  []string
	Unmapped []string
}

// UpdateFileURLs points every mapped report at its object-storage URL.
// Reports without a mapping entry are left alone and listed in Unmapped.
func UpdateFileURLs(ctx context.Context, store ReportStore, m Mapping) (URLUpdate, error) {
	var res URLUpdate

	reports, err := store.ListReports(ctx)
	if err != nil {
		return res, err
	}
	for _, rep := range reports {
		name, ok := m[rep.Title]
		if !ok || name == "" {
			res.Unmapped = append(res.Unmapped, rep.Title)
			continue
		}
		if err := store.UpdateReportFileURL(ctx, rep.ID, objects.ReportPDFURL(name)); err != nil {
			return res, fmt.Errorf("update %q: %w", rep.Title, err)
		}
		res.Updated = append(res.Updated, rep.Title)
	}
	sort.Strings(res.Unmapped)
	return res, nil
}

// Upload stores a PDF under key. An existing object is only replaced when
// overwrite is set.
func Upload(ctx context.Context, store objects.Store, key string, body []byte, overwrite bool) error {
	if store == nil {
		return apperr.New(apperr.ErrValidation, "object storage not configured")
	}
	if !overwrite {
		exists, err := store.Exists(ctx, key)
		if err != nil {
			return err
		}
		if exists {
			return apperr.New(apperr.ErrConflict, fmt.Sprintf("object %q already exists", key))
		}
	}
	return store.Upload(ctx, key, body, "application/pdf")
}
