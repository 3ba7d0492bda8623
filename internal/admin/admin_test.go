package admin

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vanguard-platform/internal/apperr"
	"vanguard-platform/internal/models"
	"vanguard-platform/internal/objects"
	"vanguard-platform/internal/repository"
	"vanguard-platform/internal/testutil"
)

// emptyStore starts with no reports.
type emptyStore struct {
	created []models.AnalyticalReport
}

func (s *emptyStore) ListReports(context.Context) ([]models.AnalyticalReport, error) {
	return s.created, nil
}

func (s *emptyStore) CreateReport(_ context.Context, r models.AnalyticalReport) (*models.AnalyticalReport, error) {
	r.ID = int64(len(s.created) + 1)
	s.created = append(s.created, r)
	return &r, nil
}

func (s *emptyStore) UpdateReportFileURL(context.Context, int64, string) error {
	return nil
}

func TestSeedReports(t *testing.T) {
	ctx := context.Background()
	store := &emptyStore{}

	n, err := SeedReports(ctx, store)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	n, err = SeedReports(ctx, store)
	require.NoError(t, err)
	assert.Zero(t, n, "seeding a non-empty catalogue is a no-op")
	assert.Len(t, store.created, 3)
}

func TestLoadMapping(t *testing.T) {
	m, err := LoadMapping(strings.NewReader("Layer 2ソリューション投資ガイド: layer2.pdf\n\"DeFi\": defi.pdf\n"))
	require.NoError(t, err)
	assert.Equal(t, Mapping{"Layer 2ソリューション投資ガイド": "layer2.pdf", "DeFi": "defi.pdf"}, m)

	m, err = LoadMapping(strings.NewReader(""))
	require.NoError(t, err)
	assert.Empty(t, m)

	_, err = LoadMapping(strings.NewReader("- not\n- a map\n"))
	assert.True(t, errors.Is(err, apperr.ErrValidation))
}

func TestUpdateFileURLs(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewMemoryRepository()

	res, err := UpdateFileURLs(ctx, repo, Mapping{"Layer 2ソリューション投資ガイド": "layer2.pdf"})
	require.NoError(t, err)
	assert.Equal(t, []string{"Layer 2ソリューション投資ガイド"}, res.Updated)
	assert.Len(t, res.Unmapped, 2)

	rep, err := repo.GetReport(ctx, 3)
	require.NoError(t, err)
	assert.Equal(t, objects.ReportPDFURL("layer2.pdf"), rep.FileURL)

	untouched, err := repo.GetReport(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "reports/btc-q1-2024.pdf", untouched.FileURL)
}

func TestUpload(t *testing.T) {
	ctx := context.Background()
	store := testutil.NewMockObjectStore()

	require.NoError(t, Upload(ctx, store, "reports/a.pdf", []byte("v1"), false))
	assert.Equal(t, []byte("v1"), store.Objects["reports/a.pdf"])

	err := Upload(ctx, store, "reports/a.pdf", []byte("v2"), false)
	assert.True(t, errors.Is(err, apperr.ErrConflict))
	assert.Equal(t, []byte("v1"), store.Objects["reports/a.pdf"])

	require.NoError(t, Upload(ctx, store, "reports/a.pdf", []byte("v2"), true))
	assert.Equal(t, []byte("v2"), store.Objects["reports/a.pdf"])

	assert.Error(t, Upload(ctx, nil, "k", nil, false))
}
