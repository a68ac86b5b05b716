package recommend

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/vietddude/buildforge/internal/core/domain"
)

// BuildsField is the dataset field holding community builds.
const BuildsField = "builds"

// CandidateSource proposes builds to evaluate for a dataset. How candidates
// are chosen or ranked is up to the implementation.
type CandidateSource interface {
	Candidates(ctx context.Context, ds *domain.Dataset) ([]domain.BuildConfig, error)
}

// CandidateFunc adapts a function to CandidateSource.
type CandidateFunc func(ctx context.Context, ds *domain.Dataset) ([]domain.BuildConfig, error)

func (f CandidateFunc) Candidates(ctx context.Context, ds *domain.Dataset) ([]domain.BuildConfig, error) {
	return f(ctx, ds)
}

// DatasetCandidates reads the builds list of the merged dataset.
type DatasetCandidates struct{}

func (DatasetCandidates) Candidates(_ context.Context, ds *domain.Dataset) ([]domain.BuildConfig, error) {
	raw, ok := ds.Data[BuildsField]
	if !ok {
		return nil, nil
	}
	// Payload values are decoded JSON; round-trip them into typed configs.
	data, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", BuildsField, err)
	}
	var builds []domain.BuildConfig
	if err := json.Unmarshal(data, &builds); err != nil {
		return nil, fmt.Errorf("decode %s: %w", BuildsField, err)
	}
	return builds, nil
}
