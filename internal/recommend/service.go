package recommend

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/vietddude/buildforge/internal/calc"
	"github.com/vietddude/buildforge/internal/core/domain"
	"github.com/vietddude/buildforge/internal/metrics"
)

// Fetcher aggregates source data. *aggregate.Orchestrator implements it.
type Fetcher interface {
	FetchAll(ctx context.Context, queries []domain.SourceQuery) (*domain.Dataset, error)
}

// Request asks for recommendations. Queries default to the service's
// configured set; Builds are evaluated in addition to dataset candidates.
type Request struct {
	Queries []domain.SourceQuery `json:"queries,omitempty"`
	Builds  []domain.BuildConfig `json:"builds,omitempty"`
	// Limit caps the number of recommendations; zero means no cap.
	Limit int `json:"limit,omitempty"`
}

// Option configures a Service.
type Option func(*Service)

// WithCandidates replaces the candidate source.
func WithCandidates(c CandidateSource) Option {
	return func(s *Service) { s.candidates = c }
}

// WithDefaultQueries sets the queries used when a request names none.
func WithDefaultQueries(q []domain.SourceQuery) Option {
	return func(s *Service) { s.defaults = q }
}

// WithServiceClock overrides the time source.
func WithServiceClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithServiceLogger sets the logger.
func WithServiceLogger(l *slog.Logger) Option {
	return func(s *Service) { s.log = l }
}

// Service drives a recommendation request end to end.
type Service struct {
	fetcher    Fetcher
	calc       *calc.Calculator
	candidates CandidateSource
	assembler  *Assembler
	defaults   []domain.SourceQuery
	now        func() time.Time
	log        *slog.Logger
}

// NewService creates a service. Candidates default to DatasetCandidates.
func NewService(fetcher Fetcher, calculator *calc.Calculator, opts ...Option) *Service {
	s := &Service{
		fetcher:    fetcher,
		calc:       calculator,
		candidates: DatasetCandidates{},
		now:        time.Now,
		log:        slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.assembler = NewAssembler(s.now)
	return s
}

// Calculator returns the base calculator.
func (s *Service) Calculator() *calc.Calculator {
	return s.calc
}

// Recommend fetches the dataset, evaluates candidate builds against it and
// assembles the response. Invalid caller builds fail the request before any
// source is contacted; source failures only degrade the status.
func (s *Service) Recommend(ctx context.Context, req Request) (*domain.RecommendationResponse, error) {
	start := s.now()
	requestID := uuid.NewString()
	log := s.log.With("request_id", requestID)

	queries := req.Queries
	if len(queries) == 0 {
		queries = s.defaults
	}
	if req.Limit < 0 {
		return nil, &domain.ValidationError{Field: "limit", Reason: "must not be negative"}
	}
	for i, b := range req.Builds {
		if err := calc.Validate(b); err != nil {
			return nil, prefixField(err, fmt.Sprintf("builds[%d]", i))
		}
	}

	ds, err := s.fetcher.FetchAll(ctx, queries)
	if err != nil {
		return nil, err
	}

	c := s.calc.WithSkills(calc.SkillTableFromPayload(ds.Data))
	evaluated := make([]Evaluated, 0, len(req.Builds))

	for i, b := range req.Builds {
		stats, err := s.calculate(c, b)
		if err != nil {
			return nil, prefixField(err, fmt.Sprintf("builds[%d]", i))
		}
		evaluated = append(evaluated, Evaluated{Build: b, Stats: *stats})
	}

	candidates, err := s.candidates.Candidates(ctx, ds)
	if err != nil {
		log.Warn("candidate source failed", "error", err)
	}
	for i, b := range candidates {
		if req.Limit > 0 && len(evaluated) >= req.Limit {
			break
		}
		stats, err := s.calculate(c, b)
		if err != nil {
			log.Warn("skipping candidate build", "index", i, "main_skill", b.MainSkill, "error", err)
			continue
		}
		evaluated = append(evaluated, Evaluated{Build: b, Stats: *stats})
	}
	if req.Limit > 0 && len(evaluated) > req.Limit {
		evaluated = evaluated[:req.Limit]
	}

	resp := s.assembler.Assemble(ds, evaluated, s.now().Sub(start))
	resp.RequestID = requestID

	metrics.RecommendationsTotal.WithLabelValues(string(ds.Status)).Inc()
	log.Info("recommendation assembled",
		"status", ds.Status,
		"recommendations", len(resp.Recommendations),
		"sources_used", len(resp.Metadata.DataSourcesUsed),
		"elapsed", resp.Metadata.CalculationTime,
	)
	return resp, nil
}

func (s *Service) calculate(c *calc.Calculator, b domain.BuildConfig) (*domain.BuildStats, error) {
	start := time.Now()
	stats, err := c.Calculate(b)
	metrics.CalculationLatency.Observe(time.Since(start).Seconds())
	return stats, err
}

// prefixField scopes a validation error to the request field it came from.
func prefixField(err error, prefix string) error {
	var v *domain.ValidationError
	if errors.As(err, &v) {
		return &domain.ValidationError{Field: prefix + "." + v.Field, Reason: v.Reason}
	}
	return err
}
