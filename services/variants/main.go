package variantsService

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"gohan/variantstore/metrics"
	"gohan/variantstore/models/dtos"
	"gohan/variantstore/models/query"
	"gohan/variantstore/repositories"

	"golang.org/x/sync/errgroup"
)

// default number of buckets per overview field
const overviewLimit = 50

type (
	// VariantService fronts the configured adaptor for the HTTP layer and
	// records per operation metrics
	VariantService struct {
		adaptor repositories.VariantAdaptor
		backend string
		logger  *slog.Logger
	}
)

func NewVariantService(adaptor repositories.VariantAdaptor, backend string, logger *slog.Logger) *VariantService {
	if logger == nil {
		logger = slog.Default()
	}
	return &VariantService{
		adaptor: adaptor,
		backend: backend,
		logger:  logger.With("service", "variants"),
	}
}

func (vs *VariantService) Get(ctx context.Context, q *query.Query, opts query.Options) (*dtos.QueryResult, error) {
	defer metrics.ObserveQuery(vs.backend, "get", time.Now())
	return vs.adaptor.Get(ctx, q, opts)
}

func (vs *VariantService) Count(ctx context.Context, q *query.Query) (int64, error) {
	defer metrics.ObserveQuery(vs.backend, "count", time.Now())
	return vs.adaptor.Count(ctx, q)
}

func (vs *VariantService) GetPhased(ctx context.Context, variantKey string, study string, sample string, opts query.Options, windowSize int) (*dtos.QueryResult, error) {
	defer metrics.ObserveQuery(vs.backend, "phased", time.Now())
	return vs.adaptor.GetPhased(ctx, variantKey, study, sample, opts, windowSize)
}

// StudyIds lists the studies with variants in the store
func (vs *VariantService) StudyIds(ctx context.Context) ([]int, error) {
	defer metrics.ObserveQuery(vs.backend, "studies", time.Now())
	return vs.adaptor.StudyIds(ctx)
}

// GetVariantsOverview ranks the variants matching q over each field,
// concurrently. A failing field fails the whole overview.
func (vs *VariantService) GetVariantsOverview(ctx context.Context, q *query.Query, fields []string, limit int) (dtos.VariantsOverviewResponseDTO, error) {
	defer metrics.ObserveQuery(vs.backend, "overview", time.Now())

	if len(fields) == 0 {
		fields = repositories.GroupByFields
	}
	if limit <= 0 {
		limit = overviewLimit
	}
	for _, f := range fields {
		if err := repositories.ValidateGroupBy(f); err != nil {
			return nil, err
		}
	}

	resultsMap := dtos.VariantsOverviewResponseDTO{}
	resultsMux := sync.Mutex{}

	g, gctx := errgroup.WithContext(ctx)
	for _, field := range fields {
		field := field
		g.Go(func() error {
			buckets, err := vs.adaptor.GroupBy(gctx, q, field, limit)
			if err != nil {
				return err
			}

			resultsMux.Lock()
			resultsMap[field] = buckets
			resultsMux.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		vs.logger.Warn("overview failed", "error", err)
		return nil, err
	}
	return resultsMap, nil
}
