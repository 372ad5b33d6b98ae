// Package repositories holds the contract shared by the variant store
// backends. Each backend owns its own connection lifecycle.
package repositories

import (
	"context"
	"time"

	"gohan/variantstore/errors"
	"gohan/variantstore/metadata"
	"gohan/variantstore/models/dtos"
	"gohan/variantstore/models/indexes"
	"gohan/variantstore/models/query"
)

type VariantAdaptor interface {
	Get(ctx context.Context, q *query.Query, opts query.Options) (*dtos.QueryResult, error)
	Iterator(ctx context.Context, q *query.Query, opts query.Options) (Iterator, error)
	Count(ctx context.Context, q *query.Query) (int64, error)

	Insert(ctx context.Context, batch []*indexes.Variant, fileId int, sc *metadata.StudyConfiguration) (dtos.WriteResult, error)
	FillGaps(ctx context.Context, fileId int, chromosomes []string, newSampleIds []int, sc *metadata.StudyConfiguration) (dtos.WriteResult, error)

	UpdateStats(ctx context.Context, stats []*indexes.VariantStatsWrapper, sc *metadata.StudyConfiguration, overwrite bool) (dtos.WriteResult, error)
	DeleteStats(ctx context.Context, studyId int, cohortId int) (dtos.WriteResult, error)

	UpdateAnnotations(ctx context.Context, annotations []*indexes.VariantAnnotation, name string) (dtos.WriteResult, error)
	GetAnnotation(ctx context.Context, name string, q *query.Query, opts query.Options) ([]*indexes.VariantAnnotation, error)
	UpdateCustomAnnotations(ctx context.Context, q *query.Query, name string, attrs map[string]string) (dtos.WriteResult, error)

	GetPhased(ctx context.Context, variantKey string, study string, sample string, opts query.Options, windowSize int) (*dtos.QueryResult, error)
	GroupBy(ctx context.Context, q *query.Query, field string, limit int) ([]dtos.GroupCount, error)

	DeleteStudy(ctx context.Context, studyId int, purge bool) (dtos.WriteResult, error)
	StudyIds(ctx context.Context) ([]int, error)

	Close() error
}

// fields GroupBy accepts
const (
	GROUP_BY_CHROMOSOME       = "chromosome"
	GROUP_BY_TYPE             = "type"
	GROUP_BY_STUDIES          = "studies"
	GROUP_BY_GENE             = "gene"
	GROUP_BY_CONSEQUENCE_TYPE = "consequence-type"
)

var GroupByFields = []string{
	GROUP_BY_CHROMOSOME, GROUP_BY_TYPE, GROUP_BY_STUDIES, GROUP_BY_GENE, GROUP_BY_CONSEQUENCE_TYPE,
}

func ValidateGroupBy(field string) error {
	for _, f := range GroupByFields {
		if f == field {
			return nil
		}
	}
	return errors.MalformedParameter("field", field, "cannot group by this field")
}

// WithQueryTimeout bounds ctx by the effective timeout of opts
func WithQueryTimeout(ctx context.Context, opts query.Options, def time.Duration, max time.Duration) (context.Context, context.CancelFunc, time.Duration) {
	timeout := opts.EffectiveTimeout(def, max)
	ctx, cancel := context.WithTimeout(ctx, timeout)
	return ctx, cancel, timeout
}

// TimeoutOr turns a context deadline into a Timeout error and wraps any
// other failure with wrap.
func TimeoutOr(ctx context.Context, err error, op string, timeout time.Duration, wrap func(error) error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, errors.ErrTimeout) || errors.CodeOf(err) != "" {
		return err
	}
	if ctx.Err() == context.DeadlineExceeded || errors.Cause(err) == context.DeadlineExceeded {
		return errors.Timeout(op, timeout)
	}
	if wrap != nil {
		return wrap(err)
	}
	return err
}
