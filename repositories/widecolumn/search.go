package widecolumn

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"gohan/variantstore/errors"
	consequenceType "gohan/variantstore/models/constants/consequence-type"
	"gohan/variantstore/models/dtos"
	"gohan/variantstore/models/indexes"
	"gohan/variantstore/models/query"
	"gohan/variantstore/repositories"
	"gohan/variantstore/utils"

	"github.com/dgraph-io/badger/v4"
	"golang.org/x/sync/errgroup"
)

func (a *VariantAdaptor) translate(ctx context.Context, q *query.Query) (*Filter, error) {
	resolved, err := repositories.Resolve(ctx, q, a.manager, a.genes)
	if err != nil {
		return nil, err
	}
	return Translate(resolved)
}

func (a *VariantAdaptor) wrapErr(ctx context.Context, err error, op string, timeout time.Duration) error {
	return repositories.TimeoutOr(ctx, err, op, timeout, func(err error) error {
		return errors.BackendUnavailable(BACKEND, err)
	})
}

// explain logs the plan the SQL index chose for a query
func (a *VariantAdaptor) explain(ctx context.Context, opts query.Options, stmt string, args []interface{}) {
	if !opts.Explain {
		return
	}
	db, err := a.session(ctx)
	if err != nil {
		return
	}
	prefix := "EXPLAIN QUERY PLAN "
	if a.settings.SqlDriver == utils.SQL_DRIVER_POSTGRES {
		prefix = "EXPLAIN "
	}
	rows, err := db.QueryContext(ctx, a.rebind(prefix+stmt), args...)
	if err != nil {
		a.logger.Warn("explain failed", "error", err)
		return
	}
	defer rows.Close()

	columns, _ := rows.Columns()
	plan := []string{}
	for rows.Next() {
		cells := make([]interface{}, len(columns))
		ptrs := make([]interface{}, len(columns))
		for i := range cells {
			ptrs[i] = &cells[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			break
		}
		line := make([]string, 0, len(cells))
		for _, c := range cells {
			if b, ok := c.([]byte); ok {
				c = string(b)
			}
			line = append(line, fmt.Sprint(c))
		}
		plan = append(plan, strings.Join(line, " "))
	}
	a.logger.Info("query plan", "sql", stmt, "plan", strings.Join(plan, "\n"))
}

// project drops the fields a caller did not ask for
func project(v *indexes.Variant, opts query.Options) *indexes.Variant {
	include, exclude := opts.Projection()
	if len(include) == 0 && len(exclude) == 0 {
		return v
	}
	if !opts.Includes("names") {
		v.Names = nil
	}
	if !opts.Includes("studies") {
		v.Studies = nil
	} else if onlyStudyIds(include) {
		ids := make([]*indexes.StudyEntry, 0, len(v.Studies))
		for _, s := range v.Studies {
			ids = append(ids, &indexes.StudyEntry{StudyId: s.StudyId})
		}
		v.Studies = ids
	}
	if !opts.Includes("annotation") {
		v.Annotation = nil
		v.AnnotationIndex = nil
	}
	if !opts.Includes("stats") {
		v.Stats = nil
	}
	if !opts.Includes("customAnnotations") {
		v.CustomAnnotations = nil
	}
	return v
}

func onlyStudyIds(include []string) bool {
	ids := false
	for _, f := range include {
		switch f {
		case "studies":
			return false
		case "studies.sid":
			ids = true
		}
	}
	return ids
}

func (a *VariantAdaptor) load(keys []string, opts query.Options) ([]*indexes.Variant, error) {
	variants, err := a.loadVariants(keys)
	if err != nil {
		return nil, err
	}
	for i, v := range variants {
		variants[i] = project(v, opts)
	}
	return variants, nil
}

func (a *VariantAdaptor) count(ctx context.Context, filter *Filter) (int64, error) {
	db, err := a.session(ctx)
	if err != nil {
		return 0, err
	}
	var n int64
	err = db.QueryRowContext(ctx, a.rebind("SELECT COUNT(*) FROM variants v WHERE "+filter.Clause), filter.Args...).Scan(&n)
	return n, err
}

func (a *VariantAdaptor) Count(ctx context.Context, q *query.Query) (int64, error) {
	if err := a.checkOpen(); err != nil {
		return 0, err
	}
	filter, err := a.translate(ctx, q)
	if err != nil {
		return 0, err
	}

	ctx, cancel, timeout := repositories.WithQueryTimeout(ctx, query.Options{}, a.settings.DefaultTimeout, a.settings.MaxTimeout)
	defer cancel()

	n, err := a.count(ctx, filter)
	if err != nil {
		return 0, a.wrapErr(ctx, err, "count", timeout)
	}
	return n, nil
}

func (a *VariantAdaptor) Get(ctx context.Context, q *query.Query, opts query.Options) (*dtos.QueryResult, error) {
	start := time.Now()
	opts = repositories.BoundGet(opts)
	if err := a.checkOpen(); err != nil {
		return nil, err
	}
	filter, err := a.translate(ctx, q)
	if err != nil {
		return nil, err
	}

	ctx, cancel, timeout := repositories.WithQueryTimeout(ctx, opts, a.settings.DefaultTimeout, a.settings.MaxTimeout)
	defer cancel()

	var (
		variants []*indexes.Variant
		total    int64 = -1
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if repositories.ChooseStrategy(opts, a.settings.MaxResultWindow) == repositories.STRATEGY_DIRECT {
			stmt := "SELECT v.vkey FROM variants v WHERE " + filter.Clause + " ORDER BY v.vkey LIMIT ? OFFSET ?"
			args := append(append([]interface{}{}, filter.Args...), opts.Limit, opts.Skip)
			a.explain(gctx, opts, stmt, args)

			keys, err := a.queryKeys(gctx, stmt, args...)
			if err != nil {
				return err
			}
			variants, err = a.load(keys, opts)
			return err
		}

		found, err := repositories.Collect(gctx, a.checkpointed(gctx, filter, opts))
		variants = found
		return err
	})
	if !opts.SkipCount {
		g.Go(func() error {
			n, err := a.count(gctx, filter)
			total = n
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, a.wrapErr(ctx, err, "get", timeout)
	}

	return &dtos.QueryResult{
		Results:         variants,
		NumResults:      len(variants),
		NumTotalResults: total,
		Time:            time.Since(start),
	}, nil
}

// keyPage fetches the next size matching keys after the given one
func (a *VariantAdaptor) keyPage(ctx context.Context, filter *Filter, after string, size int) ([]string, error) {
	stmt := "SELECT v.vkey FROM variants v WHERE " + filter.Clause
	args := append([]interface{}{}, filter.Args...)
	if after != "" {
		stmt += " AND v.vkey > ?"
		args = append(args, after)
	}
	stmt += " ORDER BY v.vkey LIMIT ?"
	args = append(args, size)
	return a.queryKeys(ctx, stmt, args...)
}

// checkpointed opens a keyset scan: every page restarts after the last
// key seen. Skips read keys only.
func (a *VariantAdaptor) checkpointed(ctx context.Context, filter *Filter, opts query.Options) repositories.Iterator {
	fetch := func(ctx context.Context, after string, size int, keysOnly bool) ([]*indexes.Variant, error) {
		keys, err := a.keyPage(ctx, filter, after, size)
		if err != nil {
			return nil, err
		}
		if keysOnly {
			out := make([]*indexes.Variant, 0, len(keys))
			for _, k := range keys {
				out = append(out, &indexes.Variant{Id: k})
			}
			return out, nil
		}
		return a.load(keys, opts)
	}

	batchSize := opts.BatchSize
	if batchSize <= 0 {
		batchSize = a.settings.DefaultBatchSize
	}
	it := repositories.NewCheckpointIterator(fetch, batchSize, opts.Limit)
	if opts.Skip > 0 {
		it.Skip(ctx, opts.Skip)
	}
	return it
}

func (a *VariantAdaptor) Iterator(ctx context.Context, q *query.Query, opts query.Options) (repositories.Iterator, error) {
	if err := a.checkOpen(); err != nil {
		return nil, err
	}
	filter, err := a.translate(ctx, q)
	if err != nil {
		return nil, err
	}

	if repositories.ChooseStrategy(opts, a.settings.MaxResultWindow) == repositories.STRATEGY_DIRECT {
		opts.SkipCount = true
		res, err := a.Get(ctx, q, opts)
		if err != nil {
			return nil, err
		}
		return repositories.NewSliceIterator(res.Results, nil), nil
	}
	return a.checkpointed(ctx, filter, opts), nil
}

// group by sources: the grouped column, and the join bringing it in
var groupBySources = map[string]struct {
	column string
	join   string
	args   []interface{}
}{
	repositories.GROUP_BY_CHROMOSOME: {column: "v.chromosome"},
	repositories.GROUP_BY_TYPE:       {column: "v.type"},
	repositories.GROUP_BY_STUDIES: {
		column: "gs.sid",
		join:   " JOIN study_entries gs ON gs.vkey = v.vkey",
	},
	repositories.GROUP_BY_GENE: {
		column: "gt.value",
		join:   " JOIN annotation_terms gt ON gt.vkey = v.vkey AND gt.field = ?",
		args:   []interface{}{FIELD_GENES},
	},
	repositories.GROUP_BY_CONSEQUENCE_TYPE: {
		column: "gt.value",
		join:   " JOIN annotation_terms gt ON gt.vkey = v.vkey AND gt.field = ?",
		args:   []interface{}{FIELD_SO},
	},
}

func (a *VariantAdaptor) GroupBy(ctx context.Context, q *query.Query, field string, limit int) ([]dtos.GroupCount, error) {
	if err := a.checkOpen(); err != nil {
		return nil, err
	}
	if err := repositories.ValidateGroupBy(field); err != nil {
		return nil, err
	}
	filter, err := a.translate(ctx, q)
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 10
	}

	ctx, cancel, timeout := repositories.WithQueryTimeout(ctx, query.Options{}, a.settings.DefaultTimeout, a.settings.MaxTimeout)
	defer cancel()

	source := groupBySources[field]
	stmt := fmt.Sprintf("SELECT %s, COUNT(*) FROM variants v%s WHERE %s GROUP BY %s ORDER BY COUNT(*) DESC, %s LIMIT ?",
		source.column, source.join, filter.Clause, source.column, source.column)
	args := append(append(append([]interface{}{}, source.args...), filter.Args...), limit)

	out, err := a.groupCounts(ctx, stmt, args)
	if err != nil {
		return nil, a.wrapErr(ctx, err, "group by", timeout)
	}
	if field == repositories.GROUP_BY_CONSEQUENCE_TYPE {
		for i := range out {
			if acc, err := strconv.Atoi(out[i].Key); err == nil {
				out[i].Key = consequenceType.FormatAccession(acc)
			}
		}
	}
	return out, nil
}

func (a *VariantAdaptor) groupCounts(ctx context.Context, stmt string, args []interface{}) ([]dtos.GroupCount, error) {
	db, err := a.session(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := db.QueryContext(ctx, a.rebind(stmt), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []dtos.GroupCount{}
	for rows.Next() {
		var gc dtos.GroupCount
		if err := rows.Scan(&gc.Key, &gc.Count); err != nil {
			return nil, err
		}
		out = append(out, gc)
	}
	return out, rows.Err()
}

func (a *VariantAdaptor) StudyIds(ctx context.Context) ([]int, error) {
	if err := a.checkOpen(); err != nil {
		return nil, err
	}
	keys, err := a.queryKeys(ctx, "SELECT DISTINCT sid FROM study_entries ORDER BY sid")
	if err != nil {
		return nil, errors.BackendUnavailable(BACKEND, err)
	}
	out := make([]int, 0, len(keys))
	for _, k := range keys {
		id, err := strconv.Atoi(k)
		if err != nil {
			return nil, errors.Wrapf(err, "reading study id %q", k)
		}
		out = append(out, id)
	}
	return out, nil
}

func (a *VariantAdaptor) GetPhased(ctx context.Context, variantKey string, study string, sample string, opts query.Options, windowSize int) (*dtos.QueryResult, error) {
	return nil, errors.UnsupportedOperation(BACKEND, "get phased")
}

// GetAnnotation reads the current annotation, or a named snapshot, of
// the matching variants. Variants without it are left out.
func (a *VariantAdaptor) GetAnnotation(ctx context.Context, name string, q *query.Query, opts query.Options) ([]*indexes.VariantAnnotation, error) {
	if err := a.checkOpen(); err != nil {
		return nil, err
	}
	filter, err := a.translate(ctx, q)
	if err != nil {
		return nil, err
	}
	current := name == "" || name == indexes.CurrentAnnotation

	ctx, cancel, timeout := repositories.WithQueryTimeout(ctx, opts, a.settings.DefaultTimeout, a.settings.MaxTimeout)
	defer cancel()

	fetch := func(ctx context.Context, after string, size int, keysOnly bool) ([]*indexes.Variant, error) {
		keys, err := a.keyPage(ctx, filter, after, size)
		if err != nil {
			return nil, err
		}
		out := make([]*indexes.Variant, 0, len(keys))
		err = a.rows.View(func(txn *badger.Txn) error {
			for _, key := range keys {
				v := &indexes.Variant{Id: key}
				out = append(out, v)
				if keysOnly {
					continue
				}
				if current {
					row, err := readVariant(txn, key)
					if err != nil {
						return err
					}
					if row != nil {
						v.Annotation = row.Annotation
					}
					continue
				}
				ann := &indexes.VariantAnnotation{}
				found, err := readJSON(txn, snapshotKey(key, name), ann)
				if err != nil {
					return err
				}
				if found {
					v.Annotation = ann
				}
			}
			return nil
		})
		return out, err
	}

	batchSize := opts.BatchSize
	if batchSize <= 0 {
		batchSize = a.settings.DefaultBatchSize
	}
	it := repositories.NewCheckpointIterator(fetch, batchSize, opts.Limit)
	if opts.Skip > 0 {
		it.Skip(ctx, opts.Skip)
	}
	variants, err := repositories.Collect(ctx, it)
	if err != nil {
		return nil, a.wrapErr(ctx, err, "get annotation", timeout)
	}

	out := []*indexes.VariantAnnotation{}
	for _, v := range variants {
		if v.Annotation != nil {
			out = append(out, v.Annotation)
		}
	}
	return out, nil
}
