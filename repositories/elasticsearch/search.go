package elasticsearch

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"gohan/variantstore/errors"
	consequenceType "gohan/variantstore/models/constants/consequence-type"
	"gohan/variantstore/models/constants/genotype"
	"gohan/variantstore/models/dtos"
	"gohan/variantstore/models/indexes"
	"gohan/variantstore/models/query"
	"gohan/variantstore/repositories"

	"github.com/Jeffail/gabs"
	"golang.org/x/sync/errgroup"
)

func (a *VariantAdaptor) translate(ctx context.Context, q *query.Query) (esQuery, error) {
	resolved, err := repositories.Resolve(ctx, q, a.manager, a.genes)
	if err != nil {
		return nil, err
	}
	return Translate(resolved), nil
}

func (a *VariantAdaptor) wrapErr(ctx context.Context, err error, op string, timeout time.Duration) error {
	return repositories.TimeoutOr(ctx, err, op, timeout, func(err error) error {
		return errors.BackendUnavailable(BACKEND, err)
	})
}

func sourceFilter(opts query.Options) interface{} {
	include, exclude := opts.Projection()
	if len(include) == 0 && len(exclude) == 0 {
		return true
	}
	source := map[string]interface{}{}
	if len(include) > 0 {
		source["includes"] = include
	}
	if len(exclude) > 0 {
		source["excludes"] = exclude
	}
	return source
}

// search runs one search request and returns its hits
// search runs one _search request. timeout is the limit the body was
// sent with, reported when the server times out.
func (a *VariantAdaptor) search(ctx context.Context, body map[string]interface{}, keysOnly bool, timeout time.Duration) ([]*indexes.Variant, error) {
	buf, err := encode(body)
	if err != nil {
		return nil, err
	}
	parsed, err := a.parse(a.es.Search(
		a.es.Search.WithContext(ctx),
		a.es.Search.WithIndex(a.settings.Index),
		a.es.Search.WithBody(buf),
	))
	if err != nil {
		return nil, err
	}
	if timedOut, _ := parsed.Path("timed_out").Data().(bool); timedOut {
		return nil, errors.Timeout("search", timeout)
	}
	return hitsOf(parsed, keysOnly)
}

func hitsOf(parsed *gabs.Container, keysOnly bool) ([]*indexes.Variant, error) {
	hits, _ := parsed.Path("hits.hits").Children()
	out := make([]*indexes.Variant, 0, len(hits))
	for _, hit := range hits {
		id, _ := hit.Path("_id").Data().(string)
		if keysOnly {
			out = append(out, &indexes.Variant{Id: id})
			continue
		}
		v, err := decodeVariant(hit.Path("_source").Data())
		if err != nil {
			return nil, err
		}
		if v.Id == "" {
			v.Id = id
		}
		out = append(out, v)
	}
	return out, nil
}

func (a *VariantAdaptor) count(ctx context.Context, filter esQuery) (int64, error) {
	buf, err := encode(map[string]interface{}{"query": filter})
	if err != nil {
		return 0, err
	}
	parsed, err := a.parse(a.es.Count(
		a.es.Count.WithContext(ctx),
		a.es.Count.WithIndex(a.settings.Index),
		a.es.Count.WithBody(buf),
	))
	if err != nil {
		return 0, err
	}
	return number(parsed, "count"), nil
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

func (a *VariantAdaptor) explain(opts query.Options, body map[string]interface{}) {
	if !opts.Explain {
		return
	}
	if buf, err := encode(body); err == nil {
		a.logger.Info("query plan", "body", buf.String())
	}
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
			body := map[string]interface{}{
				"query":            filter,
				"from":             opts.Skip,
				"size":             opts.Limit,
				"_source":          sourceFilter(opts),
				"timeout":          fmt.Sprintf("%dms", timeout.Milliseconds()),
				"track_total_hits": false,
			}
			if opts.Sort {
				body["sort"] = []interface{}{map[string]interface{}{"id": "asc"}}
			}
			a.explain(opts, body)

			found, err := a.search(gctx, body, false, timeout)
			variants = found
			return err
		}

		found, err := repositories.Collect(gctx, a.checkpointed(gctx, filter, opts, timeout))
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

// checkpointed opens a search_after scan on the variant key. Skips run
// on the client with keys only pages. Pages carry timeout when it is set.
func (a *VariantAdaptor) checkpointed(ctx context.Context, filter esQuery, opts query.Options, timeout time.Duration) repositories.Iterator {
	source := sourceFilter(opts)
	fetch := func(ctx context.Context, after string, size int, keysOnly bool) ([]*indexes.Variant, error) {
		body := map[string]interface{}{
			"query":            filter,
			"size":             size,
			"sort":             []interface{}{map[string]interface{}{"id": "asc"}},
			"_source":          source,
			"track_total_hits": false,
		}
		if keysOnly {
			body["_source"] = false
		}
		if after != "" {
			body["search_after"] = []interface{}{after}
		}
		if timeout > 0 {
			body["timeout"] = fmt.Sprintf("%dms", timeout.Milliseconds())
		}
		return a.search(ctx, body, keysOnly, timeout)
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
	return a.checkpointed(ctx, filter, opts, 0), nil
}

var groupByFields = map[string]string{
	repositories.GROUP_BY_CHROMOSOME:       "chromosome",
	repositories.GROUP_BY_TYPE:             "type",
	repositories.GROUP_BY_STUDIES:          "studies.sid",
	repositories.GROUP_BY_GENE:             "annotationIndex.genes",
	repositories.GROUP_BY_CONSEQUENCE_TYPE: "annotationIndex.so",
}

func bucketKey(field string, key interface{}) string {
	switch k := key.(type) {
	case string:
		return k
	case float64:
		if field == repositories.GROUP_BY_CONSEQUENCE_TYPE {
			return consequenceType.FormatAccession(int(k))
		}
		return strconv.FormatInt(int64(k), 10)
	}
	return fmt.Sprint(key)
}

// aggregate runs a terms aggregation on field and returns its buckets
func (a *VariantAdaptor) aggregate(ctx context.Context, filter esQuery, field string, nestedPath string, size int) ([]*gabs.Container, error) {
	items := map[string]interface{}{"terms": map[string]interface{}{"field": field, "size": size}}
	path := "aggregations.items.buckets"
	if nestedPath != "" {
		items = map[string]interface{}{
			"nested": map[string]interface{}{"path": nestedPath},
			"aggs":   map[string]interface{}{"items": items},
		}
		path = "aggregations.items.items.buckets"
	}

	buf, err := encode(map[string]interface{}{
		"query": filter,
		"size":  0,
		"aggs":  map[string]interface{}{"items": items},
	})
	if err != nil {
		return nil, err
	}
	parsed, err := a.parse(a.es.Search(
		a.es.Search.WithContext(ctx),
		a.es.Search.WithIndex(a.settings.Index),
		a.es.Search.WithBody(buf),
	))
	if err != nil {
		return nil, err
	}
	buckets, _ := parsed.Path(path).Children()
	return buckets, nil
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

	nestedPath := ""
	if field == repositories.GROUP_BY_STUDIES {
		nestedPath = "studies"
	}
	buckets, err := a.aggregate(ctx, filter, groupByFields[field], nestedPath, limit)
	if err != nil {
		return nil, a.wrapErr(ctx, err, "group by", timeout)
	}

	out := make([]dtos.GroupCount, 0, len(buckets))
	for _, b := range buckets {
		out = append(out, dtos.GroupCount{
			Key:   bucketKey(field, b.Path("key").Data()),
			Count: number(b, "doc_count"),
		})
	}
	return out, nil
}

func (a *VariantAdaptor) StudyIds(ctx context.Context) ([]int, error) {
	if err := a.checkOpen(); err != nil {
		return nil, err
	}
	buckets, err := a.aggregate(ctx, matchAll, "studies.sid", "studies", 10000)
	if err != nil {
		return nil, err
	}
	out := make([]int, 0, len(buckets))
	for _, b := range buckets {
		out = append(out, int(number(b, "key")))
	}
	return out, nil
}

// getVariant looks a variant up by key. Keys may hold spaces, so they
// are searched for instead of being used in a document path.
func (a *VariantAdaptor) getVariant(ctx context.Context, key string, timeout time.Duration) (*indexes.Variant, error) {
	found, err := a.search(ctx, map[string]interface{}{"query": term("id", key), "size": 1}, false, timeout)
	if err != nil {
		return nil, err
	}
	if len(found) == 0 {
		return nil, errors.UnresolvedReference("variant", key)
	}
	return found[0], nil
}

func phasedBuckets() []string {
	out := []string{}
	for _, gt := range genotype.Concrete {
		if genotype.IsPhased(gt) {
			out = append(out, gt)
		}
	}
	return out
}

// GetPhased returns the variants within windowSize of the target on
// which the sample carries a phased genotype, provided the sample is
// phased on the target itself. The target always comes first.
func (a *VariantAdaptor) GetPhased(ctx context.Context, variantKey string, study string, sample string, opts query.Options, windowSize int) (*dtos.QueryResult, error) {
	start := time.Now()
	if err := a.checkOpen(); err != nil {
		return nil, err
	}
	sc, err := a.manager.ResolveStudy(ctx, study)
	if err != nil {
		return nil, err
	}
	sampleId, err := a.manager.ResolveSample(ctx, sample, sc)
	if err != nil {
		return nil, err
	}

	ctx, cancel, timeout := repositories.WithQueryTimeout(ctx, opts, a.settings.DefaultTimeout, a.settings.MaxTimeout)
	defer cancel()

	target, err := a.getVariant(ctx, variantKey, timeout)
	if err != nil {
		return nil, a.wrapErr(ctx, err, "get phased", timeout)
	}

	results := []*indexes.Variant{target}
	entry := target.Study(sc.Id)
	if entry != nil && genotype.IsPhased(entry.BucketOf(sampleId)) {
		from := target.Start - windowSize
		if from < 0 {
			from = 0
		}
		filter := and(
			regionFilter(query.Region{Chromosome: target.Chromosome, Start: from, End: target.End + windowSize}),
			not(term("id", target.Id)),
			nested("studies", and(term("studies.sid", sc.Id), inBuckets(sampleId, phasedBuckets()))),
		)
		size := opts.Limit
		if size <= 0 || size > a.settings.MaxResultWindow {
			size = a.settings.MaxResultWindow
		}
		body := map[string]interface{}{
			"query":   filter,
			"size":    size,
			"sort":    []interface{}{map[string]interface{}{"id": "asc"}},
			"_source": sourceFilter(opts),
		}
		found, err := a.search(ctx, body, false, timeout)
		if err != nil {
			return nil, a.wrapErr(ctx, err, "get phased", timeout)
		}
		results = append(results, found...)
	}

	return &dtos.QueryResult{
		Results:         results,
		NumResults:      len(results),
		NumTotalResults: int64(len(results)),
		Time:            time.Since(start),
	}, nil
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

	field := "annotation"
	if name != "" && name != indexes.CurrentAnnotation {
		field = "annotationSnapshots." + name
	}

	ctx, cancel, timeout := repositories.WithQueryTimeout(ctx, opts, a.settings.DefaultTimeout, a.settings.MaxTimeout)
	defer cancel()

	fetch := func(ctx context.Context, after string, size int, keysOnly bool) ([]*indexes.Variant, error) {
		body := map[string]interface{}{
			"query":   filter,
			"size":    size,
			"sort":    []interface{}{map[string]interface{}{"id": "asc"}},
			"_source": map[string]interface{}{"includes": []string{"id", field}},
		}
		if after != "" {
			body["search_after"] = []interface{}{after}
		}
		buf, err := encode(body)
		if err != nil {
			return nil, err
		}
		parsed, err := a.parse(a.es.Search(
			a.es.Search.WithContext(ctx),
			a.es.Search.WithIndex(a.settings.Index),
			a.es.Search.WithBody(buf),
		))
		if err != nil {
			return nil, err
		}

		hits, _ := parsed.Path("hits.hits").Children()
		out := make([]*indexes.Variant, 0, len(hits))
		for _, hit := range hits {
			id, _ := hit.Path("_id").Data().(string)
			v := &indexes.Variant{Id: id}
			if raw := hit.Path("_source." + field).Data(); raw != nil {
				ann := &indexes.VariantAnnotation{}
				if err := decode(raw, ann); err != nil {
					return nil, errors.Wrap(err, "decoding annotation")
				}
				v.Annotation = ann
			}
			out = append(out, v)
		}
		return out, nil
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
