package elasticsearch

import (
	"context"
	"sort"
	"strconv"
	"time"

	"gohan/variantstore/errors"
	"gohan/variantstore/metadata"
	"gohan/variantstore/models/dtos"
	"gohan/variantstore/models/indexes"
	"gohan/variantstore/models/query"
)

// updateByQuery runs a script on every matching document and returns
// the number of updated documents
func (a *VariantAdaptor) updateByQuery(ctx context.Context, filter esQuery, sc map[string]interface{}) (int64, error) {
	buf, err := encode(map[string]interface{}{"query": filter, "script": sc})
	if err != nil {
		return 0, err
	}
	parsed, err := a.parse(a.es.UpdateByQuery([]string{a.settings.Index},
		a.es.UpdateByQuery.WithContext(ctx),
		a.es.UpdateByQuery.WithBody(buf),
		a.es.UpdateByQuery.WithConflicts("proceed"),
		a.es.UpdateByQuery.WithRefresh(true),
	))
	if err != nil {
		return 0, err
	}
	return number(parsed, "updated"), nil
}

// writeResult counts bulk outcomes: updated documents, missing documents
// as skipped and noops as not inserted
func writeResult(outcomes []bulkOutcome, start time.Time) dtos.WriteResult {
	result := dtos.WriteResult{}
	for _, o := range outcomes {
		switch {
		case o.missing():
			result.SkippedVariants++
		case o.result == "updated":
			result.UpdatedVariants++
		default:
			result.NonInsertedVariants++
		}
	}
	result.Time = time.Since(start)
	return result
}

// UpdateStats stores freshly computed stats. With overwrite off, the
// entries already stored for a (study, cohort) pair are kept.
func (a *VariantAdaptor) UpdateStats(ctx context.Context, stats []*indexes.VariantStatsWrapper, sc *metadata.StudyConfiguration, overwrite bool) (dtos.WriteResult, error) {
	start := time.Now()
	if err := a.checkOpen(); err != nil {
		return dtos.WriteResult{}, err
	}

	items := make([]bulkItem, 0, len(stats))
	for _, w := range stats {
		entries := make([]*indexes.VariantStats, 0, len(w.Stats))
		for _, st := range w.Stats {
			copied := *st
			copied.StudyId = sc.Id
			entries = append(entries, &copied)
		}
		items = append(items, bulkItem{
			key: w.Key(),
			body: map[string]interface{}{
				"script": script(OP_STATS, map[string]interface{}{"stats": entries, "overwrite": overwrite}),
			},
		})
	}

	outcomes, err := a.bulk(ctx, items)
	if err != nil {
		return dtos.WriteResult{}, errors.Wrapf(err, "updating stats at %s", firstFailed(outcomes))
	}
	return writeResult(outcomes, start), nil
}

func (a *VariantAdaptor) DeleteStats(ctx context.Context, studyId int, cohortId int) (dtos.WriteResult, error) {
	start := time.Now()
	if err := a.checkOpen(); err != nil {
		return dtos.WriteResult{}, err
	}

	filter := nested("stats", and(term("stats.sid", studyId), term("stats.cid", cohortId)))
	updated, err := a.updateByQuery(ctx, filter, script(OP_DELETE_STATS, map[string]interface{}{
		"sid": studyId,
		"cid": cohortId,
	}))
	if err != nil {
		return dtos.WriteResult{}, err
	}
	return dtos.WriteResult{UpdatedVariants: updated, Time: time.Since(start)}, nil
}

// UpdateAnnotations replaces the current annotation of each variant, and
// its derived index, or stores it as the named snapshot. Variants that
// are not stored are skipped.
func (a *VariantAdaptor) UpdateAnnotations(ctx context.Context, annotations []*indexes.VariantAnnotation, name string) (dtos.WriteResult, error) {
	start := time.Now()
	if err := a.checkOpen(); err != nil {
		return dtos.WriteResult{}, err
	}

	items := make([]bulkItem, 0, len(annotations))
	for _, ann := range annotations {
		var sc map[string]interface{}
		if name == "" || name == indexes.CurrentAnnotation {
			sc = script(OP_ANNOTATION, map[string]interface{}{
				"annotation":      ann,
				"annotationIndex": ann.Index(),
			})
		} else {
			sc = script(OP_SNAPSHOT, map[string]interface{}{"name": name, "annotation": ann})
		}
		items = append(items, bulkItem{key: ann.Key(), body: map[string]interface{}{"script": sc}})
	}

	outcomes, err := a.bulk(ctx, items)
	if err != nil {
		return dtos.WriteResult{}, errors.Wrapf(err, "updating annotation at %s", firstFailed(outcomes))
	}
	return writeResult(outcomes, start), nil
}

// CustomAttributes turns attrs into stored attributes, sorted by key.
// Numeric values are also kept as numbers.
func CustomAttributes(name string, attrs map[string]string) []indexes.CustomAttribute {
	keys := make([]string, 0, len(attrs))
	for k := range attrs {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]indexes.CustomAttribute, 0, len(keys))
	for _, k := range keys {
		attr := indexes.CustomAttribute{Name: name, Key: k, Value: attrs[k]}
		if n, err := strconv.ParseFloat(attrs[k], 64); err == nil {
			attr.Number = &n
		}
		out = append(out, attr)
	}
	return out
}

func (a *VariantAdaptor) UpdateCustomAnnotations(ctx context.Context, q *query.Query, name string, attrs map[string]string) (dtos.WriteResult, error) {
	start := time.Now()
	if err := a.checkOpen(); err != nil {
		return dtos.WriteResult{}, err
	}
	if name == "" {
		return dtos.WriteResult{}, errors.MalformedParameter("name", name, "missing custom annotation name")
	}
	filter, err := a.translate(ctx, q)
	if err != nil {
		return dtos.WriteResult{}, err
	}

	updated, err := a.updateByQuery(ctx, filter, script(OP_CUSTOM_ANNOTATION, map[string]interface{}{
		"name":  name,
		"attrs": CustomAttributes(name, attrs),
	}))
	if err != nil {
		return dtos.WriteResult{}, err
	}
	return dtos.WriteResult{UpdatedVariants: updated, Time: time.Since(start)}, nil
}

// DeleteStudy removes the study entries and stats of a study. With
// purge, variants left without any study are deleted.
func (a *VariantAdaptor) DeleteStudy(ctx context.Context, studyId int, purge bool) (dtos.WriteResult, error) {
	start := time.Now()
	if err := a.checkOpen(); err != nil {
		return dtos.WriteResult{}, err
	}

	filter := or(
		nested("studies", term("studies.sid", studyId)),
		nested("stats", term("stats.sid", studyId)),
	)
	updated, err := a.updateByQuery(ctx, filter, script(OP_DELETE_STUDY, map[string]interface{}{"sid": studyId}))
	if err != nil {
		return dtos.WriteResult{}, err
	}
	result := dtos.WriteResult{UpdatedVariants: updated}

	if purge {
		buf, err := encode(map[string]interface{}{
			"query": not(nested("studies", matchAll)),
		})
		if err != nil {
			return result, err
		}
		parsed, err := a.parse(a.es.DeleteByQuery([]string{a.settings.Index}, buf,
			a.es.DeleteByQuery.WithContext(ctx),
			a.es.DeleteByQuery.WithConflicts("proceed"),
			a.es.DeleteByQuery.WithRefresh(true),
		))
		if err != nil {
			return result, err
		}
		result.DeletedVariants = number(parsed, "deleted")
	}

	result.Time = time.Since(start)
	a.logger.Info("study deleted", "study", studyId, "purge", purge,
		"updated", result.UpdatedVariants, "deleted", result.DeletedVariants)
	return result, nil
}
