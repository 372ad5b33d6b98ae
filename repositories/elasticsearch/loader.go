package elasticsearch

import (
	"context"
	"time"

	"gohan/variantstore/errors"
	"gohan/variantstore/metadata"
	"gohan/variantstore/models/constants/chromosome"
	"gohan/variantstore/models/constants/genotype"
	"gohan/variantstore/models/dtos"
	"gohan/variantstore/models/indexes"
	"gohan/variantstore/repositories"
)

// Insert loads a batch of one file in two phases. Phase 1 creates the
// variant, or adds the study entry, unless the variant already has the
// study. Phase 2 appends the file to the existing study entry of the
// variants rejected by phase 1. A batch is never cancelled half way.
func (a *VariantAdaptor) Insert(ctx context.Context, batch []*indexes.Variant, fileId int, sc *metadata.StudyConfiguration) (dtos.WriteResult, error) {
	start := time.Now()
	result := dtos.WriteResult{}
	if err := a.checkOpen(); err != nil {
		return result, err
	}
	ctx = context.WithoutCancel(ctx)

	variants, skipped := repositories.Loadable(batch, sc)
	result.SkippedVariants = skipped

	entries := make([]*indexes.StudyEntry, len(variants))
	phase1 := make([]bulkItem, 0, len(variants))
	for i, v := range variants {
		entry, prefilled := repositories.StudyEntryFor(v, fileId, sc)
		entries[i] = entry

		doc := *v
		doc.Chromosome = chromosome.Normalize(v.Chromosome)
		doc.Id = v.Key()
		doc.Studies = []*indexes.StudyEntry{prefilled}
		if doc.CreatedTime.IsZero() {
			doc.CreatedTime = start.UTC()
		}

		phase1 = append(phase1, bulkItem{
			key: doc.Id,
			body: map[string]interface{}{
				"script": script(OP_INSERT_STUDY, map[string]interface{}{"study": prefilled}),
				"upsert": doc,
			},
		})
	}

	outcomes, err := a.bulk(ctx, phase1)
	if err != nil {
		return result, errors.BatchAborted(err, 1, firstFailed(outcomes))
	}

	// rejected by the conditional create, in batch order
	rejected := []int{}
	for i, o := range outcomes {
		switch o.result {
		case "created":
			result.NewVariants++
		case "updated":
			result.UpdatedVariants++
		default:
			rejected = append(rejected, i)
		}
	}

	if len(rejected) > 0 {
		phase2 := make([]bulkItem, 0, len(rejected))
		for _, i := range rejected {
			phase2 = append(phase2, bulkItem{
				key: phase1[i].key,
				body: map[string]interface{}{
					"script": script(OP_MERGE_FILE, map[string]interface{}{"study": entries[i], "fileId": fileId}),
				},
			})
		}

		outcomes, err := a.bulk(ctx, phase2)
		if err != nil {
			return result, errors.BatchAborted(err, 2, firstFailed(outcomes))
		}
		var merged int64
		for _, o := range outcomes {
			if o.result == "updated" {
				merged++
			}
		}
		result.UpdatedVariants += merged
		result.NonInsertedVariants = int64(len(rejected)) - merged
	}

	result.Time = time.Since(start)
	a.logger.Debug("batch loaded",
		"file", fileId, "study", sc.Id,
		"new", result.NewVariants, "updated", result.UpdatedVariants,
		"skipped", result.SkippedVariants, "nonInserted", result.NonInsertedVariants)
	return result, nil
}

// FillGaps puts the samples of a newly loaded file under the unknown
// genotype on every variant of the study the file did not call
func (a *VariantAdaptor) FillGaps(ctx context.Context, fileId int, chromosomes []string, newSampleIds []int, sc *metadata.StudyConfiguration) (dtos.WriteResult, error) {
	start := time.Now()
	result := dtos.WriteResult{}
	if err := a.checkOpen(); err != nil {
		return result, err
	}
	if !repositories.FillGapsNeeded(newSampleIds, sc) {
		a.logger.Debug("fill gaps not needed", "file", fileId, "study", sc.Id)
		return result, nil
	}

	if err := a.refresh(ctx); err != nil {
		return result, err
	}

	filters := []esQuery{nested("studies", and(
		term("studies.sid", sc.Id),
		not(term("studies.files.fid", fileId)),
	))}
	if len(chromosomes) > 0 {
		normalized := make([]string, 0, len(chromosomes))
		for _, c := range chromosomes {
			normalized = append(normalized, chromosome.Normalize(c))
		}
		filters = append(filters, terms("chromosome", normalized))
	}

	body := map[string]interface{}{
		"query": and(filters...),
		"script": script(OP_FILL_GAPS, map[string]interface{}{
			"sid":     sc.Id,
			"gt":      genotype.Unknown,
			"samples": newSampleIds,
		}),
	}
	buf, err := encode(body)
	if err != nil {
		return result, err
	}

	parsed, err := a.parse(a.es.UpdateByQuery([]string{a.settings.Index},
		a.es.UpdateByQuery.WithContext(ctx),
		a.es.UpdateByQuery.WithBody(buf),
		a.es.UpdateByQuery.WithConflicts("proceed"),
		a.es.UpdateByQuery.WithRefresh(true),
	))
	if err != nil {
		return result, err
	}

	result.UpdatedVariants = number(parsed, "updated")
	result.Time = time.Since(start)
	a.logger.Info("gaps filled", "file", fileId, "study", sc.Id, "updated", result.UpdatedVariants)
	return result, nil
}
