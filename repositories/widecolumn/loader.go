package widecolumn

import (
	"context"
	"database/sql"
	"time"

	"gohan/variantstore/errors"
	"gohan/variantstore/metadata"
	"gohan/variantstore/models/constants/chromosome"
	"gohan/variantstore/models/constants/genotype"
	"gohan/variantstore/models/dtos"
	"gohan/variantstore/models/indexes"
	"gohan/variantstore/repositories"

	"github.com/dgraph-io/badger/v4"
)

// Insert loads a batch of one file in two phases, like the document
// backend. Phase 1 is a conditional create of the (variant, study) pair
// in the row store; phase 2 appends the file to the entries phase 1
// rejected. Index rows are upserted after each phase.
func (a *VariantAdaptor) Insert(ctx context.Context, batch []*indexes.Variant, fileId int, sc *metadata.StudyConfiguration) (dtos.WriteResult, error) {
	start := time.Now()
	result := dtos.WriteResult{}
	if err := a.checkOpen(); err != nil {
		return result, err
	}
	ctx = context.WithoutCancel(ctx)

	variants, skipped := repositories.Loadable(batch, sc)
	result.SkippedVariants = skipped

	keys := make([]string, len(variants))
	docs := make([]*indexes.Variant, len(variants))
	entries := make([]*indexes.StudyEntry, len(variants))
	prefilled := make([]*indexes.StudyEntry, len(variants))
	for i, v := range variants {
		entries[i], prefilled[i] = repositories.StudyEntryFor(v, fileId, sc)

		doc := *v
		doc.Chromosome = chromosome.Normalize(v.Chromosome)
		doc.Id = v.Key()
		doc.Studies = nil
		if doc.Annotation != nil && doc.AnnotationIndex == nil {
			doc.AnnotationIndex = doc.Annotation.Index()
		}
		if doc.CreatedTime.IsZero() {
			doc.CreatedTime = start.UTC()
		}
		keys[i], docs[i] = doc.Id, &doc
	}

	// phase 1
	outcomes, failed, err := a.updateRows(keys, func(txn *badger.Txn, i int, current *indexes.Variant) (*indexes.Variant, string, error) {
		if current == nil {
			created := *docs[i]
			created.Studies = []*indexes.StudyEntry{prefilled[i]}
			return &created, OUTCOME_CREATED, nil
		}
		if current.Study(sc.Id) != nil {
			return nil, OUTCOME_REJECTED, nil
		}
		current.Studies = append(current.Studies, prefilled[i])
		return current, OUTCOME_UPDATED, nil
	})
	if err != nil {
		return result, errors.BatchAborted(err, 1, failed)
	}

	rejected := []int{}
	err = a.inTx(ctx, func(tx *sql.Tx) error {
		for i, outcome := range outcomes {
			switch outcome {
			case OUTCOME_CREATED:
				result.NewVariants++
			case OUTCOME_UPDATED:
				result.UpdatedVariants++
			default:
				rejected = append(rejected, i)
				continue
			}
			failed = keys[i]
			if err := a.index(ctx, tx, docs[i], prefilled[i], outcome == OUTCOME_CREATED); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return result, errors.BatchAborted(err, 1, failed)
	}

	if len(rejected) > 0 {
		merged, err := a.mergeFiles(ctx, rejected, keys, docs, entries, fileId, sc)
		if err != nil {
			return result, err
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

// mergeFiles is phase 2. Replays find the file already present and
// leave the row alone, but still upsert its index rows so that a batch
// aborted between the row store and the index converges on retry.
func (a *VariantAdaptor) mergeFiles(ctx context.Context, rejected []int, keys []string, docs []*indexes.Variant, entries []*indexes.StudyEntry, fileId int, sc *metadata.StudyConfiguration) (int64, error) {
	phaseKeys := make([]string, len(rejected))
	for j, i := range rejected {
		phaseKeys[j] = keys[i]
	}

	outcomes, failed, err := a.updateRows(phaseKeys, func(txn *badger.Txn, j int, current *indexes.Variant) (*indexes.Variant, string, error) {
		i := rejected[j]
		if current == nil {
			return nil, OUTCOME_MISSING, nil
		}
		entry := current.Study(sc.Id)
		switch {
		case entry == nil:
			current.Studies = append(current.Studies, entries[i])
		case entry.HasFile(fileId):
			return nil, OUTCOME_NOOP, nil
		default:
			entry.Merge(entries[i])
		}
		return current, OUTCOME_UPDATED, nil
	})
	if err != nil {
		return 0, errors.BatchAborted(err, 2, failed)
	}

	var merged int64
	err = a.inTx(ctx, func(tx *sql.Tx) error {
		for j, outcome := range outcomes {
			if outcome == OUTCOME_UPDATED {
				merged++
			}
			if outcome == OUTCOME_MISSING {
				continue
			}
			i := rejected[j]
			failed = keys[i]
			if err := a.index(ctx, tx, docs[i], entries[i], false); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, errors.BatchAborted(err, 2, failed)
	}
	return merged, nil
}

// index upserts the index rows of one loaded record. The annotation
// carried by a record is only indexed when it created the row.
func (a *VariantAdaptor) index(ctx context.Context, tx *sql.Tx, doc *indexes.Variant, entry *indexes.StudyEntry, created bool) error {
	if err := a.indexRow(ctx, tx, doc); err != nil {
		return err
	}
	if created && doc.AnnotationIndex != nil {
		if err := a.indexAnnotation(ctx, tx, doc.Id, doc.AnnotationIndex); err != nil {
			return err
		}
	}
	return a.indexEntry(ctx, tx, doc.Id, entry)
}

const fillGapsBatch = 500

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

	stmt := `SELECT se.vkey FROM study_entries se JOIN variants v ON v.vkey = se.vkey
		WHERE se.sid = ? AND NOT EXISTS (
			SELECT 1 FROM study_files f WHERE f.vkey = se.vkey AND f.sid = se.sid AND f.fid = ?
		)`
	args := []interface{}{sc.Id, fileId}
	if len(chromosomes) > 0 {
		normalized := make([]string, 0, len(chromosomes))
		for _, c := range chromosomes {
			normalized = append(normalized, chromosome.Normalize(c))
		}
		stmt += " AND v.chromosome IN (" + placeholders(len(normalized)) + ")"
		args = append(args, values(normalized)...)
	}
	stmt += " ORDER BY se.vkey"

	keys, err := a.queryKeys(ctx, stmt, args...)
	if err != nil {
		return result, errors.BackendUnavailable(BACKEND, err)
	}

	for from := 0; from < len(keys); from += fillGapsBatch {
		to := from + fillGapsBatch
		if to > len(keys) {
			to = len(keys)
		}
		updated, err := a.fillGaps(ctx, keys[from:to], newSampleIds, sc)
		if err != nil {
			return result, err
		}
		result.UpdatedVariants += updated
	}

	result.Time = time.Since(start)
	a.logger.Info("gaps filled", "file", fileId, "study", sc.Id,
		"candidates", len(keys), "updated", result.UpdatedVariants)
	return result, nil
}

func (a *VariantAdaptor) fillGaps(ctx context.Context, keys []string, samples []int, sc *metadata.StudyConfiguration) (int64, error) {
	added := make([][]int, len(keys))
	outcomes, failed, err := a.updateRows(keys, func(txn *badger.Txn, i int, current *indexes.Variant) (*indexes.Variant, string, error) {
		added[i] = nil
		if current == nil {
			return nil, OUTCOME_MISSING, nil
		}
		entry := current.Study(sc.Id)
		if entry == nil {
			return nil, OUTCOME_MISSING, nil
		}
		for _, s := range samples {
			if entry.BucketOf(s) == "" {
				added[i] = append(added[i], s)
			}
		}
		if len(added[i]) == 0 {
			return nil, OUTCOME_NOOP, nil
		}
		if entry.Genotypes == nil {
			entry.Genotypes = map[string][]int{}
		}
		entry.Genotypes[genotype.Unknown] = append(entry.Genotypes[genotype.Unknown], added[i]...)
		return current, OUTCOME_UPDATED, nil
	})
	if err != nil {
		return 0, errors.Wrapf(errors.BackendUnavailable(BACKEND, err), "filling gaps at %s", failed)
	}

	var updated int64
	err = a.inTx(ctx, func(tx *sql.Tx) error {
		for i, outcome := range outcomes {
			if outcome != OUTCOME_UPDATED {
				continue
			}
			updated++
			for _, s := range added[i] {
				err := a.exec(ctx, tx, `INSERT INTO sample_genotypes (vkey, sid, sample, gt) VALUES (?, ?, ?, ?)
					ON CONFLICT (vkey, sid, sample) DO NOTHING`, keys[i], sc.Id, s, genotype.Unknown)
				if err != nil {
					return err
				}
			}
		}
		return nil
	})
	if err != nil {
		return 0, errors.BackendUnavailable(BACKEND, errors.Wrap(err, "indexing filled gaps"))
	}
	return updated, nil
}
