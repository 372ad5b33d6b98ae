package widecolumn

import (
	"context"
	"database/sql"
	"time"

	"gohan/variantstore/errors"
	"gohan/variantstore/metadata"
	"gohan/variantstore/models/dtos"
	"gohan/variantstore/models/indexes"
	"gohan/variantstore/models/query"

	"github.com/dgraph-io/badger/v4"
)

// writeResult counts row outcomes: missing rows as skipped and noops as
// not inserted
func writeResult(outcomes []string, start time.Time) dtos.WriteResult {
	result := dtos.WriteResult{}
	for _, o := range outcomes {
		switch o {
		case OUTCOME_MISSING:
			result.SkippedVariants++
		case OUTCOME_UPDATED:
			result.UpdatedVariants++
		case OUTCOME_DELETED:
			result.DeletedVariants++
		default:
			result.NonInsertedVariants++
		}
	}
	result.Time = time.Since(start)
	return result
}

// replaceStats replaces the (study, cohort) entries of current. With
// overwrite off, entries already stored are kept.
func replaceStats(current []*indexes.VariantStats, incoming []*indexes.VariantStats, overwrite bool) ([]*indexes.VariantStats, bool) {
	changed := false
	for _, st := range incoming {
		kept := make([]*indexes.VariantStats, 0, len(current)+1)
		present := false
		for _, old := range current {
			if old.StudyId == st.StudyId && old.CohortId == st.CohortId {
				present = true
			} else {
				kept = append(kept, old)
			}
		}
		if present && !overwrite {
			continue
		}
		current = append(kept, st)
		changed = true
	}
	return current, changed
}

func (a *VariantAdaptor) UpdateStats(ctx context.Context, stats []*indexes.VariantStatsWrapper, sc *metadata.StudyConfiguration, overwrite bool) (dtos.WriteResult, error) {
	start := time.Now()
	if err := a.checkOpen(); err != nil {
		return dtos.WriteResult{}, err
	}

	keys := make([]string, len(stats))
	incoming := make([][]*indexes.VariantStats, len(stats))
	for i, w := range stats {
		keys[i] = w.Key()
		for _, st := range w.Stats {
			copied := *st
			copied.StudyId = sc.Id
			incoming[i] = append(incoming[i], &copied)
		}
	}

	next := make([]*indexes.Variant, len(keys))
	outcomes, failed, err := a.updateRows(keys, func(txn *badger.Txn, i int, current *indexes.Variant) (*indexes.Variant, string, error) {
		next[i] = nil
		if current == nil {
			return nil, OUTCOME_MISSING, nil
		}
		var changed bool
		current.Stats, changed = replaceStats(current.Stats, incoming[i], overwrite)
		if !changed {
			return nil, OUTCOME_NOOP, nil
		}
		next[i] = current
		return current, OUTCOME_UPDATED, nil
	})
	if err != nil {
		return dtos.WriteResult{}, errors.Wrapf(errors.BackendUnavailable(BACKEND, err), "updating stats at %s", failed)
	}

	err = a.inTx(ctx, func(tx *sql.Tx) error {
		for i, v := range next {
			if v == nil {
				continue
			}
			if err := a.indexStats(ctx, tx, keys[i], v.Stats); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return dtos.WriteResult{}, errors.BackendUnavailable(BACKEND, err)
	}
	return writeResult(outcomes, start), nil
}

func (a *VariantAdaptor) DeleteStats(ctx context.Context, studyId int, cohortId int) (dtos.WriteResult, error) {
	start := time.Now()
	if err := a.checkOpen(); err != nil {
		return dtos.WriteResult{}, err
	}

	keys, err := a.queryKeys(ctx, "SELECT vkey FROM stats WHERE sid = ? AND cid = ? ORDER BY vkey", studyId, cohortId)
	if err != nil {
		return dtos.WriteResult{}, errors.BackendUnavailable(BACKEND, err)
	}

	outcomes, failed, err := a.updateRows(keys, func(txn *badger.Txn, i int, current *indexes.Variant) (*indexes.Variant, string, error) {
		if current == nil {
			return nil, OUTCOME_MISSING, nil
		}
		kept := make([]*indexes.VariantStats, 0, len(current.Stats))
		for _, st := range current.Stats {
			if st.StudyId != studyId || st.CohortId != cohortId {
				kept = append(kept, st)
			}
		}
		current.Stats = kept
		return current, OUTCOME_UPDATED, nil
	})
	if err != nil {
		return dtos.WriteResult{}, errors.Wrapf(errors.BackendUnavailable(BACKEND, err), "deleting stats at %s", failed)
	}

	err = a.inTx(ctx, func(tx *sql.Tx) error {
		for _, table := range []string{"stats", "stats_gtc"} {
			if err := a.exec(ctx, tx, "DELETE FROM "+table+" WHERE sid = ? AND cid = ?", studyId, cohortId); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return dtos.WriteResult{}, errors.BackendUnavailable(BACKEND, err)
	}
	return writeResult(outcomes, start), nil
}

// UpdateAnnotations replaces the current annotation of each variant, and
// its index rows, or stores it as the named snapshot next to the row.
// Variants that are not stored are skipped.
func (a *VariantAdaptor) UpdateAnnotations(ctx context.Context, annotations []*indexes.VariantAnnotation, name string) (dtos.WriteResult, error) {
	start := time.Now()
	if err := a.checkOpen(); err != nil {
		return dtos.WriteResult{}, err
	}
	current := name == "" || name == indexes.CurrentAnnotation

	keys := make([]string, len(annotations))
	for i, ann := range annotations {
		keys[i] = ann.Key()
	}

	outcomes, failed, err := a.updateRows(keys, func(txn *badger.Txn, i int, row *indexes.Variant) (*indexes.Variant, string, error) {
		if row == nil {
			return nil, OUTCOME_MISSING, nil
		}
		if !current {
			return nil, OUTCOME_UPDATED, writeJSON(txn, snapshotKey(keys[i], name), annotations[i])
		}
		row.Annotation = annotations[i]
		row.AnnotationIndex = annotations[i].Index()
		return row, OUTCOME_UPDATED, nil
	})
	if err != nil {
		return dtos.WriteResult{}, errors.Wrapf(errors.BackendUnavailable(BACKEND, err), "updating annotation at %s", failed)
	}

	if current {
		err = a.inTx(ctx, func(tx *sql.Tx) error {
			for i, o := range outcomes {
				if o != OUTCOME_UPDATED {
					continue
				}
				if err := a.indexAnnotation(ctx, tx, keys[i], annotations[i].Index()); err != nil {
					return err
				}
			}
			return nil
		})
		if err != nil {
			return dtos.WriteResult{}, errors.BackendUnavailable(BACKEND, err)
		}
	}
	return writeResult(outcomes, start), nil
}

func (a *VariantAdaptor) UpdateCustomAnnotations(ctx context.Context, q *query.Query, name string, attrs map[string]string) (dtos.WriteResult, error) {
	return dtos.WriteResult{}, errors.UnsupportedOperation(BACKEND, "custom annotations")
}

// DeleteStudy removes the study entries and stats of a study. With
// purge, variants left without any study are deleted together with
// their snapshots.
func (a *VariantAdaptor) DeleteStudy(ctx context.Context, studyId int, purge bool) (dtos.WriteResult, error) {
	start := time.Now()
	if err := a.checkOpen(); err != nil {
		return dtos.WriteResult{}, err
	}

	keys, err := a.queryKeys(ctx, `SELECT vkey FROM study_entries WHERE sid = ?
		UNION SELECT vkey FROM stats WHERE sid = ? ORDER BY vkey`, studyId, studyId)
	if err != nil {
		return dtos.WriteResult{}, errors.BackendUnavailable(BACKEND, err)
	}

	outcomes, failed, err := a.updateRows(keys, func(txn *badger.Txn, i int, current *indexes.Variant) (*indexes.Variant, string, error) {
		if current == nil {
			return nil, OUTCOME_MISSING, nil
		}
		studies := make([]*indexes.StudyEntry, 0, len(current.Studies))
		for _, s := range current.Studies {
			if s.StudyId != studyId {
				studies = append(studies, s)
			}
		}
		stats := make([]*indexes.VariantStats, 0, len(current.Stats))
		for _, st := range current.Stats {
			if st.StudyId != studyId {
				stats = append(stats, st)
			}
		}
		current.Studies, current.Stats = studies, stats

		if purge && len(studies) == 0 {
			if err := deleteSnapshots(txn, keys[i]); err != nil {
				return nil, "", err
			}
			return nil, OUTCOME_DELETED, nil
		}
		return current, OUTCOME_UPDATED, nil
	})
	if err != nil {
		return dtos.WriteResult{}, errors.Wrapf(errors.BackendUnavailable(BACKEND, err), "deleting study at %s", failed)
	}

	err = a.inTx(ctx, func(tx *sql.Tx) error {
		if err := a.unindexStudy(ctx, tx, studyId); err != nil {
			return err
		}
		for i, o := range outcomes {
			if o != OUTCOME_DELETED {
				continue
			}
			if err := a.unindexVariant(ctx, tx, keys[i]); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return dtos.WriteResult{}, errors.BackendUnavailable(BACKEND, err)
	}

	result := writeResult(outcomes, start)
	a.logger.Info("study deleted", "study", studyId, "purge", purge,
		"updated", result.UpdatedVariants, "deleted", result.DeletedVariants)
	return result, nil
}

func deleteSnapshots(txn *badger.Txn, key string) error {
	prefix := snapshotPrefix(key)
	opts := badger.DefaultIteratorOptions
	opts.PrefetchValues = false
	opts.Prefix = prefix

	it := txn.NewIterator(opts)
	stale := [][]byte{}
	for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
		stale = append(stale, it.Item().KeyCopy(nil))
	}
	it.Close()

	for _, k := range stale {
		if err := txn.Delete(k); err != nil {
			return err
		}
	}
	return nil
}
