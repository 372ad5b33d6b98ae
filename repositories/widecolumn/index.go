package widecolumn

import (
	"context"
	"database/sql"
	"sort"
	"strconv"

	"gohan/variantstore/models/constants/genotype"
	"gohan/variantstore/models/indexes"
)

// indexRow registers the variant and its names. Existing rows are kept.
func (a *VariantAdaptor) indexRow(ctx context.Context, tx *sql.Tx, v *indexes.Variant) error {
	annotated := 0
	if v.AnnotationIndex != nil {
		annotated = 1
	}
	err := a.exec(ctx, tx, `INSERT INTO variants (vkey, chromosome, start_pos, end_pos, type, annotated)
		VALUES (?, ?, ?, ?, ?, ?) ON CONFLICT (vkey) DO NOTHING`,
		v.Id, v.Chromosome, v.Start, v.End, string(v.Type), annotated)
	if err != nil {
		return err
	}
	for _, name := range v.Names {
		err := a.exec(ctx, tx, `INSERT INTO variant_names (vkey, name) VALUES (?, ?) ON CONFLICT (vkey, name) DO NOTHING`,
			v.Id, name)
		if err != nil {
			return err
		}
	}
	return nil
}

// indexEntry upserts a study entry, its files and its samples. A sample
// recorded with a called genotype is never moved back to the unknown
// bucket, so replays and fill-gaps can't override a call.
func (a *VariantAdaptor) indexEntry(ctx context.Context, tx *sql.Tx, key string, entry *indexes.StudyEntry) error {
	err := a.exec(ctx, tx, `INSERT INTO study_entries (vkey, sid) VALUES (?, ?) ON CONFLICT (vkey, sid) DO NOTHING`,
		key, entry.StudyId)
	if err != nil {
		return err
	}
	for _, f := range entry.Files {
		err := a.exec(ctx, tx, `INSERT INTO study_files (vkey, sid, fid, file_filter) VALUES (?, ?, ?, ?)
			ON CONFLICT (vkey, sid, fid) DO NOTHING`, key, entry.StudyId, f.FileId, f.Filter)
		if err != nil {
			return err
		}
	}

	buckets := make([]string, 0, len(entry.Genotypes))
	for gt := range entry.Genotypes {
		buckets = append(buckets, gt)
	}
	sort.Strings(buckets)
	for _, gt := range buckets {
		stmt := `INSERT INTO sample_genotypes (vkey, sid, sample, gt) VALUES (?, ?, ?, ?)
			ON CONFLICT (vkey, sid, sample) DO UPDATE SET gt = excluded.gt`
		if gt == genotype.Unknown {
			stmt = `INSERT INTO sample_genotypes (vkey, sid, sample, gt) VALUES (?, ?, ?, ?)
			ON CONFLICT (vkey, sid, sample) DO NOTHING`
		}
		for _, sample := range entry.Genotypes[gt] {
			if err := a.exec(ctx, tx, stmt, key, entry.StudyId, sample, gt); err != nil {
				return err
			}
		}
	}
	return nil
}

type fieldValue struct {
	field string
	value string
}

func annotationTerms(idx *indexes.AnnotationIndex) []fieldValue {
	out := []fieldValue{}
	add := func(field string, list []string) {
		for _, v := range list {
			out = append(out, fieldValue{field, v})
		}
	}
	add(FIELD_XREFS, idx.Xrefs)
	add(FIELD_GENES, idx.Genes)
	add(FIELD_GENE_SO, idx.GeneSo)
	for _, acc := range idx.SoAccessions {
		out = append(out, fieldValue{FIELD_SO, strconv.Itoa(acc)})
	}
	add(FIELD_BIOTYPES, idx.Biotypes)
	add(FIELD_FLAGS, idx.TranscriptFlags)
	add(FIELD_TRAIT_IDS, idx.GeneTraitIds)
	add(FIELD_TRAIT_NAMES, idx.GeneTraitNames)
	add(FIELD_HPO, idx.Hpo)
	add(FIELD_DRUGS, idx.Drugs)
	add(FIELD_KEYWORDS, idx.ProteinKeywords)
	return out
}

// indexAnnotation replaces the annotation index rows of a variant
func (a *VariantAdaptor) indexAnnotation(ctx context.Context, tx *sql.Tx, key string, idx *indexes.AnnotationIndex) error {
	for _, table := range []string{"annotation_terms", "popfreq", "scores"} {
		if err := a.exec(ctx, tx, "DELETE FROM "+table+" WHERE vkey = ?", key); err != nil {
			return err
		}
	}
	if idx == nil {
		return a.exec(ctx, tx, "UPDATE variants SET annotated = 0 WHERE vkey = ?", key)
	}
	if err := a.exec(ctx, tx, "UPDATE variants SET annotated = 1 WHERE vkey = ?", key); err != nil {
		return err
	}

	for _, t := range annotationTerms(idx) {
		err := a.exec(ctx, tx, `INSERT INTO annotation_terms (vkey, field, value) VALUES (?, ?, ?)
			ON CONFLICT (vkey, field, value) DO NOTHING`, key, t.field, t.value)
		if err != nil {
			return err
		}
	}
	for _, p := range idx.PopFreqs {
		err := a.exec(ctx, tx, `INSERT INTO popfreq (vkey, study, population, ref_freq, alt_freq) VALUES (?, ?, ?, ?, ?)
			ON CONFLICT (vkey, study, population) DO UPDATE SET ref_freq = excluded.ref_freq, alt_freq = excluded.alt_freq`,
			key, p.Study, p.Population, p.RefAlleleFreq, p.AltAlleleFreq)
		if err != nil {
			return err
		}
	}
	for _, s := range idx.Scores {
		err := a.exec(ctx, tx, `INSERT INTO scores (vkey, source, score, description) VALUES (?, ?, ?, ?)`,
			key, string(s.Source), s.Score, s.Description)
		if err != nil {
			return err
		}
	}
	return nil
}

// indexStats replaces the stats rows of a variant
func (a *VariantAdaptor) indexStats(ctx context.Context, tx *sql.Tx, key string, stats []*indexes.VariantStats) error {
	for _, table := range []string{"stats", "stats_gtc"} {
		if err := a.exec(ctx, tx, "DELETE FROM "+table+" WHERE vkey = ?", key); err != nil {
			return err
		}
	}
	for _, st := range stats {
		err := a.exec(ctx, tx, `INSERT INTO stats (vkey, sid, cid, maf, mgf, missing_alleles, missing_genotypes)
			VALUES (?, ?, ?, ?, ?, ?, ?) ON CONFLICT (vkey, sid, cid) DO NOTHING`,
			key, st.StudyId, st.CohortId, st.Maf, st.Mgf, st.MissingAlleles, st.MissingGenotypes)
		if err != nil {
			return err
		}
		for gt, count := range st.GenotypeCounts {
			err := a.exec(ctx, tx, `INSERT INTO stats_gtc (vkey, sid, cid, gt, gt_count) VALUES (?, ?, ?, ?, ?)
				ON CONFLICT (vkey, sid, cid, gt) DO NOTHING`, key, st.StudyId, st.CohortId, gt, count)
			if err != nil {
				return err
			}
		}
	}
	return nil
}

// unindexStudy drops every row of a study
func (a *VariantAdaptor) unindexStudy(ctx context.Context, tx *sql.Tx, studyId int) error {
	for _, table := range studyTables {
		if err := a.exec(ctx, tx, "DELETE FROM "+table+" WHERE sid = ?", studyId); err != nil {
			return err
		}
	}
	return nil
}

// unindexVariant drops every row of a variant
func (a *VariantAdaptor) unindexVariant(ctx context.Context, tx *sql.Tx, key string) error {
	for _, table := range keyedTables {
		if err := a.exec(ctx, tx, "DELETE FROM "+table+" WHERE vkey = ?", key); err != nil {
			return err
		}
	}
	return nil
}
