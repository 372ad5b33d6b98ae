package widecolumn

import (
	"context"
	"database/sql"
	"strconv"
	"strings"

	"gohan/variantstore/errors"
	"gohan/variantstore/utils"
)

// The SQL index mirrors the query facing part of every stored row. The
// rows themselves live in badger; SQL only answers which keys match.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS variants (
		vkey TEXT PRIMARY KEY,
		chromosome TEXT NOT NULL,
		start_pos BIGINT NOT NULL,
		end_pos BIGINT NOT NULL,
		type TEXT NOT NULL,
		annotated INTEGER NOT NULL DEFAULT 0
	)`,
	`CREATE INDEX IF NOT EXISTS variants_chromosome ON variants (chromosome)`,

	`CREATE TABLE IF NOT EXISTS variant_names (
		vkey TEXT NOT NULL,
		name TEXT NOT NULL,
		PRIMARY KEY (vkey, name)
	)`,
	`CREATE INDEX IF NOT EXISTS variant_names_name ON variant_names (name)`,

	`CREATE TABLE IF NOT EXISTS annotation_terms (
		vkey TEXT NOT NULL,
		field TEXT NOT NULL,
		value TEXT NOT NULL,
		PRIMARY KEY (vkey, field, value)
	)`,
	`CREATE INDEX IF NOT EXISTS annotation_terms_value ON annotation_terms (field, value)`,

	`CREATE TABLE IF NOT EXISTS popfreq (
		vkey TEXT NOT NULL,
		study TEXT NOT NULL,
		population TEXT NOT NULL,
		ref_freq DOUBLE PRECISION NOT NULL,
		alt_freq DOUBLE PRECISION NOT NULL,
		PRIMARY KEY (vkey, study, population)
	)`,

	`CREATE TABLE IF NOT EXISTS scores (
		vkey TEXT NOT NULL,
		source TEXT NOT NULL,
		score DOUBLE PRECISION NOT NULL,
		description TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE INDEX IF NOT EXISTS scores_vkey ON scores (vkey, source)`,

	`CREATE TABLE IF NOT EXISTS study_entries (
		vkey TEXT NOT NULL,
		sid INTEGER NOT NULL,
		PRIMARY KEY (vkey, sid)
	)`,
	`CREATE INDEX IF NOT EXISTS study_entries_sid ON study_entries (sid)`,

	`CREATE TABLE IF NOT EXISTS study_files (
		vkey TEXT NOT NULL,
		sid INTEGER NOT NULL,
		fid INTEGER NOT NULL,
		file_filter TEXT NOT NULL DEFAULT '',
		PRIMARY KEY (vkey, sid, fid)
	)`,

	`CREATE TABLE IF NOT EXISTS sample_genotypes (
		vkey TEXT NOT NULL,
		sid INTEGER NOT NULL,
		sample INTEGER NOT NULL,
		gt TEXT NOT NULL,
		PRIMARY KEY (vkey, sid, sample)
	)`,
	`CREATE INDEX IF NOT EXISTS sample_genotypes_sample ON sample_genotypes (sid, sample, gt)`,

	`CREATE TABLE IF NOT EXISTS stats (
		vkey TEXT NOT NULL,
		sid INTEGER NOT NULL,
		cid INTEGER NOT NULL,
		maf DOUBLE PRECISION NOT NULL,
		mgf DOUBLE PRECISION NOT NULL,
		missing_alleles INTEGER NOT NULL,
		missing_genotypes INTEGER NOT NULL,
		PRIMARY KEY (vkey, sid, cid)
	)`,
	`CREATE INDEX IF NOT EXISTS stats_cohort ON stats (sid, cid)`,

	`CREATE TABLE IF NOT EXISTS stats_gtc (
		vkey TEXT NOT NULL,
		sid INTEGER NOT NULL,
		cid INTEGER NOT NULL,
		gt TEXT NOT NULL,
		gt_count INTEGER NOT NULL,
		PRIMARY KEY (vkey, sid, cid, gt)
	)`,
}

// tables holding one or more rows per variant key
var keyedTables = []string{
	"variants", "variant_names", "annotation_terms", "popfreq", "scores",
	"study_entries", "study_files", "sample_genotypes", "stats", "stats_gtc",
}

// tables holding one or more rows per (variant key, study)
var studyTables = []string{"study_entries", "study_files", "sample_genotypes", "stats", "stats_gtc"}

func migrate(ctx context.Context, db *sql.DB) error {
	for i, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return errors.Wrapf(err, "creating schema (statement %d)", i)
		}
	}
	return nil
}

// rebind rewrites '?' placeholders into the '$n' form postgres expects
func rebind(driver string, query string) string {
	if driver != utils.SQL_DRIVER_POSTGRES {
		return query
	}
	var (
		b strings.Builder
		n int
	)
	b.Grow(len(query) + 8)
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// placeholders returns "?, ?, ..." for n values
func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}
