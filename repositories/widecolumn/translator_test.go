package widecolumn

import (
	"context"
	"testing"

	"gohan/variantstore/errors"
	"gohan/variantstore/metadata"
	"gohan/variantstore/models/indexes"
	"gohan/variantstore/models/query"
	"gohan/variantstore/repositories"
	"gohan/variantstore/utils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func translateParams(t *testing.T, m *metadata.InMemoryManager, params ...string) (*Filter, error) {
	t.Helper()
	q := query.New()
	for i := 0; i+1 < len(params); i += 2 {
		q.Add(params[i], params[i+1])
	}
	resolved, err := repositories.Resolve(context.Background(), q, m, m)
	if err != nil {
		return nil, err
	}
	return Translate(resolved)
}

func TestTranslate(t *testing.T) {
	m := testManager(t, catalogYaml)

	t.Run("empty query matches everything", func(t *testing.T) {
		f, err := translateParams(t, m)
		require.NoError(t, err)
		assert.Equal(t, "1 = 1", f.Clause)
		assert.Empty(t, f.Args)
	})

	t.Run("region becomes a key range", func(t *testing.T) {
		f, err := translateParams(t, m, "region", "chr1:100-200")
		require.NoError(t, err)
		assert.Equal(t, "(v.vkey >= ? AND v.vkey < ?)", f.Clause)
		assert.Equal(t, []interface{}{indexes.BuildRegionKey("1", 100), indexes.BuildRegionKey("1", 201)}, f.Args)
	})

	t.Run("location terms are OR'ed", func(t *testing.T) {
		f, err := translateParams(t, m, "region", "1:100-200", "id", "1:150:A:T,rs123")
		require.NoError(t, err)
		assert.Contains(t, f.Clause, " OR ")
		assert.Contains(t, f.Clause, "v.vkey IN (?)")
		assert.Contains(t, f.Clause, "n.name IN (?)")
		assert.Contains(t, f.Args, indexes.BuildKey("1", 150, "A", "T"))
		assert.Contains(t, f.Args, "rs123")
	})

	t.Run("gene with consequence type uses compound terms", func(t *testing.T) {
		f, err := translateParams(t, m, "gene", "BRCA2", "consequence-type", "missense_variant")
		require.NoError(t, err)
		assert.Contains(t, f.Args, FIELD_GENE_SO)
		assert.Contains(t, f.Args, "BRCA2_1583")
		assert.NotContains(t, f.Args, FIELD_SO)
	})

	t.Run("types include their sub types", func(t *testing.T) {
		f, err := translateParams(t, m, "type", "INDEL")
		require.NoError(t, err)
		assert.Contains(t, f.Clause, "v.type IN (")
		assert.Contains(t, f.Args, "INDEL")
		assert.Greater(t, len(f.Args), 1)
	})

	t.Run("default genotype means no bucket outside the default class", func(t *testing.T) {
		f, err := translateParams(t, m, "genotype", "NA001:0/0")
		require.NoError(t, err)
		assert.Contains(t, f.Clause, "NOT (EXISTS (SELECT 1 FROM sample_genotypes g")
		assert.Contains(t, f.Clause, "NOT (g.gt IN (?, ?))")
		assert.Contains(t, f.Args, "0/0")
		assert.Contains(t, f.Args, "0|0")
		assert.NotContains(t, f.Args, "0/1")
	})

	t.Run("concrete genotype is bucket containment", func(t *testing.T) {
		f, err := translateParams(t, m, "genotype", "NA001:0/1")
		require.NoError(t, err)
		assert.Contains(t, f.Clause, "se.sid = ?")
		assert.Contains(t, f.Clause, "g.gt IN (?)")
		assert.NotContains(t, f.Clause, "NOT (")
	})

	t.Run("negated genotype", func(t *testing.T) {
		f, err := translateParams(t, m, "genotype", "NA001:!0/1")
		require.NoError(t, err)
		assert.Contains(t, f.Clause, "NOT (EXISTS (SELECT 1 FROM sample_genotypes g")
	})

	t.Run("rare population frequency matches missing populations", func(t *testing.T) {
		rare, err := translateParams(t, m, "population-alternate-frequency", "1kG:ALL<0.01")
		require.NoError(t, err)
		assert.Contains(t, rare.Clause, "NOT (EXISTS (SELECT 1 FROM popfreq p")

		common, err := translateParams(t, m, "population-alternate-frequency", "1kG:ALL>0.1")
		require.NoError(t, err)
		assert.NotContains(t, common.Clause, "NOT (")

		for _, p := range []string{"population-reference-frequency", "population-minor-allele-frequency"} {
			f, err := translateParams(t, m, p, "1kG:ALL<=0.5")
			require.NoError(t, err)
			assert.Contains(t, f.Clause, "NOT (EXISTS (SELECT 1 FROM popfreq p", p)

			f, err = translateParams(t, m, p, "1kG:ALL>=0")
			require.NoError(t, err)
			assert.NotContains(t, f.Clause, "NOT (", p)
		}
	})

	t.Run("stats resolve against the default study", func(t *testing.T) {
		f, err := translateParams(t, m, "stats-maf", "ALL<0.1")
		require.NoError(t, err)
		assert.Contains(t, f.Clause, "s.maf < ?")
		assert.Equal(t, []interface{}{1, 10, 0.1}, f.Args)

		_, err = translateParams(t, m, "stats-maf", "AFR<0.1")
		assert.True(t, errors.Is(err, errors.ErrUnresolvedReference))
	})

	t.Run("custom annotations are not indexed", func(t *testing.T) {
		_, err := translateParams(t, m, "custom-annotation", "curation.tier<=2")
		assert.True(t, errors.Is(err, errors.ErrUnsupportedOperation))
	})
}

func TestTranslateStudies(t *testing.T) {
	m := testManager(t, twoStudiesYaml)

	t.Run("stats without a study are malformed when no study is the default", func(t *testing.T) {
		_, err := translateParams(t, m, "stats-maf", "ALL<0.1")
		assert.True(t, errors.Is(err, errors.ErrMalformedParameter))
	})

	t.Run("study scoped predicates share one study entry", func(t *testing.T) {
		f, err := translateParams(t, m, "studies", "1KG", "files", "a.vcf")
		require.NoError(t, err)
		assert.Equal(t, `EXISTS (SELECT 1 FROM study_entries se WHERE se.vkey = v.vkey AND (se.sid IN (?) AND `+
			`EXISTS (SELECT 1 FROM study_files f WHERE f.vkey = se.vkey AND f.sid = se.sid AND f.fid = ?)))`, f.Clause)
		assert.Equal(t, []interface{}{1, 1}, f.Args)
	})

	t.Run("studies AND list stays at the root", func(t *testing.T) {
		f, err := translateParams(t, m, "studies", "1KG;GNOMAD")
		require.NoError(t, err)
		assert.Equal(t, `(EXISTS (SELECT 1 FROM study_entries se WHERE se.vkey = v.vkey AND se.sid = ?) AND `+
			`EXISTS (SELECT 1 FROM study_entries se WHERE se.vkey = v.vkey AND se.sid = ?))`, f.Clause)
		assert.Equal(t, []interface{}{1, 2}, f.Args)
	})

	t.Run("qualified cohort", func(t *testing.T) {
		f, err := translateParams(t, m, "cohorts", "GNOMAD:ALL")
		require.NoError(t, err)
		assert.Equal(t, "EXISTS (SELECT 1 FROM stats s WHERE s.vkey = v.vkey AND s.sid = ? AND s.cid = ?)", f.Clause)
		assert.Equal(t, []interface{}{2, 20}, f.Args)
	})
}

func TestRebind(t *testing.T) {
	stmt := "SELECT vkey FROM stats WHERE sid = ? AND cid IN (?, ?)"
	assert.Equal(t, stmt, rebind(utils.SQL_DRIVER_SQLITE, stmt))
	assert.Equal(t, "SELECT vkey FROM stats WHERE sid = $1 AND cid IN ($2, $3)", rebind(utils.SQL_DRIVER_POSTGRES, stmt))
	assert.Equal(t, "?, ?, ?", placeholders(3))
	assert.Equal(t, "", placeholders(0))
}
