package elasticsearch

import (
	"context"
	"testing"

	"gohan/variantstore/errors"
	"gohan/variantstore/metadata"
	"gohan/variantstore/models/constants/genotype"
	variantType "gohan/variantstore/models/constants/variant-type"
	"gohan/variantstore/models/indexes"
	"gohan/variantstore/repositories"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func record(chrom string, pos int, ref string, alt string, studyId int, fileId int, gts map[string][]int) *indexes.Variant {
	return &indexes.Variant{
		Chromosome: chrom,
		Start:      pos,
		End:        pos + len(ref) - 1,
		Reference:  ref,
		Alternate:  alt,
		Type:       variantType.SNV,
		Studies: []*indexes.StudyEntry{{
			StudyId:   studyId,
			Files:     []*indexes.FileEntry{{FileId: fileId, Filter: "PASS"}},
			Genotypes: gts,
		}},
	}
}

func TestInsert(t *testing.T) {
	ctx := context.Background()
	m := testManager(t, catalogYaml)
	sc, err := m.ResolveStudy(ctx, "1KG")
	require.NoError(t, err)

	t.Run("new variants, skipped records and replays", func(t *testing.T) {
		fake := newFakeES()
		a := newTestAdaptor(t, fake, m)

		noVariation := record("1", 50, "A", ".", 1, 2, nil)
		noVariation.Type = variantType.NO_VARIATION
		otherStudy := record("1", 60, "A", "C", 9, 2, nil)
		batch := []*indexes.Variant{
			record("chr1", 100, "A", "T", 1, 2, map[string][]int{"0/1": {3}}),
			noVariation,
			otherStudy,
		}

		result, err := a.Insert(ctx, batch, 2, sc)
		require.NoError(t, err)
		assert.Equal(t, int64(1), result.NewVariants)
		assert.Equal(t, int64(2), result.SkippedVariants)

		key := indexes.BuildKey("1", 100, "A", "T")
		doc := fake.docs[key]
		require.NotNil(t, doc)
		assert.Equal(t, "1", doc.Chromosome)
		entry := doc.Study(1)
		require.NotNil(t, entry)
		assert.Equal(t, []int{3}, entry.Genotypes["0/1"])
		// samples of the file loaded before are unknown on this variant
		assert.Equal(t, []int{1, 2}, entry.Genotypes[genotype.Unknown])

		replay, err := a.Insert(ctx, batch[:1], 2, sc)
		require.NoError(t, err)
		assert.Equal(t, int64(0), replay.NewVariants)
		assert.Equal(t, int64(0), replay.UpdatedVariants)
		assert.Equal(t, int64(1), replay.NonInsertedVariants)
		assert.Len(t, fake.docs[key].Study(1).Files, 1)
	})

	t.Run("second file merges into the study entry", func(t *testing.T) {
		fake := newFakeES()
		a := newTestAdaptor(t, fake, m)

		_, err := a.Insert(ctx, []*indexes.Variant{record("1", 100, "A", "T", 1, 2, map[string][]int{"0/1": {3}})}, 2, sc)
		require.NoError(t, err)

		next := sc.Clone()
		next.IndexedFiles = append(next.IndexedFiles, 2)
		next.SamplesInFiles[3] = []int{4}
		result, err := a.Insert(ctx, []*indexes.Variant{record("1", 100, "A", "T", 1, 3, map[string][]int{"1/1": {4}})}, 3, next)
		require.NoError(t, err)
		assert.Equal(t, int64(1), result.UpdatedVariants)
		assert.Equal(t, int64(0), result.NonInsertedVariants)

		entry := fake.docs[indexes.BuildKey("1", 100, "A", "T")].Study(1)
		assert.Len(t, entry.Files, 2)
		assert.Equal(t, []int{4}, entry.Genotypes["1/1"])
		assert.Equal(t, []int{3}, entry.Genotypes["0/1"])
		assert.Equal(t, []int{1, 2}, entry.Genotypes[genotype.Unknown])
	})

	t.Run("excluded genotypes are not stored", func(t *testing.T) {
		fake := newFakeES()
		a := newTestAdaptor(t, fake, m)

		excluded := sc.Clone()
		excluded.ExcludeGenotypes = true
		_, err := a.Insert(ctx, []*indexes.Variant{record("1", 100, "A", "T", 1, 2, map[string][]int{"0/1": {3}})}, 2, excluded)
		require.NoError(t, err)
		assert.Empty(t, fake.docs[indexes.BuildKey("1", 100, "A", "T")].Study(1).Genotypes)
	})

	t.Run("failed item aborts the batch", func(t *testing.T) {
		fake := newFakeES()
		a := newTestAdaptor(t, fake, m)
		key := indexes.BuildKey("1", 100, "A", "T")
		fake.failing[key] = true

		_, err := a.Insert(ctx, []*indexes.Variant{record("1", 100, "A", "T", 1, 2, map[string][]int{"0/1": {3}})}, 2, sc)
		require.Error(t, err)
		assert.True(t, errors.Is(err, errors.ErrBatchAborted))
		assert.Contains(t, err.Error(), key)
	})

	t.Run("closed adaptor", func(t *testing.T) {
		a := newTestAdaptor(t, newFakeES(), m)
		require.NoError(t, a.Close())
		_, err := a.Insert(ctx, nil, 2, sc)
		assert.True(t, errors.Is(err, errors.ErrBackendUnavailable))
	})
}

func TestFillGaps(t *testing.T) {
	ctx := context.Background()
	m := testManager(t, catalogYaml)
	sc, err := m.ResolveStudy(ctx, "1KG")
	require.NoError(t, err)

	t.Run("needed", func(t *testing.T) {
		assert.True(t, repositories.FillGapsNeeded([]int{3}, sc))
		assert.False(t, repositories.FillGapsNeeded([]int{1, 2}, sc))

		unknown := sc.Clone()
		unknown.DefaultGenotypes = []string{genotype.Unknown}
		assert.False(t, repositories.FillGapsNeeded([]int{3}, unknown))

		first := &metadata.StudyConfiguration{Id: 5}
		assert.False(t, repositories.FillGapsNeeded([]int{1}, first))
	})

	t.Run("updates the variants the file did not call", func(t *testing.T) {
		fake := newFakeES()
		fake.respond("/_update_by_query", `{"updated": 7, "noops": 2}`)
		a := newTestAdaptor(t, fake, m)

		result, err := a.FillGaps(ctx, 2, []string{"chr1"}, []int{3}, sc)
		require.NoError(t, err)
		assert.Equal(t, int64(7), result.UpdatedVariants)
		assert.Equal(t, 1, fake.count("/_refresh"))

		bodies := fake.bodiesOf("/_update_by_query")
		require.Len(t, bodies, 1)
		assert.Equal(t, OP_FILL_GAPS, bodies[0].Path("script.params.op").Data())
		assert.Equal(t, genotype.Unknown, bodies[0].Path("script.params.gt").Data())
		assert.Equal(t, []interface{}{float64(3)}, bodies[0].Path("script.params.samples").Data())
		assert.Contains(t, bodies[0].String(), `"chromosome":["1"]`)
	})

	t.Run("skipped for the first file", func(t *testing.T) {
		fake := newFakeES()
		a := newTestAdaptor(t, fake, m)
		result, err := a.FillGaps(ctx, 1, nil, []int{1, 2}, sc)
		require.NoError(t, err)
		assert.Equal(t, int64(0), result.UpdatedVariants)
		assert.Equal(t, 0, fake.count("/_update_by_query"))
	})
}
