package sanitation

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"gohan/variantstore/metadata"
	"gohan/variantstore/models/indexes"
	"gohan/variantstore/models/query"
	"gohan/variantstore/repositories/widecolumn"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const catalog = `
studies:
  - id: 1
    name: 1KG
    samples: {NA001: 1}
    files: {a.vcf: 1}
  - id: 2
    name: GNOMAD
    samples: {HG001: 1}
    files: {g.vcf: 1}
`

func TestSetDifference(t *testing.T) {
	assert.Equal(t, []int{3}, setDifference([]int{1, 2}, []int{2, 3}))
	assert.Nil(t, setDifference([]int{1, 2}, []int{1}))
}

func TestSanitize(t *testing.T) {
	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	m, err := metadata.ParseCatalog([]byte(catalog))
	require.NoError(t, err)
	a, err := widecolumn.NewVariantAdaptor(m, m, widecolumn.Settings{
		InMemory: true,
		SqlDsn:   "file:" + filepath.Join(t.TempDir(), "index.db"),
		Logger:   logger,
	})
	require.NoError(t, err)
	defer a.Close()

	load := func(studyId int, pos int) {
		sc, err := m.ResolveStudy(ctx, map[int]string{1: "1KG", 2: "GNOMAD"}[studyId])
		require.NoError(t, err)
		_, err = a.Insert(ctx, []*indexes.Variant{{
			Chromosome: "1", Start: pos, End: pos, Reference: "A", Alternate: "T", Type: "SNV",
			Studies: []*indexes.StudyEntry{{
				StudyId:   studyId,
				Files:     []*indexes.FileEntry{{FileId: 1}},
				Genotypes: map[string][]int{"0/1": {1}},
			}},
		}}, 1, sc)
		require.NoError(t, err)
	}
	load(1, 100)
	load(2, 100)
	load(2, 200)

	ss := NewSanitationService(a, m, logger)

	_, orphans, err := ss.Sanitize(ctx)
	require.NoError(t, err)
	assert.Empty(t, orphans)

	m.RemoveStudy(2)
	result, orphans, err := ss.Sanitize(ctx)
	require.NoError(t, err)
	assert.Equal(t, []int{2}, orphans)
	assert.Equal(t, int64(1), result.DeletedVariants)
	assert.Equal(t, int64(1), result.UpdatedVariants)

	n, err := a.Count(ctx, query.New())
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	ids, err := a.StudyIds(ctx)
	require.NoError(t, err)
	assert.Equal(t, []int{1}, ids)
}

func TestInit(t *testing.T) {
	m := metadata.NewInMemoryManager()
	ss := NewSanitationService(nil, m, nil)
	require.NoError(t, ss.Init())
	assert.True(t, ss.Initialized)
	require.NoError(t, ss.Init())
	ss.Stop()
	assert.False(t, ss.Initialized)
}
