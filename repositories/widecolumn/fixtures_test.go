package widecolumn

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"gohan/variantstore/metadata"
	variantType "gohan/variantstore/models/constants/variant-type"
	"gohan/variantstore/models/indexes"

	"github.com/ahmetb/go-linq"
	"github.com/stretchr/testify/require"
)

const catalogYaml = `
studies:
  - id: 1
    name: 1KG
    indexedFiles: [1]
    samplesInFiles:
      1: [1, 2]
      2: [3]
    samples: {NA001: 1, NA002: 2, NA003: 3}
    files: {a.vcf: 1, b.vcf: 2}
    cohorts: {ALL: 10}
    defaultGenotypes: ["0/0"]
geneSets:
  go:
    "GO:0006281": [BRCA2, ATM]
`

const twoStudiesYaml = `
studies:
  - id: 1
    name: 1KG
    samples: {NA001: 1}
    files: {a.vcf: 1}
    cohorts: {ALL: 10}
  - id: 2
    name: GNOMAD
    samples: {HG001: 1}
    cohorts: {ALL: 20}
`

func testManager(t *testing.T, raw string) *metadata.InMemoryManager {
	t.Helper()
	m, err := metadata.ParseCatalog([]byte(raw))
	require.NoError(t, err)
	return m
}

func silentLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newTestAdaptor runs on an in memory row store and a sqlite index in a
// temporary directory
func newTestAdaptor(t *testing.T, manager *metadata.InMemoryManager) *VariantAdaptor {
	t.Helper()
	a, err := NewVariantAdaptor(manager, manager, Settings{
		InMemory:        true,
		SqlDsn:          "file:" + filepath.Join(t.TempDir(), "index.db"),
		MaxResultWindow: 100,
		Logger:          silentLogger(),
	})
	require.NoError(t, err)
	t.Cleanup(func() { a.Close() })
	return a
}

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

// loadFixture stores four variants of file 2, sample NA003
func loadFixture(t *testing.T, a *VariantAdaptor, m *metadata.InMemoryManager) *metadata.StudyConfiguration {
	t.Helper()
	ctx := context.Background()
	sc, err := m.ResolveStudy(ctx, "1KG")
	require.NoError(t, err)

	batch := []*indexes.Variant{
		record("1", 100, "A", "T", 1, 2, map[string][]int{"0/1": {3}}),
		record("1", 200, "C", "G", 1, 2, map[string][]int{"1/1": {3}}),
		record("1", 250, "G", "A", 1, 2, map[string][]int{"0/0": {3}}),
		record("2", 100, "T", "C", 1, 2, map[string][]int{"0|1": {3}}),
	}
	result, err := a.Insert(ctx, batch, 2, sc)
	require.NoError(t, err)
	require.Equal(t, int64(4), result.NewVariants)
	return sc
}

func keysOf(variants []*indexes.Variant) []string {
	keys := []string{}
	linq.From(variants).SelectT(func(v *indexes.Variant) string { return v.Id }).ToSlice(&keys)
	return keys
}
