package services

import (
	"bytes"
	"compress/gzip"
	"io"
	"strings"
	"testing"

	variantType "gohan/variantstore/models/constants/variant-type"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func vcfText(samples []string, rows ...string) string {
	var b strings.Builder
	b.WriteString("##fileformat=VCFv4.2\n")
	b.WriteString("##INFO=<ID=DP,Number=1,Type=Integer,Description=\"Depth\">\n")
	header := []string{"#CHROM", "POS", "ID", "REF", "ALT", "QUAL", "FILTER", "INFO", "FORMAT"}
	b.WriteString(strings.Join(append(header, samples...), "\t") + "\n")
	for _, r := range rows {
		b.WriteString(strings.ReplaceAll(r, " ", "\t") + "\n")
	}
	return b.String()
}

func TestVcfReader(t *testing.T) {
	text := vcfText([]string{"S1", "S2"},
		"1 100 rs1;rs1b A T 50 PASS DP=10;SOMATIC GT:DP 0/1:5 0/0:3",
		"",
		"chr1 200 . C G,T . PASS . GT 1/2 ./.",
	)

	t.Run("plain", func(t *testing.T) {
		r, err := NewVcfReader(strings.NewReader(text))
		require.NoError(t, err)
		defer r.Close()
		assert.Equal(t, []string{"S1", "S2"}, r.Samples)

		rec, err := r.Next()
		require.NoError(t, err)
		assert.Equal(t, "1", rec.Chromosome)
		assert.Equal(t, 100, rec.Pos)
		assert.Equal(t, []string{"rs1", "rs1b"}, rec.Ids)
		assert.Equal(t, 50.0, rec.Qual)
		assert.Equal(t, map[string]string{"DP": "10", "SOMATIC": "true"}, rec.Info)
		assert.Equal(t, []string{"0/1", "0/0"}, rec.Genotypes)

		rec, err = r.Next()
		require.NoError(t, err)
		assert.Nil(t, rec.Ids)
		assert.Equal(t, []string{"G", "T"}, rec.Alts)
		assert.Empty(t, rec.Info)

		_, err = r.Next()
		assert.Equal(t, io.EOF, err)
	})

	t.Run("gzip", func(t *testing.T) {
		var buf bytes.Buffer
		w := gzip.NewWriter(&buf)
		_, err := w.Write([]byte(text))
		require.NoError(t, err)
		require.NoError(t, w.Close())

		r, err := NewVcfReader(&buf)
		require.NoError(t, err)
		defer r.Close()
		rec, err := r.Next()
		require.NoError(t, err)
		assert.Equal(t, 100, rec.Pos)
	})

	t.Run("missing header", func(t *testing.T) {
		_, err := NewVcfReader(strings.NewReader("1\t100\t.\tA\tT\t.\tPASS\t.\n"))
		assert.Error(t, err)
	})

	t.Run("bad position", func(t *testing.T) {
		r, err := NewVcfReader(strings.NewReader(vcfText(nil, "1 x . A T . PASS .")))
		require.NoError(t, err)
		_, err = r.Next()
		assert.Error(t, err)
	})
}

func TestClassify(t *testing.T) {
	cases := []struct {
		ref, alt string
		expected string
	}{
		{"A", "T", string(variantType.SNV)},
		{"AC", "GT", string(variantType.MNV)},
		{"A", "AT", string(variantType.INDEL)},
		{"A", "<DUP>", string(variantType.DUPLICATION)},
		{"A", "<DEL:ME>", string(variantType.SYMBOLIC)},
		{"A", "A[2:300[", string(variantType.BREAKEND)},
		{"A", "<NON_REF>", string(variantType.NO_VARIATION)},
	}
	for _, c := range cases {
		t.Run(c.ref+">"+c.alt, func(t *testing.T) {
			assert.Equal(t, c.expected, string(classify(c.ref, c.alt)))
		})
	}
}

func TestDecompose(t *testing.T) {
	assert.Equal(t, "0/1", decompose("0/1", 1))
	assert.Equal(t, "1/2", decompose("1/2", 1))
	assert.Equal(t, "2/1", decompose("1/2", 2))
	assert.Equal(t, "0|2", decompose("0|1", 2))
	assert.Equal(t, "?/?", decompose("./.", 1))
	assert.Equal(t, "?/?", decompose("", 1))
}

func TestRecordVariants(t *testing.T) {
	r, err := NewVcfReader(strings.NewReader(vcfText([]string{"S1", "S2", "S3"},
		"chr1 200 . C G,T 9 PASS DP=3 GT 1/2 0/0 0|1",
		"1 300 . A <DEL> . PASS END=450 GT 0/1 . 0/0",
		"GL000192.1 10 . A C . PASS . GT 0/1 0/1 0/1",
	)))
	require.NoError(t, err)
	defer r.Close()
	defaults := []string{"0/0", "0|0"}

	rec, err := r.Next()
	require.NoError(t, err)
	variants, ok := rec.Variants(1, 2, []int{10, 11, 12}, defaults)
	require.True(t, ok)
	require.Len(t, variants, 2)

	g := variants[0]
	assert.Equal(t, "1", g.Chromosome)
	assert.Equal(t, 200, g.End)
	assert.Equal(t, "G", g.Alternate)
	entry := g.Study(1)
	require.NotNil(t, entry)
	assert.Equal(t, map[string][]int{"1/2": {10}, "0|1": {12}}, entry.Genotypes)
	assert.Equal(t, 2, entry.Files[0].FileId)
	assert.Equal(t, map[string]string{"DP": "3"}, entry.Files[0].Attributes)

	tt := variants[1]
	assert.Equal(t, "T", tt.Alternate)
	assert.Equal(t, map[string][]int{"2/1": {10}, "0|2": {12}}, tt.Study(1).Genotypes)

	rec, err = r.Next()
	require.NoError(t, err)
	variants, ok = rec.Variants(1, 2, []int{10, 11, 12}, defaults)
	require.True(t, ok)
	assert.Equal(t, 450, variants[0].End)
	assert.Equal(t, map[string][]int{"0/1": {10}, "?/?": {11}}, variants[0].Study(1).Genotypes)

	rec, err = r.Next()
	require.NoError(t, err)
	_, ok = rec.Variants(1, 2, []int{10, 11, 12}, defaults)
	assert.False(t, ok)
}
