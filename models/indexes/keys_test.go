package indexes

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBuildKey(t *testing.T) {
	t.Run("pure function of the coordinates", func(t *testing.T) {
		assert.Equal(t, BuildKey("1", 100, "A", "T"), BuildKey("chr1", 100, "A", "T"))
		assert.Equal(t, " 1:0000000100:A:T", BuildKey("1", 100, "A", "T"))
		assert.Equal(t, " X:0000000007:C:", BuildKey("chrx", 7, "C", ""))
		assert.NotEqual(t, BuildKey("1", 100, "A", "T"), BuildKey("1", 100, "A", "G"))
	})

	t.Run("long alleles are digested", func(t *testing.T) {
		ref := strings.Repeat("A", 40)
		alt := strings.Repeat("C", 20)
		key := BuildKey("2", 5, ref, alt)
		assert.Equal(t, key, BuildKey("2", 5, ref, alt))
		assert.NotContains(t, key, ref)
		assert.True(t, strings.HasPrefix(key, " 2:0000000005:"))
		assert.NotEqual(t, key, BuildKey("2", 5, ref, alt+"C"))
	})

	t.Run("region bounds are inclusive of both ends", func(t *testing.T) {
		lower, upper := BuildRegionKey("1", 100), BuildRegionKey("1", 201)

		tests := []struct {
			pos int
			exp bool
		}{
			{99, false}, {100, true}, {150, true}, {200, true}, {201, false}, {250, false},
		}
		for _, test := range tests {
			t.Run(fmt.Sprint(test.pos), func(t *testing.T) {
				key := BuildKey("1", test.pos, "A", "T")
				assert.Equal(t, test.exp, key >= lower && key < upper)
			})
		}

		other := BuildKey("10", 150, "A", "T")
		assert.False(t, other >= lower && other < upper)
	})
}

func TestParseVariantId(t *testing.T) {
	chrom, start, ref, alt, ok := ParseVariantId("1:100:a:T")
	assert.True(t, ok)
	assert.Equal(t, "1", chrom)
	assert.Equal(t, 100, start)
	assert.Equal(t, "A", ref)
	assert.Equal(t, "T", alt)

	for _, id := range []string{"rs123", "1:100:A", "1:x:A:T", "ENSG0001:1:2:3", "1:100:A:<DEL>"} {
		_, _, _, _, ok := ParseVariantId(id)
		assert.False(t, ok, id)
	}
}
