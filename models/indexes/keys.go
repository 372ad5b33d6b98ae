package indexes

import (
	"fmt"
	"strconv"
	"strings"

	"gohan/variantstore/models/constants/chromosome"

	"github.com/cespare/xxhash/v2"
)

// alleles longer than this (ref + alt) are digested in the key
const MaxKeyAlleleLength = 50

// BuildKey derives the primary storage key of a variant. It depends on
// (chromosome, start, reference, alternate) only and is shared by the
// load and query paths of every backend.
func BuildKey(chrom string, start int, ref string, alt string) string {
	prefix := BuildRegionKey(chrom, start)
	if len(ref)+len(alt) > MaxKeyAlleleLength {
		return fmt.Sprintf("%s:%016x", prefix, xxhash.Sum64String(ref+"/"+alt))
	}
	return prefix + ":" + ref + ":" + alt
}

// BuildRegionKey builds the prefix shared by every key starting at pos.
// All keys of a region c:s-e fall in [BuildRegionKey(c,s), BuildRegionKey(c,e+1)).
func BuildRegionKey(chrom string, pos int) string {
	if pos < 0 {
		pos = 0
	}
	return fmt.Sprintf("%2s:%010d", chromosome.Normalize(chrom), pos)
}

// ParseVariantId reads a "chrom:pos:ref:alt" identifier. Anything else
// (rs ids, accessions) is reported as not a variant.
func ParseVariantId(text string) (chrom string, start int, ref string, alt string, ok bool) {
	parts := strings.Split(text, ":")
	if len(parts) != 4 {
		return
	}
	pos, err := strconv.Atoi(parts[1])
	if err != nil || pos < 0 || parts[0] == "" {
		return
	}
	if !isAllele(parts[2]) || !isAllele(parts[3]) {
		return
	}
	return parts[0], pos, strings.ToUpper(parts[2]), strings.ToUpper(parts[3]), true
}

func isAllele(s string) bool {
	for _, r := range s {
		switch r {
		case 'A', 'C', 'G', 'T', 'N', 'a', 'c', 'g', 't', 'n', '-', '*':
		default:
			return false
		}
	}
	return true
}
