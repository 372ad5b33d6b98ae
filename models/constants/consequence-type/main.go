package consequenceType

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Sequence Ontology terms used by the variant annotation, by accession number
var soTerms = map[string]int{
	"transcript_ablation":                1893,
	"splice_acceptor_variant":            1574,
	"splice_donor_variant":               1575,
	"stop_gained":                        1587,
	"frameshift_variant":                 1589,
	"stop_lost":                          1578,
	"start_lost":                         2012,
	"transcript_amplification":           1889,
	"inframe_insertion":                  1821,
	"inframe_deletion":                   1822,
	"missense_variant":                   1583,
	"protein_altering_variant":           1818,
	"splice_region_variant":              1630,
	"incomplete_terminal_codon_variant":  1626,
	"stop_retained_variant":              1567,
	"synonymous_variant":                 1819,
	"coding_sequence_variant":            1580,
	"mature_miRNA_variant":               1620,
	"5_prime_UTR_variant":                1623,
	"3_prime_UTR_variant":                1624,
	"non_coding_transcript_exon_variant": 1792,
	"intron_variant":                     1627,
	"NMD_transcript_variant":             1621,
	"non_coding_transcript_variant":      1619,
	"upstream_gene_variant":              1631,
	"downstream_gene_variant":            1632,
	"TFBS_ablation":                      1895,
	"TFBS_amplification":                 1892,
	"TF_binding_site_variant":            1782,
	"regulatory_region_ablation":         1894,
	"regulatory_region_amplification":    1891,
	"regulatory_region_variant":          1566,
	"feature_elongation":                 1907,
	"feature_truncation":                 1906,
	"intergenic_variant":                 1628,
}

// CastToAccession accepts either an SO term name or an "SO:0001583"
// style accession and returns the numeric accession
func CastToAccession(text string) (int, error) {
	text = strings.TrimSpace(text)
	if strings.HasPrefix(strings.ToUpper(text), "SO:") {
		n, err := strconv.Atoi(text[3:])
		if err != nil {
			return 0, fmt.Errorf("bad SO accession %q", text)
		}
		return n, nil
	}
	if n, ok := soTerms[text]; ok {
		return n, nil
	}
	return 0, errors.New("unknown consequence type")
}

func FormatAccession(n int) string {
	return fmt.Sprintf("SO:%07d", n)
}

// GeneSo builds the compound gene x consequence type key
func GeneSo(gene string, accession int) string {
	return fmt.Sprintf("%s_%d", gene, accession)
}
