package query

// Param is the closed set of query parameter names
type Param string

// Kind is the declared value shape of a Param
type Kind int

const (
	KIND_STRING_LIST Kind = iota
	KIND_REGION_LIST
	KIND_COMPARISON_LIST
	KIND_SCORE_LIST
	KIND_FREQUENCY_LIST
	KIND_STATS_LIST
	KIND_GENOTYPE_LIST
	KIND_BOOL
)

const (
	// location
	REGION     Param = "region"
	CHROMOSOME Param = "chromosome"
	ID         Param = "id"
	GENE       Param = "gene"
	XREF       Param = "xref"
	TYPE       Param = "type"

	// annotation
	ANNOTATION_EXISTS          Param = "annotation-exists"
	CONSEQUENCE_TYPE           Param = "consequence-type"
	BIOTYPE                    Param = "biotype"
	POLYPHEN                   Param = "polyphen"
	SIFT                       Param = "sift"
	PROTEIN_SUBSTITUTION_SCORE Param = "protein-substitution-score"
	CONSERVATION_SCORE         Param = "conservation-score"
	TRANSCRIPTION_FLAGS        Param = "transcription-flags"
	GENE_TRAIT_ID              Param = "gene-trait-id"
	GENE_TRAIT_NAME            Param = "gene-trait-name"
	HPO                        Param = "hpo"
	GO_TERM                    Param = "go-term"
	EXPRESSION                 Param = "expression"
	PROTEIN_KEYWORD            Param = "protein-keyword"
	DRUG                       Param = "drug"
	FUNCTIONAL_SCORE           Param = "functional-score"
	CUSTOM_ANNOTATION          Param = "custom-annotation"

	// frequency
	POPULATION_ALTERNATE_FREQUENCY    Param = "population-alternate-frequency"
	POPULATION_REFERENCE_FREQUENCY    Param = "population-reference-frequency"
	POPULATION_MINOR_ALLELE_FREQUENCY Param = "population-minor-allele-frequency"

	// study scope
	STUDIES  Param = "studies"
	FILES    Param = "files"
	FILTER   Param = "filter"
	GENOTYPE Param = "genotype"
	SAMPLES  Param = "samples"

	// stats
	COHORTS                Param = "cohorts"
	STATS_MAF              Param = "stats-maf"
	STATS_MGF              Param = "stats-mgf"
	MISSING_ALLELES        Param = "missing-alleles"
	MISSING_GENOTYPES      Param = "missing-genotypes"
	NUMERIC_GENOTYPE_COUNT Param = "numeric-genotype-count"
)

var kinds = map[Param]Kind{
	REGION:     KIND_REGION_LIST,
	CHROMOSOME: KIND_REGION_LIST,
	ID:         KIND_STRING_LIST,
	GENE:       KIND_STRING_LIST,
	XREF:       KIND_STRING_LIST,
	TYPE:       KIND_STRING_LIST,

	ANNOTATION_EXISTS:          KIND_BOOL,
	CONSEQUENCE_TYPE:           KIND_STRING_LIST,
	BIOTYPE:                    KIND_STRING_LIST,
	POLYPHEN:                   KIND_SCORE_LIST,
	SIFT:                       KIND_SCORE_LIST,
	PROTEIN_SUBSTITUTION_SCORE: KIND_SCORE_LIST,
	CONSERVATION_SCORE:         KIND_SCORE_LIST,
	TRANSCRIPTION_FLAGS:        KIND_STRING_LIST,
	GENE_TRAIT_ID:              KIND_STRING_LIST,
	GENE_TRAIT_NAME:            KIND_COMPARISON_LIST,
	HPO:                        KIND_STRING_LIST,
	GO_TERM:                    KIND_STRING_LIST,
	EXPRESSION:                 KIND_STRING_LIST,
	PROTEIN_KEYWORD:            KIND_STRING_LIST,
	DRUG:                       KIND_STRING_LIST,
	FUNCTIONAL_SCORE:           KIND_SCORE_LIST,
	CUSTOM_ANNOTATION:          KIND_COMPARISON_LIST,

	POPULATION_ALTERNATE_FREQUENCY:    KIND_FREQUENCY_LIST,
	POPULATION_REFERENCE_FREQUENCY:    KIND_FREQUENCY_LIST,
	POPULATION_MINOR_ALLELE_FREQUENCY: KIND_FREQUENCY_LIST,

	STUDIES:  KIND_STRING_LIST,
	FILES:    KIND_STRING_LIST,
	FILTER:   KIND_STRING_LIST,
	GENOTYPE: KIND_GENOTYPE_LIST,
	SAMPLES:  KIND_STRING_LIST,

	COHORTS:                KIND_STRING_LIST,
	STATS_MAF:              KIND_STATS_LIST,
	STATS_MGF:              KIND_STATS_LIST,
	MISSING_ALLELES:        KIND_STATS_LIST,
	MISSING_GENOTYPES:      KIND_STATS_LIST,
	NUMERIC_GENOTYPE_COUNT: KIND_COMPARISON_LIST,
}

func CastToParam(text string) (Param, bool) {
	p := Param(text)
	_, ok := kinds[p]
	return p, ok
}

func (p Param) Kind() Kind {
	return kinds[p]
}

// AllParams lists every known parameter name
func AllParams() []Param {
	out := make([]Param, 0, len(kinds))
	for p := range kinds {
		out = append(out, p)
	}
	return out
}

// StudyScoped are the params whose predicates apply to a study entry
var StudyScoped = []Param{STUDIES, FILES, FILTER, GENOTYPE, SAMPLES}
