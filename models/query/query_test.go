package query

import (
	"fmt"
	"net/url"
	"testing"
	"time"

	"gohan/variantstore/errors"
	"gohan/variantstore/models/constants"
	"gohan/variantstore/models/constants/search"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func parse(t *testing.T, kv ...string) (*Parsed, error) {
	t.Helper()
	q := New()
	for i := 0; i+1 < len(kv); i += 2 {
		q.Add(kv[i], kv[i+1])
	}
	return q.Parse()
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		param string
		value string
		code  errors.Code
	}{
		{"colour", "red", errors.ErrUnknownParameter},
		{"gene", "BRCA2,TP53;ATM", errors.ErrMalformedParameter},
		{"biotype", "!protein_coding,lncRNA", errors.ErrMalformedParameter},
		{"region", "1:200-100", errors.ErrMalformedParameter},
		{"region", "1:a-b", errors.ErrMalformedParameter},
		{"region", "1:1-2;2:3-4", errors.ErrMalformedParameter},
		{"chromosome", "1:100", errors.ErrMalformedParameter},
		{"type", "BANANA", errors.ErrMalformedParameter},
		{"consequence-type", "not_a_term", errors.ErrMalformedParameter},
		{"polyphen", "polyphen>0.5", errors.ErrMalformedParameter},
		{"conservation-score", ">0.5", errors.ErrMalformedParameter},
		{"conservation-score", "cadd_raw>0.5", errors.ErrMalformedParameter},
		{"conservation-score", "gerp>high", errors.ErrMalformedParameter},
		{"functional-score", "unknown<1", errors.ErrMalformedParameter},
		{"population-alternate-frequency", "1kG<0.1", errors.ErrMalformedParameter},
		{"population-alternate-frequency", "1kG:ALL~0.1", errors.ErrMalformedParameter},
		{"population-alternate-frequency", "1kG:ALL<rare", errors.ErrMalformedParameter},
		{"population-minor-allele-frequency", "1kG:ALL=0.1", errors.ErrMalformedParameter},
		{"stats-maf", "a:b:c<0.1", errors.ErrMalformedParameter},
		{"stats-maf", "ALL", errors.ErrMalformedParameter},
		{"genotype", "0/1", errors.ErrMalformedParameter},
		{"genotype", "S1:0/1,1/1;S2:0/0", errors.ErrMalformedParameter},
		{"go-term", "GO:1;GO:2", errors.ErrMalformedParameter},
		{"custom-annotation", "noattr>1", errors.ErrMalformedParameter},
		{"numeric-genotype-count", "0/1~3", errors.ErrMalformedParameter},
		{"annotation-exists", "maybe", errors.ErrMalformedParameter},
	}

	for _, test := range tests {
		t.Run(fmt.Sprintf("%s=%s", test.param, test.value), func(t *testing.T) {
			_, err := parse(t, test.param, test.value)
			require.Error(t, err)
			assert.True(t, errors.Is(err, test.code), err.Error())
			assert.Contains(t, err.Error(), test.param)
			if test.code == errors.ErrMalformedParameter {
				assert.Contains(t, err.Error(), test.value)
			}
		})
	}
}

func TestParseValues(t *testing.T) {
	t.Run("string lists", func(t *testing.T) {
		p, err := parse(t, "biotype", "protein_coding;!lncRNA", "type", "snv")
		require.NoError(t, err)

		bt := p.Strings(BIOTYPE)
		assert.Equal(t, constants.QUERY_OP_AND, bt.Op)
		assert.Equal(t, []string{"protein_coding"}, bt.Positives())
		assert.Equal(t, []string{"lncRNA"}, bt.Negatives())
		assert.Equal(t, []string{"SNV"}, p.Strings(TYPE).Values())
	})

	t.Run("regions", func(t *testing.T) {
		p, err := parse(t, "region", "chr1:100-200,2:5,X", "chromosome", "chrM")
		require.NoError(t, err)
		assert.Equal(t, []Region{
			{Chromosome: "1", Start: 100, End: 200},
			{Chromosome: "2", Start: 5, End: 5},
			{Chromosome: "X", Start: 0, End: MaxPosition},
		}, p.Regions(REGION).Regions)
		assert.Equal(t, "MT", p.Regions(CHROMOSOME).Regions[0].Chromosome)
	})

	t.Run("consequence types resolve to accessions", func(t *testing.T) {
		p, err := parse(t, "consequence-type", "missense_variant,SO:0001587")
		require.NoError(t, err)
		assert.Equal(t, []string{"1583", "1587"}, p.Strings(CONSEQUENCE_TYPE).Values())
	})

	t.Run("scores", func(t *testing.T) {
		p, err := parse(t, "sift", "<0.1,deleterious", "conservation-score", "gerp>2;phylop>=1")
		require.NoError(t, err)

		sift := p.Scores(SIFT)
		assert.Equal(t, constants.QUERY_OP_OR, sift.Op)
		assert.Equal(t, "sift", sift.Scores[0].Key)
		assert.True(t, sift.Scores[0].IsNumeric())
		assert.False(t, sift.Scores[1].IsNumeric())
		assert.Equal(t, "deleterious", sift.Scores[1].Operand)

		cons := p.Scores(CONSERVATION_SCORE)
		assert.Equal(t, "phylop", cons.Scores[1].Key)
		assert.Equal(t, search.SEARCH_OP_GE, cons.Scores[1].Op)
	})

	t.Run("frequencies and stats", func(t *testing.T) {
		p, err := parse(t,
			"population-alternate-frequency", "1kG_phase3:ALL<=0.01",
			"stats-maf", "1KG:ALL<0.01;EUR>0.2")
		require.NoError(t, err)

		f := p.Frequencies(POPULATION_ALTERNATE_FREQUENCY).Frequencies[0]
		assert.Equal(t, Frequency{Study: "1kG_phase3", Population: "ALL", Op: search.SEARCH_OP_LE, Value: 0.01}, f)

		stats := p.Stats(STATS_MAF).Filters
		assert.Equal(t, StatsFilter{Study: "1KG", Cohort: "ALL", Op: search.SEARCH_OP_LT, Value: 0.01}, stats[0])
		assert.Equal(t, "", stats[1].Study)
	})

	t.Run("genotypes", func(t *testing.T) {
		p, err := parse(t, "genotype", "S1:0/1,1/1,S2:!0/0")
		require.NoError(t, err)

		gt := p.Genotypes()
		assert.Equal(t, constants.QUERY_OP_OR, gt.Op)
		require.Len(t, gt.Clauses, 2)
		assert.Equal(t, []Term{{Value: "0/1"}, {Value: "1/1"}}, gt.Clauses[0].Genotypes)
		assert.Equal(t, []Term{{Value: "0/0", Negated: true}}, gt.Clauses[1].Genotypes)
	})

	t.Run("comparisons", func(t *testing.T) {
		p, err := parse(t, "custom-annotation", "cosmic.count>=3", "numeric-genotype-count", "0/1:>5", "gene-trait-name", "cancer")
		require.NoError(t, err)

		ca := p.Comparisons(CUSTOM_ANNOTATION).Comparisons[0]
		assert.Equal(t, "cosmic.count", ca.Key)
		assert.True(t, ca.IsNumeric())

		ngt := p.Comparisons(NUMERIC_GENOTYPE_COUNT).Comparisons[0]
		assert.Equal(t, "0/1", ngt.Key)
		assert.Equal(t, search.SEARCH_OP_GT, ngt.Op)

		assert.Equal(t, search.SEARCH_OP_CO, p.Comparisons(GENE_TRAIT_NAME).Comparisons[0].Op)
	})

	t.Run("blank values are ignored and repeats are joined", func(t *testing.T) {
		q := New().Add("gene", "").Add("biotype", "a").Add("biotype", "b")
		p, err := q.Parse()
		require.NoError(t, err)
		assert.False(t, p.Has(GENE))
		assert.Equal(t, []string{"a", "b"}, p.Strings(BIOTYPE).Values())
	})
}

func TestNestUnderStudyEntry(t *testing.T) {
	tests := []struct {
		kv         []string
		registered int
		exp        bool
	}{
		{[]string{"studies", "1KG"}, 3, false},
		{[]string{"studies", "1KG", "files", "a.vcf"}, 1, true},
		{[]string{"files", "a.vcf"}, 1, false},
		{[]string{"files", "a.vcf"}, 2, true},
		{[]string{"genotype", "S1:0/1"}, 2, true},
		{[]string{"gene", "BRCA2"}, 2, false},
	}

	for i, test := range tests {
		t.Run(fmt.Sprint(i), func(t *testing.T) {
			p, err := parse(t, test.kv...)
			require.NoError(t, err)
			assert.Equal(t, test.exp, NestUnderStudyEntry(p, test.registered))
		})
	}

	p, _ := parse(t, "studies", "a;b")
	assert.True(t, StudiesAtRoot(p))
	p, _ = parse(t, "studies", "!a")
	assert.True(t, StudiesAtRoot(p))
}

func TestOptions(t *testing.T) {
	o, err := ParseOptions(url.Values{"limit": {"10"}, "skip": {"5"}, "sort": {"true"}, "timeout": {"1500"}, "include": {"studies,annotation"}})
	require.NoError(t, err)
	assert.Equal(t, 10, o.Limit)
	assert.Equal(t, 5, o.Skip)
	assert.True(t, o.Sort)
	assert.Equal(t, 1500*time.Millisecond, o.Timeout)
	assert.True(t, o.Includes("studies"))
	assert.False(t, o.Includes("stats"))

	assert.Equal(t, 2*time.Second, o.EffectiveTimeout(2*time.Second, time.Minute))
	o.Timeout = time.Hour
	assert.Equal(t, time.Minute, o.EffectiveTimeout(2*time.Second, time.Minute))

	_, err = ParseOptions(url.Values{"limit": {"-1"}})
	assert.True(t, errors.Is(err, errors.ErrMalformedParameter))
	_, err = ParseOptions(url.Values{"include": {"colour"}})
	assert.True(t, errors.Is(err, errors.ErrMalformedParameter))

	for raw, sorted := range map[string]bool{"asc": true, "ASC": true, "true": true, "false": false} {
		o, err := ParseOptions(url.Values{"sort": {raw}})
		require.NoError(t, err)
		assert.Equal(t, sorted, o.Sort, raw)
	}
	_, err = ParseOptions(url.Values{"sort": {"desc"}})
	assert.True(t, errors.Is(err, errors.ErrMalformedParameter))

	summary := Options{Summary: true, Include: []string{"annotation"}}
	assert.False(t, summary.Includes("annotation"))
	assert.True(t, summary.Includes("studies"))
}
