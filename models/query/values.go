package query

import (
	"strconv"

	"gohan/variantstore/models/constants"
	"gohan/variantstore/models/constants/search"
)

// MaxPosition is the upper bound used for whole-chromosome regions
const MaxPosition = 9_999_999_998

// Value is the parsed form of one parameter. Exactly one of the concrete
// types below implements it for a given Kind.
type Value interface {
	Kind() Kind
	// Operation tells how the elements of the list combine
	Operation() constants.QueryOperation
}

type Term struct {
	Value   string
	Negated bool
}

type StringList struct {
	Op    constants.QueryOperation
	Terms []Term
}

func (v *StringList) Kind() Kind                          { return KIND_STRING_LIST }
func (v *StringList) Operation() constants.QueryOperation { return v.Op }

func (v *StringList) Positives() []string {
	out := []string{}
	for _, t := range v.Terms {
		if !t.Negated {
			out = append(out, t.Value)
		}
	}
	return out
}

func (v *StringList) Negatives() []string {
	out := []string{}
	for _, t := range v.Terms {
		if t.Negated {
			out = append(out, t.Value)
		}
	}
	return out
}

func (v *StringList) Values() []string {
	out := make([]string, 0, len(v.Terms))
	for _, t := range v.Terms {
		out = append(out, t.Value)
	}
	return out
}

// Region is inclusive on both ends
type Region struct {
	Chromosome string
	Start      int
	End        int
}

type RegionList struct {
	Regions []Region
}

func (v *RegionList) Kind() Kind                          { return KIND_REGION_LIST }
func (v *RegionList) Operation() constants.QueryOperation { return constants.QUERY_OP_OR }

// Comparison is one `[key]{op}{operand}` element. Number is set when the
// operand parses as a number.
type Comparison struct {
	Key     string
	Op      constants.SearchOperation
	Operand string
	Number  *float64
}

func (c Comparison) IsNumeric() bool {
	return c.Number != nil && !search.IsPattern(c.Op)
}

type ComparisonList struct {
	Op          constants.QueryOperation
	Comparisons []Comparison
}

func (v *ComparisonList) Kind() Kind                          { return KIND_COMPARISON_LIST }
func (v *ComparisonList) Operation() constants.QueryOperation { return v.Op }

// ScoreList elements carry the resolved score source as Key
type ScoreList struct {
	Op     constants.QueryOperation
	Scores []Comparison
}

func (v *ScoreList) Kind() Kind                          { return KIND_SCORE_LIST }
func (v *ScoreList) Operation() constants.QueryOperation { return v.Op }

type Frequency struct {
	Study      string
	Population string
	Op         constants.SearchOperation
	Value      float64
}

type FrequencyList struct {
	Op          constants.QueryOperation
	Frequencies []Frequency
}

func (v *FrequencyList) Kind() Kind                          { return KIND_FREQUENCY_LIST }
func (v *FrequencyList) Operation() constants.QueryOperation { return v.Op }

// StatsFilter is `[study:]cohort{op}value`. Study is empty when the
// default study applies.
type StatsFilter struct {
	Study  string
	Cohort string
	Op     constants.SearchOperation
	Value  float64
}

type StatsList struct {
	Op      constants.QueryOperation
	Filters []StatsFilter
}

func (v *StatsList) Kind() Kind                          { return KIND_STATS_LIST }
func (v *StatsList) Operation() constants.QueryOperation { return v.Op }

type GenotypeClause struct {
	Sample    string
	Genotypes []Term
}

type GenotypeList struct {
	Op      constants.QueryOperation
	Clauses []GenotypeClause
}

func (v *GenotypeList) Kind() Kind                          { return KIND_GENOTYPE_LIST }
func (v *GenotypeList) Operation() constants.QueryOperation { return v.Op }

type Bool struct {
	Value bool
}

func (v *Bool) Kind() Kind                          { return KIND_BOOL }
func (v *Bool) Operation() constants.QueryOperation { return constants.QUERY_OP_NONE }

func parseNumber(s string) *float64 {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil
	}
	return &f
}
