package query

import (
	"strconv"
	"strings"

	"gohan/variantstore/errors"
	"gohan/variantstore/models/constants"
	"gohan/variantstore/models/constants/chromosome"
	consequenceType "gohan/variantstore/models/constants/consequence-type"
	"gohan/variantstore/models/constants/genotype"
	scoreSource "gohan/variantstore/models/constants/score-source"
	"gohan/variantstore/models/constants/search"
	variantType "gohan/variantstore/models/constants/variant-type"
)

// Parse validates every parameter name against the closed Param set and
// parses its value into the declared kind. Params with a blank value are
// ignored.
func (q *Query) Parse() (*Parsed, error) {
	p := &Parsed{values: map[Param]Value{}}
	if q == nil {
		return p, nil
	}

	for _, name := range q.Params() {
		param, ok := CastToParam(name)
		if !ok {
			return nil, errors.UnknownParameter(name)
		}
		raw, _ := q.Get(name)
		if strings.TrimSpace(strings.Trim(raw, ",;")) == "" {
			continue
		}

		v, err := parseValue(param, raw)
		if err != nil {
			return nil, err
		}
		p.order = append(p.order, param)
		p.values[param] = v
	}
	return p, nil
}

func parseValue(param Param, raw string) (Value, error) {
	switch param.Kind() {
	case KIND_REGION_LIST:
		return parseRegions(param, raw)
	case KIND_COMPARISON_LIST:
		return parseComparisons(param, raw)
	case KIND_SCORE_LIST:
		return parseScores(param, raw)
	case KIND_FREQUENCY_LIST:
		return parseFrequencies(param, raw)
	case KIND_STATS_LIST:
		return parseStats(param, raw)
	case KIND_GENOTYPE_LIST:
		return parseGenotypes(raw)
	case KIND_BOOL:
		b, err := strconv.ParseBool(strings.TrimSpace(raw))
		if err != nil {
			return nil, malformed(param, raw, "expected true or false")
		}
		return &Bool{Value: b}, nil
	}
	return parseStrings(param, raw)
}

func malformed(param Param, raw string, reason string) error {
	return errors.MalformedParameter(string(param), raw, reason)
}

// splitList splits on "," (OR) or ";" (AND). A value using both is
// malformed.
func splitList(param Param, raw string) (constants.QueryOperation, []string, error) {
	hasOr := strings.Contains(raw, ",")
	hasAnd := strings.Contains(raw, ";")
	if hasOr && hasAnd {
		return constants.QUERY_OP_NONE, nil, malformed(param, raw, "cannot mix ',' and ';'")
	}

	op, parts := constants.QUERY_OP_NONE, []string{raw}
	if hasOr {
		op, parts = constants.QUERY_OP_OR, strings.Split(raw, ",")
	} else if hasAnd {
		op, parts = constants.QUERY_OP_AND, strings.Split(raw, ";")
	}

	for i, part := range parts {
		parts[i] = strings.TrimSpace(part)
		if parts[i] == "" {
			return op, nil, malformed(param, raw, "empty element")
		}
	}
	return op, parts, nil
}

func parseStrings(param Param, raw string) (Value, error) {
	op, elems, err := splitList(param, raw)
	if err != nil {
		return nil, err
	}

	list := &StringList{Op: op}
	for _, elem := range elems {
		term := Term{Value: elem}
		if strings.HasPrefix(elem, "!") {
			term = Term{Value: strings.TrimSpace(elem[1:]), Negated: true}
			if term.Value == "" {
				return nil, malformed(param, raw, "empty element")
			}
			if op == constants.QUERY_OP_OR {
				return nil, malformed(param, raw, "negation cannot be combined with ','")
			}
		}

		switch param {
		case TYPE:
			t, err := variantType.CastToVariantType(term.Value)
			if err != nil {
				return nil, malformed(param, raw, "unknown variant type "+term.Value)
			}
			term.Value = string(t)
		case CONSEQUENCE_TYPE:
			acc, err := consequenceType.CastToAccession(term.Value)
			if err != nil {
				return nil, malformed(param, raw, "unknown consequence type "+term.Value)
			}
			term.Value = strconv.Itoa(acc)
		case GO_TERM, EXPRESSION:
			if op == constants.QUERY_OP_AND || term.Negated {
				return nil, malformed(param, raw, "only ',' lists are supported")
			}
		}
		list.Terms = append(list.Terms, term)
	}
	return list, nil
}

func parseRegions(param Param, raw string) (Value, error) {
	op, elems, err := splitList(param, raw)
	if err != nil {
		return nil, err
	}
	if op == constants.QUERY_OP_AND {
		return nil, malformed(param, raw, "regions can only be combined with ','")
	}

	list := &RegionList{}
	for _, elem := range elems {
		if strings.HasPrefix(elem, "!") {
			return nil, malformed(param, raw, "regions cannot be negated")
		}
		if param == CHROMOSOME {
			if strings.Contains(elem, ":") {
				return nil, malformed(param, raw, "expected a chromosome name")
			}
			list.Regions = append(list.Regions, Region{Chromosome: chromosome.Normalize(elem), Start: 0, End: MaxPosition})
			continue
		}

		region, err := ParseRegion(elem)
		if err != nil {
			return nil, malformed(param, raw, err.Error())
		}
		list.Regions = append(list.Regions, region)
	}
	return list, nil
}

// ParseRegion reads chrom, chrom:pos or chrom:start-end
func ParseRegion(text string) (Region, error) {
	chrom, rest, hasPos := strings.Cut(strings.TrimSpace(text), ":")
	if chrom == "" {
		return Region{}, errors.Errorf("missing chromosome in %q", text)
	}
	region := Region{Chromosome: chromosome.Normalize(chrom), Start: 0, End: MaxPosition}
	if !hasPos {
		return region, nil
	}

	startText, endText, hasEnd := strings.Cut(rest, "-")
	start, err := strconv.Atoi(startText)
	if err != nil || start < 0 {
		return Region{}, errors.Errorf("bad start in %q", text)
	}
	end := start
	if hasEnd {
		if end, err = strconv.Atoi(endText); err != nil || end < 0 {
			return Region{}, errors.Errorf("bad end in %q", text)
		}
	}
	if end < start {
		return Region{}, errors.Errorf("end before start in %q", text)
	}
	region.Start, region.End = start, end
	return region, nil
}

// parseComparison splits `[key]{op}{operand}` at the first operator.
func parseComparison(elem string) Comparison {
	for i := 0; i < len(elem); i++ {
		for _, op := range search.AllSearchOperations {
			if strings.HasPrefix(elem[i:], string(op)) {
				operand := strings.TrimSpace(elem[i+len(op):])
				return Comparison{
					Key:     strings.TrimSpace(elem[:i]),
					Op:      op,
					Operand: operand,
					Number:  parseNumber(operand),
				}
			}
		}
	}
	return Comparison{Op: search.SEARCH_OP_NONE, Operand: elem, Number: parseNumber(elem)}
}

func isNumericOp(op constants.SearchOperation) bool {
	return op != search.SEARCH_OP_NONE && !search.IsPattern(op)
}

func parseComparisons(param Param, raw string) (Value, error) {
	op, elems, err := splitList(param, raw)
	if err != nil {
		return nil, err
	}

	list := &ComparisonList{Op: op}
	for _, elem := range elems {
		if strings.HasPrefix(elem, "!") && !strings.HasPrefix(elem, "!=") {
			return nil, malformed(param, raw, "use '!=' to negate a comparison")
		}
		c := parseComparison(elem)
		if c.Operand == "" {
			return nil, malformed(param, raw, "missing operand")
		}

		switch param {
		case GENE_TRAIT_NAME:
			if c.Key != "" {
				return nil, malformed(param, raw, "unexpected key "+c.Key)
			}
			switch c.Op {
			case search.SEARCH_OP_NONE:
				c.Op = search.SEARCH_OP_CO
			case search.SEARCH_OP_LT, search.SEARCH_OP_LE, search.SEARCH_OP_GT, search.SEARCH_OP_GE:
				return nil, malformed(param, raw, "gene trait names only support equality and pattern operators")
			}
			c.Number = nil
		case CUSTOM_ANNOTATION:
			name, attr, ok := strings.Cut(c.Key, ".")
			if !ok || name == "" || attr == "" {
				return nil, malformed(param, raw, "expected name.attribute{op}value")
			}
			if c.Op == search.SEARCH_OP_NONE {
				return nil, malformed(param, raw, "missing operator")
			}
		case NUMERIC_GENOTYPE_COUNT:
			c.Key = strings.TrimSuffix(c.Key, ":")
			if c.Key == "" {
				return nil, malformed(param, raw, "expected genotype{op}count")
			}
			if !isNumericOp(c.Op) || c.Number == nil {
				return nil, malformed(param, raw, "expected a numeric comparison")
			}
			c.Key = genotype.Normalize(c.Key)
		}
		list.Comparisons = append(list.Comparisons, c)
	}
	return list, nil
}

var defaultScoreSource = map[Param]constants.ScoreSource{
	POLYPHEN: scoreSource.POLYPHEN,
	SIFT:     scoreSource.SIFT,
}

var allowedScoreSources = map[Param][]constants.ScoreSource{
	PROTEIN_SUBSTITUTION_SCORE: scoreSource.ProteinSubstitution,
	CONSERVATION_SCORE:         scoreSource.Conservation,
	FUNCTIONAL_SCORE:           scoreSource.Functional,
}

// params whose non numeric operands compare the score description
var describedScores = map[Param]bool{
	POLYPHEN:                   true,
	SIFT:                       true,
	PROTEIN_SUBSTITUTION_SCORE: true,
}

func parseScores(param Param, raw string) (Value, error) {
	op, elems, err := splitList(param, raw)
	if err != nil {
		return nil, err
	}

	list := &ScoreList{Op: op}
	for _, elem := range elems {
		c := parseComparison(elem)
		if c.Operand == "" {
			return nil, malformed(param, raw, "missing operand")
		}

		if source, ok := defaultScoreSource[param]; ok {
			if c.Key != "" {
				return nil, malformed(param, raw, "the score source cannot be qualified")
			}
			c.Key = string(source)
		} else {
			if c.Key == "" {
				return nil, malformed(param, raw, "missing score source")
			}
			source, ok := scoreSource.CastToScoreSource(c.Key, allowedScoreSources[param])
			if !ok {
				return nil, malformed(param, raw, "unknown score source "+c.Key)
			}
			c.Key = string(source)
		}

		if !c.IsNumeric() && !describedScores[param] {
			return nil, malformed(param, raw, "expected a numeric score")
		}
		list.Scores = append(list.Scores, c)
	}
	return list, nil
}

func parseFrequencies(param Param, raw string) (Value, error) {
	op, elems, err := splitList(param, raw)
	if err != nil {
		return nil, err
	}

	list := &FrequencyList{Op: op}
	for _, elem := range elems {
		c := parseComparison(elem)
		parts := strings.Split(c.Key, ":")
		if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
			return nil, malformed(param, raw, "expected study:population{op}value")
		}
		if !isNumericOp(c.Op) {
			return nil, malformed(param, raw, "expected a comparison operator")
		}
		if c.Number == nil {
			return nil, malformed(param, raw, "expected a numeric frequency")
		}
		if param == POPULATION_MINOR_ALLELE_FREQUENCY {
			switch c.Op {
			case search.SEARCH_OP_LT, search.SEARCH_OP_LE, search.SEARCH_OP_GT, search.SEARCH_OP_GE:
			default:
				return nil, malformed(param, raw, "minor allele frequency only supports <, <=, > and >=")
			}
		}
		list.Frequencies = append(list.Frequencies, Frequency{
			Study:      parts[0],
			Population: parts[1],
			Op:         c.Op,
			Value:      *c.Number,
		})
	}
	return list, nil
}

func parseStats(param Param, raw string) (Value, error) {
	op, elems, err := splitList(param, raw)
	if err != nil {
		return nil, err
	}

	list := &StatsList{Op: op}
	for _, elem := range elems {
		c := parseComparison(elem)
		study, cohort := "", c.Key
		if parts := strings.Split(c.Key, ":"); len(parts) == 2 {
			study, cohort = parts[0], parts[1]
		} else if len(parts) > 2 {
			return nil, malformed(param, raw, "expected [study:]cohort{op}value")
		}
		if cohort == "" {
			return nil, malformed(param, raw, "missing cohort")
		}
		if !isNumericOp(c.Op) || c.Number == nil {
			return nil, malformed(param, raw, "expected a numeric comparison")
		}
		list.Filters = append(list.Filters, StatsFilter{
			Study:  study,
			Cohort: cohort,
			Op:     c.Op,
			Value:  *c.Number,
		})
	}
	return list, nil
}

// parseGenotypes reads `sample:gt[,gt...]` clauses. A token without a
// sample adds one more genotype to the previous clause.
func parseGenotypes(raw string) (Value, error) {
	op, tokens, err := splitList(GENOTYPE, raw)
	if err != nil {
		return nil, err
	}

	list := &GenotypeList{Op: op}
	for _, token := range tokens {
		gt := token
		if sample, rest, ok := strings.Cut(token, ":"); ok {
			sample = strings.TrimSpace(sample)
			if sample == "" {
				return nil, malformed(GENOTYPE, raw, "missing sample")
			}
			list.Clauses = append(list.Clauses, GenotypeClause{Sample: sample})
			gt = rest
		} else if len(list.Clauses) == 0 {
			return nil, malformed(GENOTYPE, raw, "expected sample:genotype")
		}

		term := Term{Value: strings.TrimSpace(gt)}
		if strings.HasPrefix(term.Value, "!") {
			term = Term{Value: strings.TrimSpace(term.Value[1:]), Negated: true}
		}
		if term.Value == "" {
			return nil, malformed(GENOTYPE, raw, "missing genotype")
		}
		term.Value = genotype.Normalize(term.Value)

		clause := &list.Clauses[len(list.Clauses)-1]
		clause.Genotypes = append(clause.Genotypes, term)
	}
	return list, nil
}
