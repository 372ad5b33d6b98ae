package query

// Parsed is a validated Query: every param is known and every value
// parsed into its declared kind.
type Parsed struct {
	order  []Param
	values map[Param]Value
}

func (p *Parsed) Has(param Param) bool {
	_, ok := p.values[param]
	return ok
}

func (p *Parsed) Params() []Param {
	return p.order
}

func (p *Parsed) Value(param Param) Value {
	return p.values[param]
}

func (p *Parsed) Strings(param Param) *StringList {
	v, _ := p.values[param].(*StringList)
	return v
}

func (p *Parsed) Regions(param Param) *RegionList {
	v, _ := p.values[param].(*RegionList)
	return v
}

func (p *Parsed) Comparisons(param Param) *ComparisonList {
	v, _ := p.values[param].(*ComparisonList)
	return v
}

func (p *Parsed) Scores(param Param) *ScoreList {
	v, _ := p.values[param].(*ScoreList)
	return v
}

func (p *Parsed) Frequencies(param Param) *FrequencyList {
	v, _ := p.values[param].(*FrequencyList)
	return v
}

func (p *Parsed) Stats(param Param) *StatsList {
	v, _ := p.values[param].(*StatsList)
	return v
}

func (p *Parsed) Genotypes() *GenotypeList {
	v, _ := p.values[GENOTYPE].(*GenotypeList)
	return v
}

func (p *Parsed) Bool(param Param) *Bool {
	v, _ := p.values[param].(*Bool)
	return v
}

// HasAny tells whether at least one of params is present
func (p *Parsed) HasAny(params ...Param) bool {
	for _, param := range params {
		if p.Has(param) {
			return true
		}
	}
	return false
}

func (p *Parsed) IsEmpty() bool {
	return len(p.values) == 0
}
