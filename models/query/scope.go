package query

import "gohan/variantstore/models/constants"

// NestUnderStudyEntry tells whether the study scoped predicates of a query
// have to hold on one single study entry. Flattening them would let a
// different entry satisfy each predicate.
//
// A filter on studies alone never needs the wrapper. Otherwise the
// wrapper is needed as soon as more than one study is registered, or when
// studies are combined with any other study scoped predicate.
func NestUnderStudyEntry(p *Parsed, registeredStudies int) bool {
	others := p.HasAny(FILES, FILTER, GENOTYPE, SAMPLES)
	if !others {
		return false
	}
	if registeredStudies > 1 {
		return true
	}
	return p.Has(STUDIES)
}

// StudiesAtRoot tells whether the studies filter has to be applied as a
// standalone predicate instead of inside the study entry wrapper: AND
// lists and negated studies speak about the whole variant.
func StudiesAtRoot(p *Parsed) bool {
	studies := p.Strings(STUDIES)
	if studies == nil {
		return false
	}
	return studies.Op == constants.QUERY_OP_AND || len(studies.Negatives()) > 0
}
