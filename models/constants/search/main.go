package search

import (
	"gohan/variantstore/models/constants"
)

const (
	SEARCH_OP_NONE constants.SearchOperation = ""

	SEARCH_OP_EQ  constants.SearchOperation = "="
	SEARCH_OP_EQ2 constants.SearchOperation = "=="
	SEARCH_OP_NE  constants.SearchOperation = "!="
	SEARCH_OP_LT  constants.SearchOperation = "<"
	SEARCH_OP_LE  constants.SearchOperation = "<="
	SEARCH_OP_GT  constants.SearchOperation = ">"
	SEARCH_OP_GE  constants.SearchOperation = ">="

	// pattern matches
	SEARCH_OP_CO  constants.SearchOperation = "~"
	SEARCH_OP_CO2 constants.SearchOperation = "~="
)

// ordered longest first so that "<=" wins over "<"
var AllSearchOperations = []constants.SearchOperation{
	SEARCH_OP_EQ2, SEARCH_OP_NE, SEARCH_OP_LE, SEARCH_OP_GE, SEARCH_OP_CO2,
	SEARCH_OP_EQ, SEARCH_OP_LT, SEARCH_OP_GT, SEARCH_OP_CO,
}

func IsPattern(op constants.SearchOperation) bool {
	return op == SEARCH_OP_CO || op == SEARCH_OP_CO2
}

func IsEquality(op constants.SearchOperation) bool {
	return op == SEARCH_OP_EQ || op == SEARCH_OP_EQ2 || op == SEARCH_OP_NONE
}

// IsLowerBound is true for operators whose matching set includes
// the values below the operand ("rare" filters)
func IsLowerBound(op constants.SearchOperation) bool {
	return op == SEARCH_OP_LT || op == SEARCH_OP_LE
}
