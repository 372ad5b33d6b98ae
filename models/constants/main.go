package constants

/*
	Defines a set of base level
	constants and enums to be used
	throughout the variant store and
	its associated services.
*/
type VariantType string
type SearchOperation string
type ScoreSource string

// QueryOperation is how the elements of a multi-valued
// query parameter are combined
type QueryOperation int

const (
	QUERY_OP_NONE QueryOperation = iota
	QUERY_OP_OR
	QUERY_OP_AND
)
