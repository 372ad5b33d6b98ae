package variantType

import (
	"errors"
	"strings"

	"gohan/variantstore/models/constants"
)

const (
	SNV           constants.VariantType = "SNV"
	SNP           constants.VariantType = "SNP"
	MNV           constants.VariantType = "MNV"
	MNP           constants.VariantType = "MNP"
	INDEL         constants.VariantType = "INDEL"
	INSERTION     constants.VariantType = "INSERTION"
	DELETION      constants.VariantType = "DELETION"
	SV            constants.VariantType = "SV"
	CNV           constants.VariantType = "CNV"
	DUPLICATION   constants.VariantType = "DUPLICATION"
	INVERSION     constants.VariantType = "INVERSION"
	TRANSLOCATION constants.VariantType = "TRANSLOCATION"
	BREAKEND      constants.VariantType = "BREAKEND"
	SYMBOLIC      constants.VariantType = "SYMBOLIC"
	NO_VARIATION  constants.VariantType = "NO_VARIATION"
)

var subTypes = map[constants.VariantType][]constants.VariantType{
	SNV:   {SNP},
	MNV:   {MNP},
	INDEL: {INSERTION, DELETION},
	SV:    {CNV, DUPLICATION, INVERSION, TRANSLOCATION, BREAKEND},
}

func CastToVariantType(text string) (constants.VariantType, error) {
	t := constants.VariantType(strings.ToUpper(strings.TrimSpace(text)))
	switch t {
	case SNV, SNP, MNV, MNP, INDEL, INSERTION, DELETION,
		SV, CNV, DUPLICATION, INVERSION, TRANSLOCATION, BREAKEND,
		SYMBOLIC, NO_VARIATION:
		return t, nil
	}
	return "", errors.New("unable to parse variant type")
}

// WithSubTypes returns the type followed by all of its sub types
func WithSubTypes(t constants.VariantType) []constants.VariantType {
	return append([]constants.VariantType{t}, subTypes[t]...)
}

// IsStructural covers the types whose end coordinate cannot be
// derived from the alleles alone
func IsStructural(t constants.VariantType) bool {
	switch t {
	case SYMBOLIC, SV, CNV, DUPLICATION, INVERSION, TRANSLOCATION, BREAKEND:
		return true
	}
	return false
}
