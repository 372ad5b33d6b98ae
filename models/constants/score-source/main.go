package scoreSource

import "gohan/variantstore/models/constants"

const (
	POLYPHEN    constants.ScoreSource = "polyphen"
	SIFT        constants.ScoreSource = "sift"
	PHYLOP      constants.ScoreSource = "phylop"
	PHASTCONS   constants.ScoreSource = "phastCons"
	GERP        constants.ScoreSource = "gerp"
	CADD_RAW    constants.ScoreSource = "cadd_raw"
	CADD_SCALED constants.ScoreSource = "cadd_scaled"
)

var (
	ProteinSubstitution = []constants.ScoreSource{POLYPHEN, SIFT}
	Conservation        = []constants.ScoreSource{PHYLOP, PHASTCONS, GERP}
	Functional          = []constants.ScoreSource{CADD_RAW, CADD_SCALED}
)

func CastToScoreSource(text string, allowed []constants.ScoreSource) (constants.ScoreSource, bool) {
	for _, s := range allowed {
		if string(s) == text {
			return s, true
		}
	}
	return "", false
}
