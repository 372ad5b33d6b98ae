package genotype

import "strings"

// Unknown is the bucket holding samples with no call for a variant,
// including samples back-filled by fill-gaps
const Unknown = "?/?"

var DefaultReference = []string{"0/0", "0|0"}

// NonReference are the genotypes a sample must carry to be considered
// as "having" the variant
var NonReference = []string{
	"1",
	"0/1", "0|1", "1|0",
	"1/1", "1|1",
	"1/2", "1|2", "2|1",
}

// Concrete lists every genotype bucket a study entry may hold explicitly
var Concrete = []string{
	"0/0", "0|0",
	"0/1", "1/0", "1/1", "-1/-1",
	"0|1", "1|0", "1|1", "-1|-1",
	"0|2", "2|0", "2|1", "1|2", "2|2",
	"0/2", "2/0", "2/1", "1/2", "2/2",
	Unknown,
}

func IsPhased(gt string) bool {
	return strings.Contains(gt, "|")
}

// Normalize maps no-call spellings onto the unknown bucket
func Normalize(gt string) string {
	switch gt {
	case "", ".", "./.", ".|.":
		return Unknown
	}
	return gt
}

// EquivalenceClass expands a study's default genotypes into every
// spelling that means the same call, phased or not.
func EquivalenceClass(defaults []string) []string {
	if len(defaults) == 0 {
		defaults = DefaultReference
	}
	seen := map[string]bool{}
	class := []string{}
	add := func(gt string) {
		if !seen[gt] {
			seen[gt] = true
			class = append(class, gt)
		}
	}
	for _, d := range defaults {
		add(d)
		if d == Unknown {
			continue
		}
		add(strings.ReplaceAll(d, "|", "/"))
		add(strings.ReplaceAll(d, "/", "|"))
	}
	return class
}

func Contains(list []string, gt string) bool {
	for _, g := range list {
		if g == gt {
			return true
		}
	}
	return false
}
