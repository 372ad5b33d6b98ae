package chromosome

import (
	"fmt"
	"strconv"
	"strings"
)

func ValidListOfHumanChromosomes() []string {
	var humChroms []string
	for i := 1; i < 23; i++ {
		humChroms = append(humChroms, fmt.Sprint(i))
	}
	humChroms = append(humChroms, "X")
	humChroms = append(humChroms, "Y")
	humChroms = append(humChroms, "MT")
	return humChroms
}

// Normalize strips the "chr" prefix and upper-cases the
// sex and mitochondrial chromosome names, so that "chr1",
// "1" and "chrM" all land on the same storage key.
func Normalize(text string) string {
	text = strings.TrimSpace(text)
	lowered := strings.ToLower(text)
	if strings.HasPrefix(lowered, "chr") {
		text = text[3:]
		lowered = lowered[3:]
	}

	switch lowered {
	case "x", "y":
		return strings.ToUpper(text)
	case "m", "mt":
		return "MT"
	}
	return text
}

func IsValidHumanChromosome(text string) bool {
	text = Normalize(text)

	// Check if number can be represented as an int as is non-zero
	chromNumber, _ := strconv.Atoi(text)
	if chromNumber > 0 {
		return chromNumber < 23
	}

	switch text {
	case "X", "Y", "MT":
		return true
	}
	return false
}
