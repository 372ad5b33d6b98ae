package indexes

import (
	"sort"
	"strings"

	"gohan/variantstore/models/constants"
	consequenceType "gohan/variantstore/models/constants/consequence-type"
)

// CurrentAnnotation is the name of the live annotation. Any other name
// refers to a stored snapshot.
const CurrentAnnotation = "current"

type VariantAnnotation struct {
	Chromosome string `json:"chromosome"`
	Start      int    `json:"start"`
	Reference  string `json:"reference"`
	Alternate  string `json:"alternate"`
	Id         string `json:"id,omitempty"`

	Xrefs                 []Xref                `json:"xrefs,omitempty"`
	ConsequenceTypes      []ConsequenceType     `json:"consequenceTypes,omitempty"`
	PopulationFrequencies []PopulationFrequency `json:"populationFrequencies,omitempty"`
	ConservationScores    []Score               `json:"conservationScores,omitempty"`
	FunctionalScores      []Score               `json:"functionalScores,omitempty"`
	GeneTraits            []GeneTrait           `json:"geneTraits,omitempty"`
	Drugs                 []Drug                `json:"drugs,omitempty"`
	ProteinKeywords       []string              `json:"proteinKeywords,omitempty"`
}

func (a *VariantAnnotation) Key() string {
	return BuildKey(a.Chromosome, a.Start, a.Reference, a.Alternate)
}

type Xref struct {
	Id     string `json:"id"`
	Source string `json:"source,omitempty"`
}

type ConsequenceType struct {
	GeneName                  string   `json:"geneName,omitempty"`
	EnsemblGeneId             string   `json:"ensemblGeneId,omitempty"`
	EnsemblTranscriptId       string   `json:"ensemblTranscriptId,omitempty"`
	Biotype                   string   `json:"biotype,omitempty"`
	TranscriptFlags           []string `json:"transcriptFlags,omitempty"`
	SoAccessions              []int    `json:"soAccessions,omitempty"`
	ProteinSubstitutionScores []Score  `json:"proteinSubstitutionScores,omitempty"`
}

type PopulationFrequency struct {
	Study         string  `json:"study"`
	Population    string  `json:"population"`
	RefAlleleFreq float64 `json:"refAlleleFreq"`
	AltAlleleFreq float64 `json:"altAlleleFreq"`
}

type Score struct {
	Source      constants.ScoreSource `json:"source"`
	Score       float64               `json:"score"`
	Description string                `json:"description,omitempty"`
}

type GeneTrait struct {
	Id    string  `json:"id"`
	Name  string  `json:"name"`
	Hpo   string  `json:"hpo,omitempty"`
	Score float64 `json:"score,omitempty"`
}

type Drug struct {
	GeneName string `json:"geneName,omitempty"`
	DrugName string `json:"drugName"`
	Source   string `json:"source,omitempty"`
}

// AnnotationIndex is the flattened, query-facing projection of an
// annotation. Both backends index exactly these fields.
type AnnotationIndex struct {
	Annotated       bool                  `json:"annotated"`
	Xrefs           []string              `json:"xrefs"`
	Genes           []string              `json:"genes"`
	GeneSo          []string              `json:"geneSo"`
	SoAccessions    []int                 `json:"so"`
	Biotypes        []string              `json:"biotypes"`
	TranscriptFlags []string              `json:"flags"`
	GeneTraitIds    []string              `json:"traitIds"`
	GeneTraitNames  []string              `json:"traitNames"`
	Hpo             []string              `json:"hpo"`
	Drugs           []string              `json:"drugs"`
	ProteinKeywords []string              `json:"keywords"`
	PopFreqs        []PopulationFrequency `json:"popFreqs"`
	Scores          []Score               `json:"scores"`
}

// Index derives the flattened query projection
func (a *VariantAnnotation) Index() *AnnotationIndex {
	xrefs := newStringSet()
	genes := newStringSet()
	geneSo := newStringSet()
	biotypes := newStringSet()
	flags := newStringSet()
	so := map[int]bool{}
	scores := []Score{}

	if a.Id != "" {
		xrefs.add(a.Id)
	}
	for _, x := range a.Xrefs {
		xrefs.add(x.Id)
	}
	for _, ct := range a.ConsequenceTypes {
		for _, g := range []string{ct.GeneName, ct.EnsemblGeneId, ct.EnsemblTranscriptId} {
			if g == "" {
				continue
			}
			genes.add(g)
			xrefs.add(g)
			for _, acc := range ct.SoAccessions {
				geneSo.add(consequenceType.GeneSo(g, acc))
			}
		}
		for _, acc := range ct.SoAccessions {
			so[acc] = true
		}
		biotypes.add(ct.Biotype)
		flags.add(ct.TranscriptFlags...)
		scores = append(scores, ct.ProteinSubstitutionScores...)
	}
	scores = append(scores, a.ConservationScores...)
	scores = append(scores, a.FunctionalScores...)

	traitIds, traitNames, hpo := newStringSet(), newStringSet(), newStringSet()
	for _, t := range a.GeneTraits {
		traitIds.add(t.Id)
		traitNames.add(t.Name)
		hpo.add(t.Hpo)
	}
	drugs := newStringSet()
	for _, d := range a.Drugs {
		drugs.add(d.DrugName)
	}

	accessions := make([]int, 0, len(so))
	for acc := range so {
		accessions = append(accessions, acc)
	}
	sort.Ints(accessions)

	return &AnnotationIndex{
		Annotated:       true,
		Xrefs:           xrefs.list(),
		Genes:           genes.list(),
		GeneSo:          geneSo.list(),
		SoAccessions:    accessions,
		Biotypes:        biotypes.list(),
		TranscriptFlags: flags.list(),
		GeneTraitIds:    traitIds.list(),
		GeneTraitNames:  traitNames.list(),
		Hpo:             hpo.list(),
		Drugs:           drugs.list(),
		ProteinKeywords: newStringSet(a.ProteinKeywords...).list(),
		PopFreqs:        append([]PopulationFrequency{}, a.PopulationFrequencies...),
		Scores:          scores,
	}
}

// ordered, de-duplicated, blank-free
type stringSet struct {
	seen  map[string]bool
	items []string
}

func newStringSet(items ...string) *stringSet {
	s := &stringSet{seen: map[string]bool{}}
	s.add(items...)
	return s
}

func (s *stringSet) add(items ...string) {
	for _, i := range items {
		i = strings.TrimSpace(i)
		if i == "" || s.seen[i] {
			continue
		}
		s.seen[i] = true
		s.items = append(s.items, i)
	}
}

func (s *stringSet) list() []string {
	return s.items
}
