// Package metadata exposes the study catalog consumed by the variant
// adaptors: stable integer ids for studies, samples, files and cohorts
// plus the per study loading configuration.
package metadata

import (
	"context"
	"sort"

	"gohan/variantstore/models/constants/genotype"
)

type StudyConfiguration struct {
	Id               int            `yaml:"id" json:"id"`
	Name             string         `yaml:"name" json:"name"`
	IndexedFiles     []int          `yaml:"indexedFiles" json:"indexedFiles"`
	SamplesInFiles   map[int][]int  `yaml:"samplesInFiles" json:"samplesInFiles"`
	SampleIds        map[string]int `yaml:"samples" json:"samples"`
	FileIds          map[string]int `yaml:"files" json:"files"`
	CohortIds        map[string]int `yaml:"cohorts" json:"cohorts"`
	DefaultGenotypes []string       `yaml:"defaultGenotypes" json:"defaultGenotypes"`
	ExcludeGenotypes bool           `yaml:"excludeGenotypes" json:"excludeGenotypes"`
}

// DefaultGenotype is the genotype assumed for samples missing from every
// bucket of a study entry
func (sc *StudyConfiguration) DefaultGenotype() string {
	if len(sc.DefaultGenotypes) == 0 {
		return genotype.DefaultReference[0]
	}
	return sc.DefaultGenotypes[0]
}

func (sc *StudyConfiguration) DefaultGenotypeClass() []string {
	return genotype.EquivalenceClass(sc.DefaultGenotypes)
}

func (sc *StudyConfiguration) IsFileIndexed(fileId int) bool {
	for _, f := range sc.IndexedFiles {
		if f == fileId {
			return true
		}
	}
	return false
}

// IndexedSamples is every sample of every indexed file
func (sc *StudyConfiguration) IndexedSamples() []int {
	set := map[int]bool{}
	for _, fileId := range sc.IndexedFiles {
		for _, s := range sc.SamplesInFiles[fileId] {
			set[s] = true
		}
	}
	return sortedKeys(set)
}

// LoadedSamples lists the samples already loaded through other indexed
// files, excluding those of fileId.
func (sc *StudyConfiguration) LoadedSamples(fileId int) []int {
	own := map[int]bool{}
	for _, s := range sc.SamplesInFiles[fileId] {
		own[s] = true
	}
	set := map[int]bool{}
	for _, f := range sc.IndexedFiles {
		if f == fileId {
			continue
		}
		for _, s := range sc.SamplesInFiles[f] {
			if !own[s] {
				set[s] = true
			}
		}
	}
	return sortedKeys(set)
}

func (sc *StudyConfiguration) Clone() *StudyConfiguration {
	out := *sc
	out.IndexedFiles = append([]int{}, sc.IndexedFiles...)
	out.DefaultGenotypes = append([]string{}, sc.DefaultGenotypes...)
	out.SamplesInFiles = map[int][]int{}
	for k, v := range sc.SamplesInFiles {
		out.SamplesInFiles[k] = append([]int{}, v...)
	}
	out.SampleIds = cloneIds(sc.SampleIds)
	out.FileIds = cloneIds(sc.FileIds)
	out.CohortIds = cloneIds(sc.CohortIds)
	return &out
}

type Manager interface {
	Studies(ctx context.Context) (map[string]int, error)
	// DefaultStudy returns the only registered study, or nil when there is
	// more than one.
	DefaultStudy(ctx context.Context) (*StudyConfiguration, error)
	ResolveStudy(ctx context.Context, nameOrId string) (*StudyConfiguration, error)
	ResolveSample(ctx context.Context, nameOrId string, sc *StudyConfiguration) (int, error)
	ResolveFile(ctx context.Context, nameOrId string, sc *StudyConfiguration) (int, error)
	ResolveCohort(ctx context.Context, nameOrId string, sc *StudyConfiguration) (int, error)
	IndexedFiles(sc *StudyConfiguration) []int
	SamplesInFile(sc *StudyConfiguration, fileId int) []int
}

// GeneResolver expands GO terms and expression tissues into gene names
type GeneResolver interface {
	GenesByGoTerms(ctx context.Context, terms []string) ([]string, error)
	GenesByExpression(ctx context.Context, tissues []string) ([]string, error)
}

type FileRegistrar interface {
	// RegisterFile assigns ids to a file and its samples, creating the
	// study when needed. Registering the same file twice returns the same
	// ids.
	RegisterFile(ctx context.Context, study string, fileName string, sampleNames []string) (*StudyConfiguration, int, []int, error)
	RegisterIndexedFile(ctx context.Context, studyId int, fileId int) error
}

func sortedKeys(set map[int]bool) []int {
	out := make([]int, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Ints(out)
	return out
}

func cloneIds(m map[string]int) map[string]int {
	out := make(map[string]int, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
