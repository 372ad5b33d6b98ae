package indexes

import (
	"time"

	c "gohan/variantstore/models/constants"
)

type Variant struct {
	Id         string        `json:"id"`
	Names      []string      `json:"names,omitempty"`
	Chromosome string        `json:"chromosome"`
	Start      int           `json:"start"`
	End        int           `json:"end"`
	Reference  string        `json:"reference"`
	Alternate  string        `json:"alternate"`
	Type       c.VariantType `json:"type"`

	Studies []*StudyEntry `json:"studies"`

	Annotation        *VariantAnnotation `json:"annotation,omitempty"`
	AnnotationIndex   *AnnotationIndex   `json:"annotationIndex,omitempty"`
	Stats             []*VariantStats    `json:"stats,omitempty"`
	CustomAnnotations []CustomAttribute  `json:"customAnnotations,omitempty"`

	CreatedTime time.Time `json:"createdTime"`
}

// Key recomputes the storage key from the variant coordinates
func (v *Variant) Key() string {
	return BuildKey(v.Chromosome, v.Start, v.Reference, v.Alternate)
}

func (v *Variant) Study(studyId int) *StudyEntry {
	for _, s := range v.Studies {
		if s.StudyId == studyId {
			return s
		}
	}
	return nil
}

// StudyEntry is the per study projection of a variant. Genotypes is an
// inverted index: genotype -> ids of the samples carrying it. A sample id
// appears in exactly one bucket.
type StudyEntry struct {
	StudyId   int              `json:"sid"`
	Files     []*FileEntry     `json:"files"`
	Genotypes map[string][]int `json:"gt"`
}

func (s *StudyEntry) HasFile(fileId int) bool {
	for _, f := range s.Files {
		if f.FileId == fileId {
			return true
		}
	}
	return false
}

// BucketOf returns the genotype a sample is recorded under, or "" when the
// sample is in no bucket.
func (s *StudyEntry) BucketOf(sampleId int) string {
	for gt, ids := range s.Genotypes {
		for _, id := range ids {
			if id == sampleId {
				return gt
			}
		}
	}
	return ""
}

// Merge appends another file's call of the same variant, moving every
// sample of the incoming entry into its new bucket.
func (s *StudyEntry) Merge(other *StudyEntry) {
	if s.Genotypes == nil {
		s.Genotypes = map[string][]int{}
	}
	moved := map[int]bool{}
	for _, ids := range other.Genotypes {
		for _, id := range ids {
			moved[id] = true
		}
	}
	for gt, ids := range s.Genotypes {
		kept := ids[:0]
		for _, id := range ids {
			if !moved[id] {
				kept = append(kept, id)
			}
		}
		if len(kept) == 0 {
			delete(s.Genotypes, gt)
		} else {
			s.Genotypes[gt] = kept
		}
	}
	for gt, ids := range other.Genotypes {
		s.Genotypes[gt] = append(s.Genotypes[gt], ids...)
	}
	s.Files = append(s.Files, other.Files...)
}

type FileEntry struct {
	FileId     int               `json:"fid"`
	Filter     string            `json:"filter,omitempty"`
	Qual       float64           `json:"qual,omitempty"`
	Attributes map[string]string `json:"attrs,omitempty"`
}

type CustomAttribute struct {
	Name   string   `json:"name"`
	Key    string   `json:"key"`
	Value  string   `json:"value"`
	Number *float64 `json:"number,omitempty"`
}

type VariantStats struct {
	StudyId          int            `json:"sid"`
	CohortId         int            `json:"cid"`
	AlleleCount      int            `json:"alleleCount"`
	RefAlleleCount   int            `json:"refAlleleCount"`
	AltAlleleCount   int            `json:"altAlleleCount"`
	RefAlleleFreq    float64        `json:"refAlleleFreq"`
	AltAlleleFreq    float64        `json:"altAlleleFreq"`
	Maf              float64        `json:"maf"`
	Mgf              float64        `json:"mgf"`
	MafAllele        string         `json:"mafAllele,omitempty"`
	MgfGenotype      string         `json:"mgfGenotype,omitempty"`
	MissingAlleles   int            `json:"missingAlleles"`
	MissingGenotypes int            `json:"missingGenotypes"`
	GenotypeCounts   map[string]int `json:"gtc,omitempty"`
}

// VariantStatsWrapper carries freshly computed stats for one variant,
// addressed by coordinates
type VariantStatsWrapper struct {
	Chromosome string          `json:"chromosome"`
	Start      int             `json:"start"`
	Reference  string          `json:"reference"`
	Alternate  string          `json:"alternate"`
	Stats      []*VariantStats `json:"stats"`
}

func (w *VariantStatsWrapper) Key() string {
	return BuildKey(w.Chromosome, w.Start, w.Reference, w.Alternate)
}
