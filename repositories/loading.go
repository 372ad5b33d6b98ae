package repositories

import (
	"gohan/variantstore/metadata"
	"gohan/variantstore/models/constants/genotype"
	variantType "gohan/variantstore/models/constants/variant-type"
	"gohan/variantstore/models/indexes"
)

// Loadable drops the records that are never stored and returns the
// variants with their study entry for the loaded study
func Loadable(batch []*indexes.Variant, sc *metadata.StudyConfiguration) ([]*indexes.Variant, int64) {
	var skipped int64
	out := make([]*indexes.Variant, 0, len(batch))
	for _, v := range batch {
		if v.Type == variantType.NO_VARIATION {
			skipped++
			continue
		}
		if variantType.IsStructural(v.Type) && v.End < v.Start {
			skipped++
			continue
		}
		if v.Study(sc.Id) == nil {
			skipped++
			continue
		}
		out = append(out, v)
	}
	return out, skipped
}

// StudyEntryFor builds the study entry of one loaded record. The file's
// own calls always go to entry; prefilled additionally puts the samples
// already loaded through other files under the unknown genotype.
func StudyEntryFor(v *indexes.Variant, fileId int, sc *metadata.StudyConfiguration) (entry *indexes.StudyEntry, prefilled *indexes.StudyEntry) {
	src := v.Study(sc.Id)
	entry = &indexes.StudyEntry{StudyId: sc.Id, Files: src.Files, Genotypes: map[string][]int{}}
	if !sc.ExcludeGenotypes {
		for gt, ids := range src.Genotypes {
			entry.Genotypes[gt] = append([]int{}, ids...)
		}
	}

	prefilled = &indexes.StudyEntry{StudyId: sc.Id, Files: entry.Files, Genotypes: map[string][]int{}}
	for gt, ids := range entry.Genotypes {
		prefilled.Genotypes[gt] = ids
	}
	if sc.ExcludeGenotypes || sc.DefaultGenotype() == genotype.Unknown {
		return entry, prefilled
	}
	if loaded := sc.LoadedSamples(fileId); len(loaded) > 0 {
		prefilled.Genotypes[genotype.Unknown] = append(append([]int{}, prefilled.Genotypes[genotype.Unknown]...), loaded...)
	}
	return entry, prefilled
}

func sameSamples(a []int, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	set := map[int]bool{}
	for _, id := range a {
		set[id] = true
	}
	for _, id := range b {
		if !set[id] {
			return false
		}
	}
	return true
}

// FillGapsNeeded tells whether the variants already stored for a study
// have to learn about the samples of a newly loaded file
func FillGapsNeeded(newSampleIds []int, sc *metadata.StudyConfiguration) bool {
	if sc.ExcludeGenotypes || sc.DefaultGenotype() == genotype.Unknown {
		return false
	}
	indexed := sc.IndexedSamples()
	if len(indexed) == 0 || len(newSampleIds) == 0 {
		return false
	}
	return !sameSamples(indexed, newSampleIds)
}
