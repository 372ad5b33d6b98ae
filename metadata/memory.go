package metadata

import (
	"context"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"

	"gohan/variantstore/errors"

	"gopkg.in/yaml.v2"
)

// Catalog is the YAML document an InMemoryManager is loaded from
type Catalog struct {
	Studies  []*StudyConfiguration `yaml:"studies"`
	GeneSets struct {
		Go         map[string][]string `yaml:"go"`
		Expression map[string][]string `yaml:"expression"`
	} `yaml:"geneSets"`
}

// InMemoryManager serves a catalog held in memory. Every resolved
// StudyConfiguration is a snapshot, later registrations do not alter it.
type InMemoryManager struct {
	mu      sync.RWMutex
	studies map[int]*StudyConfiguration
	catalog Catalog
}

var (
	_ Manager       = (*InMemoryManager)(nil)
	_ GeneResolver  = (*InMemoryManager)(nil)
	_ FileRegistrar = (*InMemoryManager)(nil)
)

func NewInMemoryManager(studies ...*StudyConfiguration) *InMemoryManager {
	m := &InMemoryManager{studies: map[int]*StudyConfiguration{}}
	for _, sc := range studies {
		m.studies[sc.Id] = normalize(sc.Clone())
	}
	return m
}

func LoadCatalog(path string) (*InMemoryManager, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return NewInMemoryManager(), nil
		}
		return nil, errors.Wrapf(err, "reading catalog %s", path)
	}
	return ParseCatalog(raw)
}

func ParseCatalog(raw []byte) (*InMemoryManager, error) {
	var catalog Catalog
	if err := yaml.Unmarshal(raw, &catalog); err != nil {
		return nil, errors.Wrap(err, "parsing catalog")
	}
	m := NewInMemoryManager(catalog.Studies...)
	m.catalog.GeneSets = catalog.GeneSets
	return m, nil
}

func normalize(sc *StudyConfiguration) *StudyConfiguration {
	if sc.SamplesInFiles == nil {
		sc.SamplesInFiles = map[int][]int{}
	}
	if sc.SampleIds == nil {
		sc.SampleIds = map[string]int{}
	}
	if sc.FileIds == nil {
		sc.FileIds = map[string]int{}
	}
	if sc.CohortIds == nil {
		sc.CohortIds = map[string]int{}
	}
	return sc
}

func (m *InMemoryManager) Studies(ctx context.Context) (map[string]int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make(map[string]int, len(m.studies))
	for id, sc := range m.studies {
		out[sc.Name] = id
	}
	return out, nil
}

func (m *InMemoryManager) DefaultStudy(ctx context.Context) (*StudyConfiguration, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if len(m.studies) != 1 {
		return nil, nil
	}
	for _, sc := range m.studies {
		return sc.Clone(), nil
	}
	return nil, nil
}

func (m *InMemoryManager) ResolveStudy(ctx context.Context, nameOrId string) (*StudyConfiguration, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, sc := range m.studies {
		if sc.Name == nameOrId {
			return sc.Clone(), nil
		}
	}
	if id, err := strconv.Atoi(nameOrId); err == nil {
		if sc, ok := m.studies[id]; ok {
			return sc.Clone(), nil
		}
	}
	return nil, errors.UnresolvedReference("study", nameOrId)
}

func (m *InMemoryManager) ResolveSample(ctx context.Context, nameOrId string, sc *StudyConfiguration) (int, error) {
	return resolve("sample", nameOrId, sc.SampleIds)
}

func (m *InMemoryManager) ResolveFile(ctx context.Context, nameOrId string, sc *StudyConfiguration) (int, error) {
	return resolve("file", nameOrId, sc.FileIds)
}

func (m *InMemoryManager) ResolveCohort(ctx context.Context, nameOrId string, sc *StudyConfiguration) (int, error) {
	return resolve("cohort", nameOrId, sc.CohortIds)
}

func resolve(kind string, nameOrId string, ids map[string]int) (int, error) {
	if id, ok := ids[nameOrId]; ok {
		return id, nil
	}
	if n, err := strconv.Atoi(nameOrId); err == nil {
		for _, id := range ids {
			if id == n {
				return id, nil
			}
		}
	}
	return 0, errors.UnresolvedReference(kind, nameOrId)
}

func (m *InMemoryManager) IndexedFiles(sc *StudyConfiguration) []int {
	out := append([]int{}, sc.IndexedFiles...)
	sort.Ints(out)
	return out
}

func (m *InMemoryManager) SamplesInFile(sc *StudyConfiguration, fileId int) []int {
	return append([]int{}, sc.SamplesInFiles[fileId]...)
}

func (m *InMemoryManager) GenesByGoTerms(ctx context.Context, terms []string) ([]string, error) {
	return m.genesIn(m.catalog.GeneSets.Go, terms), nil
}

func (m *InMemoryManager) GenesByExpression(ctx context.Context, tissues []string) ([]string, error) {
	return m.genesIn(m.catalog.GeneSets.Expression, tissues), nil
}

func (m *InMemoryManager) genesIn(sets map[string][]string, keys []string) []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	seen := map[string]bool{}
	out := []string{}
	for _, k := range keys {
		for _, g := range sets[strings.TrimSpace(k)] {
			if !seen[g] {
				seen[g] = true
				out = append(out, g)
			}
		}
	}
	return out
}

func (m *InMemoryManager) RegisterFile(ctx context.Context, study string, fileName string, sampleNames []string) (*StudyConfiguration, int, []int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var sc *StudyConfiguration
	for _, s := range m.studies {
		if s.Name == study {
			sc = s
			break
		}
	}
	if sc == nil {
		sc = normalize(&StudyConfiguration{Id: nextId(m.studyIds()), Name: study})
		m.studies[sc.Id] = sc
	}

	fileId, ok := sc.FileIds[fileName]
	if !ok {
		fileId = nextId(values(sc.FileIds))
		sc.FileIds[fileName] = fileId
	}

	sampleIds := make([]int, 0, len(sampleNames))
	for _, name := range sampleNames {
		id, ok := sc.SampleIds[name]
		if !ok {
			id = nextId(values(sc.SampleIds))
			sc.SampleIds[name] = id
		}
		sampleIds = append(sampleIds, id)
	}
	sc.SamplesInFiles[fileId] = sampleIds

	return sc.Clone(), fileId, append([]int{}, sampleIds...), nil
}

func (m *InMemoryManager) RegisterIndexedFile(ctx context.Context, studyId int, fileId int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	sc, ok := m.studies[studyId]
	if !ok {
		return errors.UnresolvedReference("study", strconv.Itoa(studyId))
	}
	if !sc.IsFileIndexed(fileId) {
		sc.IndexedFiles = append(sc.IndexedFiles, fileId)
	}
	return nil
}

// RemoveStudy drops a study from the catalog
func (m *InMemoryManager) RemoveStudy(studyId int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.studies, studyId)
}

func (m *InMemoryManager) studyIds() []int {
	ids := make([]int, 0, len(m.studies))
	for id := range m.studies {
		ids = append(ids, id)
	}
	return ids
}

func values(m map[string]int) []int {
	out := make([]int, 0, len(m))
	for _, v := range m {
		out = append(out, v)
	}
	return out
}

func nextId(ids []int) int {
	max := 0
	for _, id := range ids {
		if id > max {
			max = id
		}
	}
	return max + 1
}
