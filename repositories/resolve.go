package repositories

import (
	"context"
	"strconv"
	"strings"

	"gohan/variantstore/errors"
	"gohan/variantstore/metadata"
	"gohan/variantstore/models/constants"
	"gohan/variantstore/models/indexes"
	"gohan/variantstore/models/query"
)

// IdTerm is a resolved list element
type IdTerm struct {
	Id      int
	Negated bool
}

type GenotypeClause struct {
	SampleId  int
	Genotypes []query.Term
}

type StatsFilter struct {
	StudyId  int
	CohortId int
	Op       constants.SearchOperation
	Value    float64
}

type CohortTerm struct {
	StudyId  int
	CohortId int
	Negated  bool
}

// Resolved is a parsed query whose names have been mapped to stable ids
// and whose location terms have been classified. Translators only build
// backend filters out of it.
type Resolved struct {
	*query.Parsed

	Registered    int
	Nest          bool
	StudiesAtRoot bool

	StudyOp constants.QueryOperation
	Studies []IdTerm

	// the study files, samples and genotypes were resolved against
	Scope *metadata.StudyConfiguration

	FilesOp constants.QueryOperation
	Files   []IdTerm

	SamplesOp constants.QueryOperation
	Samples   []IdTerm

	GenotypeOp      constants.QueryOperation
	GenotypeClauses []GenotypeClause
	// the default genotype and its spellings
	DefaultClass []string

	CohortsOp constants.QueryOperation
	Cohorts   []CohortTerm

	StatsOp map[query.Param]constants.QueryOperation
	Stats   map[query.Param][]StatsFilter

	// location
	Keys  []string
	Names []string
	Xrefs []string
	Genes []string
}

// HasNonGeneLocation tells whether some location filter other than genes
// is present
func (r *Resolved) HasNonGeneLocation() bool {
	return r.Has(query.REGION) || r.Has(query.CHROMOSOME) || len(r.Keys) > 0 || len(r.Names) > 0 || len(r.Xrefs) > 0
}

// GeneConsequenceTypes returns the compound gene x consequence type keys
// when both filters are present and combinable.
func (r *Resolved) GeneConsequenceTypes() []string {
	ct := r.Strings(query.CONSEQUENCE_TYPE)
	if len(r.Genes) == 0 || ct == nil || ct.Op == constants.QUERY_OP_AND || len(ct.Negatives()) > 0 {
		return nil
	}
	out := []string{}
	for _, g := range r.Genes {
		for _, acc := range ct.Values() {
			out = append(out, g+"_"+acc)
		}
	}
	return out
}

// StandaloneConsequenceType tells whether consequence types need their
// own filter next to the gene x consequence type keys
func (r *Resolved) StandaloneConsequenceType() bool {
	if !r.Has(query.CONSEQUENCE_TYPE) {
		return false
	}
	if r.GeneConsequenceTypes() == nil {
		return true
	}
	return r.HasNonGeneLocation()
}

func Resolve(ctx context.Context, q *query.Query, manager metadata.Manager, genes metadata.GeneResolver) (*Resolved, error) {
	parsed, err := q.Parse()
	if err != nil {
		return nil, err
	}

	studies, err := manager.Studies(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "listing studies")
	}

	r := &Resolved{
		Parsed:        parsed,
		Registered:    len(studies),
		Nest:          query.NestUnderStudyEntry(parsed, len(studies)),
		StudiesAtRoot: query.StudiesAtRoot(parsed),
		StatsOp:       map[query.Param]constants.QueryOperation{},
		Stats:         map[query.Param][]StatsFilter{},
	}

	if err := r.resolveStudies(ctx, manager); err != nil {
		return nil, err
	}
	if err := r.resolveStudyScoped(ctx, manager); err != nil {
		return nil, err
	}
	if err := r.resolveStats(ctx, manager); err != nil {
		return nil, err
	}
	if err := r.classifyLocation(ctx, genes); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *Resolved) resolveStudies(ctx context.Context, manager metadata.Manager) error {
	list := r.Strings(query.STUDIES)
	if list != nil {
		r.StudyOp = list.Op
		for _, t := range list.Terms {
			sc, err := manager.ResolveStudy(ctx, t.Value)
			if err != nil {
				return err
			}
			r.Studies = append(r.Studies, IdTerm{Id: sc.Id, Negated: t.Negated})
			if !t.Negated && len(list.Positives()) == 1 {
				r.Scope = sc
			}
		}
	}
	if r.Scope == nil {
		sc, err := manager.DefaultStudy(ctx)
		if err != nil {
			return err
		}
		r.Scope = sc
	}
	return nil
}

func (r *Resolved) scopeFor(param query.Param) (*metadata.StudyConfiguration, error) {
	if r.Scope == nil {
		raw := ""
		if v := r.Strings(param); v != nil {
			raw = strings.Join(v.Values(), ",")
		}
		return nil, errors.MalformedParameter(string(param), raw, "a single study has to be selected with 'studies'")
	}
	return r.Scope, nil
}

func (r *Resolved) resolveStudyScoped(ctx context.Context, manager metadata.Manager) error {
	if files := r.Strings(query.FILES); files != nil {
		sc, err := r.scopeFor(query.FILES)
		if err != nil {
			return err
		}
		r.FilesOp = files.Op
		for _, t := range files.Terms {
			id, err := manager.ResolveFile(ctx, t.Value, sc)
			if err != nil {
				return err
			}
			r.Files = append(r.Files, IdTerm{Id: id, Negated: t.Negated})
		}
	}

	if samples := r.Strings(query.SAMPLES); samples != nil {
		sc, err := r.scopeFor(query.SAMPLES)
		if err != nil {
			return err
		}
		r.SamplesOp = samples.Op
		for _, t := range samples.Terms {
			id, err := manager.ResolveSample(ctx, t.Value, sc)
			if err != nil {
				return err
			}
			r.Samples = append(r.Samples, IdTerm{Id: id, Negated: t.Negated})
		}
	}

	if gts := r.Genotypes(); gts != nil {
		sc, err := r.scopeFor(query.GENOTYPE)
		if err != nil {
			return err
		}
		r.GenotypeOp = gts.Op
		for _, clause := range gts.Clauses {
			id, err := manager.ResolveSample(ctx, clause.Sample, sc)
			if err != nil {
				return err
			}
			r.GenotypeClauses = append(r.GenotypeClauses, GenotypeClause{SampleId: id, Genotypes: clause.Genotypes})
		}
		r.DefaultClass = sc.DefaultGenotypeClass()
	}
	return nil
}

// resolveCohort maps `[study:]cohort` onto ids using the default study
// when no study is given
func (r *Resolved) resolveCohort(ctx context.Context, manager metadata.Manager, param query.Param, raw string, study string, cohort string) (int, int, error) {
	var sc *metadata.StudyConfiguration
	if study != "" {
		var err error
		if sc, err = manager.ResolveStudy(ctx, study); err != nil {
			return 0, 0, err
		}
	} else if sc = r.Scope; sc == nil {
		return 0, 0, errors.MalformedParameter(string(param), raw, "expected {study}:{cohort}")
	}
	cohortId, err := manager.ResolveCohort(ctx, cohort, sc)
	if err != nil {
		return 0, 0, err
	}
	return sc.Id, cohortId, nil
}

var statsParams = []query.Param{query.STATS_MAF, query.STATS_MGF, query.MISSING_ALLELES, query.MISSING_GENOTYPES}

func (r *Resolved) resolveStats(ctx context.Context, manager metadata.Manager) error {
	if cohorts := r.Strings(query.COHORTS); cohorts != nil {
		r.CohortsOp = cohorts.Op
		for _, t := range cohorts.Terms {
			study, cohort := "", t.Value
			if s, c, ok := strings.Cut(t.Value, ":"); ok {
				study, cohort = s, c
			}
			studyId, cohortId, err := r.resolveCohort(ctx, manager, query.COHORTS, t.Value, study, cohort)
			if err != nil {
				return err
			}
			r.Cohorts = append(r.Cohorts, CohortTerm{StudyId: studyId, CohortId: cohortId, Negated: t.Negated})
		}
	}

	for _, param := range statsParams {
		list := r.Parsed.Stats(param)
		if list == nil {
			continue
		}
		r.StatsOp[param] = list.Op
		for _, f := range list.Filters {
			raw := f.Cohort
			if f.Study != "" {
				raw = f.Study + ":" + f.Cohort
			}
			studyId, cohortId, err := r.resolveCohort(ctx, manager, param, raw, f.Study, f.Cohort)
			if err != nil {
				return err
			}
			r.Stats[param] = append(r.Stats[param], StatsFilter{StudyId: studyId, CohortId: cohortId, Op: f.Op, Value: f.Value})
		}
	}
	return nil
}

// accession prefixes matched against annotation cross references; any
// other xref value is taken as a gene name
var accessionPrefixes = []string{"rs", "RCV", "SCV", "VCV", "COSM", "COSV", "ENSG", "ENST", "ENSP"}

func IsAccession(id string) bool {
	for _, prefix := range accessionPrefixes {
		if strings.HasPrefix(id, prefix) && len(id) > len(prefix) {
			if _, err := strconv.Atoi(id[len(prefix):len(prefix)+1]); err == nil {
				return true
			}
		}
	}
	return false
}

func (r *Resolved) classifyLocation(ctx context.Context, genes metadata.GeneResolver) error {
	if ids := r.Strings(query.ID); ids != nil {
		for _, id := range ids.Values() {
			if chrom, start, ref, alt, ok := indexes.ParseVariantId(id); ok {
				r.Keys = append(r.Keys, indexes.BuildKey(chrom, start, ref, alt))
			} else {
				r.Names = append(r.Names, id)
			}
		}
	}
	if xrefs := r.Strings(query.XREF); xrefs != nil {
		for _, x := range xrefs.Values() {
			if chrom, start, ref, alt, ok := indexes.ParseVariantId(x); ok {
				r.Keys = append(r.Keys, indexes.BuildKey(chrom, start, ref, alt))
			} else if IsAccession(x) {
				r.Xrefs = append(r.Xrefs, x)
			} else {
				r.Genes = append(r.Genes, x)
			}
		}
	}
	if g := r.Strings(query.GENE); g != nil {
		r.Genes = append(r.Genes, g.Values()...)
	}

	for _, param := range []query.Param{query.GO_TERM, query.EXPRESSION} {
		list := r.Strings(param)
		if list == nil {
			continue
		}
		if genes == nil {
			return errors.UnsupportedOperation("metadata", "resolving "+string(param))
		}
		var (
			found []string
			err   error
		)
		if param == query.GO_TERM {
			found, err = genes.GenesByGoTerms(ctx, list.Values())
		} else {
			found, err = genes.GenesByExpression(ctx, list.Values())
		}
		if err != nil {
			return err
		}
		if len(found) == 0 {
			return errors.UnresolvedReference(string(param), strings.Join(list.Values(), ","))
		}
		r.Genes = append(r.Genes, found...)
	}
	return nil
}
