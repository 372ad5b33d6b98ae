package widecolumn

import (
	"strings"

	"gohan/variantstore/errors"
	"gohan/variantstore/models/constants"
	"gohan/variantstore/models/constants/genotype"
	"gohan/variantstore/models/constants/search"
	variantType "gohan/variantstore/models/constants/variant-type"
	"gohan/variantstore/models/indexes"
	"gohan/variantstore/models/query"
	"gohan/variantstore/repositories"
)

// Filter is a WHERE clause over the variants table, aliased v, with its
// bind arguments in order
type Filter struct {
	Clause string
	Args   []interface{}
}

var matchAll = &Filter{Clause: "1 = 1"}

func cond(clause string, args ...interface{}) *Filter {
	return &Filter{Clause: clause, Args: args}
}

func join(sep string, filters []*Filter) *Filter {
	if len(filters) == 1 {
		return filters[0]
	}
	parts := make([]string, 0, len(filters))
	args := []interface{}{}
	for _, f := range filters {
		parts = append(parts, f.Clause)
		args = append(args, f.Args...)
	}
	return &Filter{Clause: "(" + strings.Join(parts, sep) + ")", Args: args}
}

func and(filters ...*Filter) *Filter { return join(" AND ", filters) }
func or(filters ...*Filter) *Filter  { return join(" OR ", filters) }

func not(f *Filter) *Filter {
	return &Filter{Clause: "NOT (" + f.Clause + ")", Args: f.Args}
}

func combine(op constants.QueryOperation, filters []*Filter) *Filter {
	if op == constants.QUERY_OP_AND {
		return and(filters...)
	}
	return or(filters...)
}

func in(column string, values []interface{}) *Filter {
	return &Filter{Clause: column + " IN (" + placeholders(len(values)) + ")", Args: values}
}

// exists correlates a row of table with the variant
func exists(table string, alias string, f *Filter) *Filter {
	clause := "EXISTS (SELECT 1 FROM " + table + " " + alias + " WHERE " + alias + ".vkey = v.vkey"
	if f != nil {
		clause += " AND " + f.Clause
		return &Filter{Clause: clause + ")", Args: f.Args}
	}
	return &Filter{Clause: clause + ")"}
}

// entryExists correlates a row of table with the study entry, aliased se
func entryExists(table string, alias string, f *Filter) *Filter {
	return &Filter{
		Clause: "EXISTS (SELECT 1 FROM " + table + " " + alias + " WHERE " + alias + ".vkey = se.vkey AND " +
			alias + ".sid = se.sid AND " + f.Clause + ")",
		Args: f.Args,
	}
}

func studyEntry(f *Filter) *Filter {
	return exists("study_entries", "se", f)
}

// term matches one value of an annotation index list
func term(field string, values []interface{}) *Filter {
	return exists("annotation_terms", "t", and(cond("t.field = ?", field), in("t.value", values)))
}

var comparators = map[constants.SearchOperation]string{
	search.SEARCH_OP_LT: "<",
	search.SEARCH_OP_LE: "<=",
	search.SEARCH_OP_GT: ">",
	search.SEARCH_OP_GE: ">=",
	search.SEARCH_OP_NE: "<>",
}

func compareNumber(column string, op constants.SearchOperation, value float64) *Filter {
	if cmp, ok := comparators[op]; ok {
		return cond(column+" "+cmp+" ?", value)
	}
	return cond(column+" = ?", value)
}

// compareText: patterns are case insensitive contains
func compareText(column string, op constants.SearchOperation, value string) *Filter {
	switch {
	case search.IsPattern(op):
		return cond("LOWER("+column+") LIKE ?", "%"+strings.ToLower(value)+"%")
	case op == search.SEARCH_OP_NE:
		return cond(column+" <> ?", value)
	}
	return cond(column+" = ?", value)
}

func values(list []string) []interface{} {
	out := make([]interface{}, 0, len(list))
	for _, v := range list {
		out = append(out, v)
	}
	return out
}

// stringFilter applies match to a string list. OR lists without
// negations become a single membership test.
func stringFilter(list *query.StringList, expand func(string) []interface{}, match func([]interface{}) *Filter) *Filter {
	if expand == nil {
		expand = func(v string) []interface{} { return []interface{}{v} }
	}
	if list.Op != constants.QUERY_OP_AND && len(list.Negatives()) == 0 {
		all := []interface{}{}
		for _, v := range list.Positives() {
			all = append(all, expand(v)...)
		}
		return match(all)
	}
	filters := []*Filter{}
	for _, t := range list.Terms {
		f := match(expand(t.Value))
		if t.Negated {
			f = not(f)
		}
		filters = append(filters, f)
	}
	return combine(list.Op, filters)
}

func expandType(v string) []interface{} {
	out := []interface{}{}
	for _, t := range variantType.WithSubTypes(constants.VariantType(v)) {
		out = append(out, string(t))
	}
	return out
}

func termOf(field string) func([]interface{}) *Filter {
	return func(vs []interface{}) *Filter { return term(field, vs) }
}

// annotation_terms fields, one per annotation index list
const (
	FIELD_XREFS       = "xrefs"
	FIELD_GENES       = "genes"
	FIELD_GENE_SO     = "geneSo"
	FIELD_SO          = "so"
	FIELD_BIOTYPES    = "biotypes"
	FIELD_FLAGS       = "flags"
	FIELD_TRAIT_IDS   = "traitIds"
	FIELD_TRAIT_NAMES = "traitNames"
	FIELD_HPO         = "hpo"
	FIELD_DRUGS       = "drugs"
	FIELD_KEYWORDS    = "keywords"
)

type paramField struct {
	param query.Param
	field string
}

var annotationFields = []paramField{
	{query.BIOTYPE, FIELD_BIOTYPES},
	{query.TRANSCRIPTION_FLAGS, FIELD_FLAGS},
	{query.GENE_TRAIT_ID, FIELD_TRAIT_IDS},
	{query.HPO, FIELD_HPO},
	{query.DRUG, FIELD_DRUGS},
	{query.PROTEIN_KEYWORD, FIELD_KEYWORDS},
}

var scoreParams = []query.Param{
	query.POLYPHEN, query.SIFT, query.PROTEIN_SUBSTITUTION_SCORE, query.CONSERVATION_SCORE, query.FUNCTIONAL_SCORE,
}

var statsColumns = []paramField{
	{query.STATS_MAF, "s.maf"},
	{query.STATS_MGF, "s.mgf"},
	{query.MISSING_ALLELES, "s.missing_alleles"},
	{query.MISSING_GENOTYPES, "s.missing_genotypes"},
}

// Translate builds the WHERE clause of a resolved query. Custom
// annotations are not indexed by this backend.
func Translate(r *repositories.Resolved) (*Filter, error) {
	if list := r.Comparisons(query.CUSTOM_ANNOTATION); list != nil {
		return nil, errors.UnsupportedOperation(BACKEND, "filtering by "+string(query.CUSTOM_ANNOTATION))
	}

	filters := []*Filter{}
	add := func(f *Filter) {
		if f != nil {
			filters = append(filters, f)
		}
	}

	add(locationFilter(r))

	if list := r.Strings(query.TYPE); list != nil {
		add(stringFilter(list, expandType, func(vs []interface{}) *Filter { return in("v.type", vs) }))
	}
	if b := r.Bool(query.ANNOTATION_EXISTS); b != nil {
		if b.Value {
			add(cond("v.annotated = 1"))
		} else {
			add(cond("v.annotated = 0"))
		}
	}
	if list := r.Strings(query.CONSEQUENCE_TYPE); list != nil && r.StandaloneConsequenceType() {
		add(stringFilter(list, nil, termOf(FIELD_SO)))
	}
	for _, pf := range annotationFields {
		if list := r.Strings(pf.param); list != nil {
			add(stringFilter(list, nil, termOf(pf.field)))
		}
	}
	if list := r.Comparisons(query.GENE_TRAIT_NAME); list != nil {
		add(traitNameFilter(list))
	}
	for _, param := range scoreParams {
		if list := r.Scores(param); list != nil {
			add(scoreFilter(list))
		}
	}
	for _, param := range []query.Param{
		query.POPULATION_ALTERNATE_FREQUENCY, query.POPULATION_REFERENCE_FREQUENCY, query.POPULATION_MINOR_ALLELE_FREQUENCY,
	} {
		if list := r.Frequencies(param); list != nil {
			add(frequencyFilter(param, list))
		}
	}

	for _, f := range studyFilters(r) {
		add(f)
	}
	for _, f := range statsFilters(r) {
		add(f)
	}

	if len(filters) == 0 {
		return matchAll, nil
	}
	return and(filters...), nil
}

func regionFilter(region query.Region) *Filter {
	return cond("(v.vkey >= ? AND v.vkey < ?)",
		indexes.BuildRegionKey(region.Chromosome, region.Start),
		indexes.BuildRegionKey(region.Chromosome, region.End+1))
}

func locationFilter(r *repositories.Resolved) *Filter {
	filters := []*Filter{}
	for _, param := range []query.Param{query.REGION, query.CHROMOSOME} {
		if list := r.Regions(param); list != nil {
			for _, region := range list.Regions {
				filters = append(filters, regionFilter(region))
			}
		}
	}
	if len(r.Keys) > 0 {
		filters = append(filters, in("v.vkey", values(r.Keys)))
	}
	if len(r.Names) > 0 {
		filters = append(filters,
			exists("variant_names", "n", in("n.name", values(r.Names))),
			term(FIELD_XREFS, values(r.Names)))
	}
	if len(r.Xrefs) > 0 {
		filters = append(filters, term(FIELD_XREFS, values(r.Xrefs)))
	}
	if geneSo := r.GeneConsequenceTypes(); geneSo != nil {
		filters = append(filters, term(FIELD_GENE_SO, values(geneSo)))
	} else if len(r.Genes) > 0 {
		filters = append(filters, term(FIELD_GENES, values(r.Genes)))
	}
	if len(filters) == 0 {
		return nil
	}
	return or(filters...)
}

func traitNameFilter(list *query.ComparisonList) *Filter {
	filters := []*Filter{}
	for _, c := range list.Comparisons {
		field := cond("t.field = ?", FIELD_TRAIT_NAMES)
		var f *Filter
		switch {
		case search.IsPattern(c.Op):
			f = exists("annotation_terms", "t", and(field, compareText("t.value", c.Op, c.Operand)))
		case c.Op == search.SEARCH_OP_NE:
			f = not(exists("annotation_terms", "t", and(field, cond("t.value = ?", c.Operand))))
		default:
			f = exists("annotation_terms", "t", and(field, cond("t.value = ?", c.Operand)))
		}
		filters = append(filters, f)
	}
	return combine(list.Op, filters)
}

func scoreFilter(list *query.ScoreList) *Filter {
	filters := []*Filter{}
	for _, c := range list.Scores {
		var cmp *Filter
		if c.IsNumeric() {
			cmp = compareNumber("sc.score", c.Op, *c.Number)
		} else {
			cmp = compareText("sc.description", c.Op, c.Operand)
		}
		filters = append(filters, exists("scores", "sc", and(cond("sc.source = ?", c.Key), cmp)))
	}
	return combine(list.Op, filters)
}

// frequencyFilter mirrors the document backend: a missing population
// has an alternate frequency of 0 and a reference frequency of 1
func frequencyFilter(param query.Param, list *query.FrequencyList) *Filter {
	filters := []*Filter{}
	for _, f := range list.Frequencies {
		population := cond("p.study = ? AND p.population = ?", f.Study, f.Population)

		var cmp *Filter
		switch param {
		case query.POPULATION_ALTERNATE_FREQUENCY:
			cmp = compareNumber("p.alt_freq", f.Op, f.Value)
		case query.POPULATION_REFERENCE_FREQUENCY:
			cmp = compareNumber("p.ref_freq", f.Op, f.Value)
		default:
			ref := compareNumber("p.ref_freq", f.Op, f.Value)
			alt := compareNumber("p.alt_freq", f.Op, f.Value)
			if search.IsLowerBound(f.Op) {
				cmp = or(ref, alt)
			} else {
				cmp = and(ref, alt)
			}
		}

		q := exists("popfreq", "p", and(population, cmp))
		if search.IsLowerBound(f.Op) {
			q = or(q, not(exists("popfreq", "p", population)))
		}
		filters = append(filters, q)
	}
	return combine(list.Op, filters)
}

// inBuckets matches a sample of the current study entry stored under
// any of the buckets
func inBuckets(sampleId int, buckets []string) *Filter {
	return entryExists("sample_genotypes", "g", and(cond("g.sample = ?", sampleId), in("g.gt", values(buckets))))
}

// outsideBuckets matches a sample of the current study entry stored under
// a bucket other than the given ones
func outsideBuckets(sampleId int, buckets []string) *Filter {
	return entryExists("sample_genotypes", "g", and(cond("g.sample = ?", sampleId), not(in("g.gt", values(buckets)))))
}

// genotypeClause: a sample stored under no bucket outside the default
// class carries the default genotype
func genotypeClause(r *repositories.Resolved, clause repositories.GenotypeClause) *Filter {
	positives := []*Filter{}
	negatives := []*Filter{}
	for _, t := range clause.Genotypes {
		gt := genotype.Normalize(t.Value)
		var f *Filter
		if genotype.Contains(r.DefaultClass, gt) {
			f = not(outsideBuckets(clause.SampleId, r.DefaultClass))
		} else {
			f = inBuckets(clause.SampleId, []string{gt})
		}
		if t.Negated {
			negatives = append(negatives, not(f))
		} else {
			positives = append(positives, f)
		}
	}
	filters := negatives
	if len(positives) > 0 {
		filters = append([]*Filter{or(positives...)}, negatives...)
	}
	return and(filters...)
}

// studyFilters groups the study entry predicates under one existential
// study entry when they have to hold on the same entry, and under one
// existential each otherwise
func studyFilters(r *repositories.Resolved) []*Filter {
	root := []*Filter{}
	inner := []*Filter{}

	if len(r.Studies) > 0 {
		if r.StudiesAtRoot || !r.Nest {
			filters := []*Filter{}
			for _, t := range r.Studies {
				f := studyEntry(cond("se.sid = ?", t.Id))
				if t.Negated {
					f = not(f)
				}
				filters = append(filters, f)
			}
			root = append(root, combine(r.StudyOp, filters))
		} else {
			ids := []interface{}{}
			for _, t := range r.Studies {
				ids = append(ids, t.Id)
			}
			inner = append(inner, in("se.sid", ids))
		}
	}

	scoped := []*Filter{}
	if len(r.Files) > 0 {
		filters := []*Filter{}
		for _, t := range r.Files {
			f := entryExists("study_files", "f", cond("f.fid = ?", t.Id))
			if t.Negated {
				f = not(f)
			}
			filters = append(filters, f)
		}
		scoped = append(scoped, combine(r.FilesOp, filters))
	}
	if list := r.Strings(query.FILTER); list != nil {
		scoped = append(scoped, stringFilter(list, nil, func(vs []interface{}) *Filter {
			return entryExists("study_files", "f", in("f.file_filter", vs))
		}))
	}
	if len(r.Samples) > 0 {
		filters := []*Filter{}
		for _, t := range r.Samples {
			f := inBuckets(t.Id, genotype.NonReference)
			if t.Negated {
				f = not(f)
			}
			filters = append(filters, f)
		}
		scoped = append(scoped, combine(r.SamplesOp, filters))
	}
	if len(r.GenotypeClauses) > 0 {
		filters := []*Filter{}
		for _, clause := range r.GenotypeClauses {
			filters = append(filters, genotypeClause(r, clause))
		}
		scoped = append(scoped, combine(r.GenotypeOp, filters))
	}

	// file, sample and genotype ids only mean something inside their study
	if r.Scope != nil && (len(r.Files) > 0 || len(r.Samples) > 0 || len(r.GenotypeClauses) > 0) && len(inner) == 0 {
		inner = append(inner, cond("se.sid = ?", r.Scope.Id))
	}

	if r.Nest || len(inner) > 0 {
		inner = append(inner, scoped...)
		if len(inner) > 0 {
			root = append(root, studyEntry(and(inner...)))
		}
		return root
	}
	for _, f := range scoped {
		root = append(root, studyEntry(f))
	}
	return root
}

func statsFilters(r *repositories.Resolved) []*Filter {
	out := []*Filter{}

	if len(r.Cohorts) > 0 {
		filters := []*Filter{}
		for _, c := range r.Cohorts {
			f := exists("stats", "s", cond("s.sid = ? AND s.cid = ?", c.StudyId, c.CohortId))
			if c.Negated {
				f = not(f)
			}
			filters = append(filters, f)
		}
		out = append(out, combine(r.CohortsOp, filters))
	}

	for _, pf := range statsColumns {
		stats := r.Stats[pf.param]
		if len(stats) == 0 {
			continue
		}
		filters := []*Filter{}
		for _, f := range stats {
			filters = append(filters, exists("stats", "s", and(
				cond("s.sid = ? AND s.cid = ?", f.StudyId, f.CohortId),
				compareNumber(pf.field, f.Op, f.Value),
			)))
		}
		out = append(out, combine(r.StatsOp[pf.param], filters))
	}

	if list := r.Comparisons(query.NUMERIC_GENOTYPE_COUNT); list != nil {
		filters := []*Filter{}
		for _, c := range list.Comparisons {
			inner := []*Filter{}
			if r.Scope != nil {
				inner = append(inner, cond("s.sid = ?", r.Scope.Id))
			}
			inner = append(inner, cond("s.gt = ?", c.Key), compareNumber("s.gt_count", c.Op, *c.Number))
			filters = append(filters, exists("stats_gtc", "s", and(inner...)))
		}
		out = append(out, combine(list.Op, filters))
	}
	return out
}
