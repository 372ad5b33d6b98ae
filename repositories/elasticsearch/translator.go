package elasticsearch

import (
	"strconv"
	"strings"

	"gohan/variantstore/models/constants"
	"gohan/variantstore/models/constants/genotype"
	"gohan/variantstore/models/constants/search"
	variantType "gohan/variantstore/models/constants/variant-type"
	"gohan/variantstore/models/indexes"
	"gohan/variantstore/models/query"
	"gohan/variantstore/repositories"
)

type esQuery = map[string]interface{}

var matchAll = esQuery{"match_all": map[string]interface{}{}}

func term(field string, value interface{}) esQuery {
	return esQuery{"term": map[string]interface{}{field: value}}
}

func terms(field string, values interface{}) esQuery {
	return esQuery{"terms": map[string]interface{}{field: values}}
}

func rangeOf(field string, bounds map[string]interface{}) esQuery {
	return esQuery{"range": map[string]interface{}{field: bounds}}
}

func exists(field string) esQuery {
	return esQuery{"exists": map[string]interface{}{"field": field}}
}

func nested(path string, q esQuery) esQuery {
	return esQuery{"nested": map[string]interface{}{"path": path, "query": q}}
}

func not(q esQuery) esQuery {
	return esQuery{"bool": map[string]interface{}{"must_not": []esQuery{q}}}
}

func and(clauses ...esQuery) esQuery {
	if len(clauses) == 1 {
		return clauses[0]
	}
	return esQuery{"bool": map[string]interface{}{"filter": clauses}}
}

func or(clauses ...esQuery) esQuery {
	if len(clauses) == 1 {
		return clauses[0]
	}
	return esQuery{"bool": map[string]interface{}{"should": clauses, "minimum_should_match": 1}}
}

func combine(op constants.QueryOperation, clauses []esQuery) esQuery {
	if op == constants.QUERY_OP_AND {
		return and(clauses...)
	}
	return or(clauses...)
}

var rangeKeys = map[constants.SearchOperation]string{
	search.SEARCH_OP_LT: "lt",
	search.SEARCH_OP_LE: "lte",
	search.SEARCH_OP_GT: "gt",
	search.SEARCH_OP_GE: "gte",
}

// compareNumber builds the filter of `field {op} value`
func compareNumber(field string, op constants.SearchOperation, value float64) esQuery {
	if key, ok := rangeKeys[op]; ok {
		return rangeOf(field, map[string]interface{}{key: value})
	}
	if op == search.SEARCH_OP_NE {
		return not(term(field, value))
	}
	return term(field, value)
}

// compareText handles non numeric operands: patterns are case
// insensitive contains, '!=' is inequality, every other operator equality
func compareText(field string, op constants.SearchOperation, value string) esQuery {
	switch {
	case search.IsPattern(op):
		return esQuery{"wildcard": map[string]interface{}{field: map[string]interface{}{
			"value":            "*" + value + "*",
			"case_insensitive": true,
		}}}
	case op == search.SEARCH_OP_NE:
		return not(term(field, value))
	}
	return term(field, value)
}

// stringFilter turns a string list into terms on field. expand may map a
// value to several stored values.
func stringFilter(field string, list *query.StringList, expand func(string) []interface{}) esQuery {
	if expand == nil {
		expand = func(v string) []interface{} { return []interface{}{v} }
	}
	if list.Op != constants.QUERY_OP_AND && len(list.Negatives()) == 0 {
		values := []interface{}{}
		for _, v := range list.Positives() {
			values = append(values, expand(v)...)
		}
		return terms(field, values)
	}
	clauses := []esQuery{}
	for _, t := range list.Terms {
		q := terms(field, expand(t.Value))
		if t.Negated {
			q = not(q)
		}
		clauses = append(clauses, q)
	}
	return combine(list.Op, clauses)
}

func expandType(v string) []interface{} {
	out := []interface{}{}
	for _, t := range variantType.WithSubTypes(constants.VariantType(v)) {
		out = append(out, string(t))
	}
	return out
}

func expandInt(v string) []interface{} {
	n, _ := strconv.Atoi(v)
	return []interface{}{n}
}

type paramField struct {
	param query.Param
	field string
}

// simple annotation index lists
var annotationFields = []paramField{
	{query.BIOTYPE, "annotationIndex.biotypes"},
	{query.TRANSCRIPTION_FLAGS, "annotationIndex.flags"},
	{query.GENE_TRAIT_ID, "annotationIndex.traitIds"},
	{query.HPO, "annotationIndex.hpo"},
	{query.DRUG, "annotationIndex.drugs"},
	{query.PROTEIN_KEYWORD, "annotationIndex.keywords"},
}

var scoreParams = []query.Param{
	query.POLYPHEN, query.SIFT, query.PROTEIN_SUBSTITUTION_SCORE, query.CONSERVATION_SCORE, query.FUNCTIONAL_SCORE,
}

var statsFields = []paramField{
	{query.STATS_MAF, "stats.maf"},
	{query.STATS_MGF, "stats.mgf"},
	{query.MISSING_ALLELES, "stats.missingAlleles"},
	{query.MISSING_GENOTYPES, "stats.missingGenotypes"},
}

// Translate builds the filter of a resolved query. The result is always a
// complete query clause; an empty query matches every variant.
func Translate(r *repositories.Resolved) esQuery {
	filters := []esQuery{}
	add := func(q esQuery) {
		if q != nil {
			filters = append(filters, q)
		}
	}

	add(locationFilter(r))

	if list := r.Strings(query.TYPE); list != nil {
		add(stringFilter("type", list, expandType))
	}
	if b := r.Bool(query.ANNOTATION_EXISTS); b != nil {
		q := term("annotationIndex.annotated", true)
		if !b.Value {
			q = not(q)
		}
		add(q)
	}
	if list := r.Strings(query.CONSEQUENCE_TYPE); list != nil && r.StandaloneConsequenceType() {
		add(stringFilter("annotationIndex.so", list, expandInt))
	}
	for _, pf := range annotationFields {
		if list := r.Strings(pf.param); list != nil {
			add(stringFilter(pf.field, list, nil))
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
	if list := r.Comparisons(query.CUSTOM_ANNOTATION); list != nil {
		add(customAnnotationFilter(list))
	}

	for _, q := range studyFilters(r) {
		add(q)
	}
	for _, q := range statsFilters(r) {
		add(q)
	}

	if len(filters) == 0 {
		return matchAll
	}
	return esQuery{"bool": map[string]interface{}{"filter": filters}}
}

func regionFilter(region query.Region) esQuery {
	return rangeOf("id", map[string]interface{}{
		"gte": indexes.BuildRegionKey(region.Chromosome, region.Start),
		"lt":  indexes.BuildRegionKey(region.Chromosome, region.End+1),
	})
}

// locationFilter ORs every location predicate: regions, chromosomes,
// variant ids, names, accessions and genes
func locationFilter(r *repositories.Resolved) esQuery {
	clauses := []esQuery{}
	for _, param := range []query.Param{query.REGION, query.CHROMOSOME} {
		if list := r.Regions(param); list != nil {
			for _, region := range list.Regions {
				clauses = append(clauses, regionFilter(region))
			}
		}
	}
	if len(r.Keys) > 0 {
		clauses = append(clauses, terms("id", r.Keys))
	}
	if len(r.Names) > 0 {
		clauses = append(clauses, terms("names", r.Names), terms("annotationIndex.xrefs", r.Names))
	}
	if len(r.Xrefs) > 0 {
		clauses = append(clauses, terms("annotationIndex.xrefs", r.Xrefs))
	}
	if geneSo := r.GeneConsequenceTypes(); geneSo != nil {
		clauses = append(clauses, terms("annotationIndex.geneSo", geneSo))
	} else if len(r.Genes) > 0 {
		clauses = append(clauses, terms("annotationIndex.genes", r.Genes))
	}
	if len(clauses) == 0 {
		return nil
	}
	return or(clauses...)
}

func traitNameFilter(list *query.ComparisonList) esQuery {
	clauses := []esQuery{}
	for _, c := range list.Comparisons {
		var q esQuery
		switch {
		case search.IsPattern(c.Op):
			q = esQuery{"match": map[string]interface{}{"annotationIndex.traitNames": map[string]interface{}{
				"query":    c.Operand,
				"operator": "and",
			}}}
		case c.Op == search.SEARCH_OP_NE:
			q = not(term("annotationIndex.traitNames.keyword", c.Operand))
		default:
			q = term("annotationIndex.traitNames.keyword", c.Operand)
		}
		clauses = append(clauses, q)
	}
	return combine(list.Op, clauses)
}

func scoreFilter(list *query.ScoreList) esQuery {
	clauses := []esQuery{}
	for _, c := range list.Scores {
		var cmp esQuery
		if c.IsNumeric() {
			cmp = compareNumber("annotationIndex.scores.score", c.Op, *c.Number)
		} else if c.Op == search.SEARCH_OP_NE {
			cmp = not(term("annotationIndex.scores.description", c.Operand))
		} else {
			cmp = term("annotationIndex.scores.description", c.Operand)
		}
		clauses = append(clauses, nested("annotationIndex.scores", and(
			term("annotationIndex.scores.source", c.Key),
			cmp,
		)))
	}
	return combine(list.Op, clauses)
}

// frequencyFilter matches one population element. A variant missing the
// population counts as having an alternate frequency of 0 (reference
// frequency of 1), so rare filters also match it.
func frequencyFilter(param query.Param, list *query.FrequencyList) esQuery {
	const path = "annotationIndex.popFreqs"
	clauses := []esQuery{}
	for _, f := range list.Frequencies {
		population := and(term(path+".study", f.Study), term(path+".population", f.Population))

		var cmp esQuery
		switch param {
		case query.POPULATION_ALTERNATE_FREQUENCY:
			cmp = compareNumber(path+".altAlleleFreq", f.Op, f.Value)
		case query.POPULATION_REFERENCE_FREQUENCY:
			cmp = compareNumber(path+".refAlleleFreq", f.Op, f.Value)
		default:
			ref := compareNumber(path+".refAlleleFreq", f.Op, f.Value)
			alt := compareNumber(path+".altAlleleFreq", f.Op, f.Value)
			if search.IsLowerBound(f.Op) {
				cmp = or(ref, alt)
			} else {
				cmp = and(ref, alt)
			}
		}

		q := nested(path, and(population, cmp))
		if search.IsLowerBound(f.Op) {
			q = or(q, not(nested(path, population)))
		}
		clauses = append(clauses, q)
	}
	return combine(list.Op, clauses)
}

func customAnnotationFilter(list *query.ComparisonList) esQuery {
	const path = "customAnnotations"
	clauses := []esQuery{}
	for _, c := range list.Comparisons {
		name, key, _ := strings.Cut(c.Key, ".")
		var cmp esQuery
		if c.IsNumeric() {
			cmp = compareNumber(path+".number", c.Op, *c.Number)
		} else {
			cmp = compareText(path+".value", c.Op, c.Operand)
		}
		clauses = append(clauses, nested(path, and(
			term(path+".name", name),
			term(path+".key", key),
			cmp,
		)))
	}
	return combine(list.Op, clauses)
}

func bucketField(gt string) string {
	return "studies.gt." + gt
}

// inBuckets matches a sample stored under any of the buckets
func inBuckets(sampleId int, buckets []string) esQuery {
	clauses := make([]esQuery, 0, len(buckets))
	for _, gt := range buckets {
		clauses = append(clauses, term(bucketField(gt), sampleId))
	}
	return or(clauses...)
}

// inAnyBucket matches a sample stored under any bucket of the entry,
// whatever its name
func inAnyBucket(sampleId int) esQuery {
	return esQuery{"multi_match": map[string]interface{}{
		"query":   sampleId,
		"fields":  []string{bucketField("*")},
		"lenient": true,
	}}
}

// genotypeClause matches one `sample:gt,...` clause. A sample stored
// under no bucket outside the default class carries the default genotype.
// A sample sits in one bucket only, so this is: in no bucket at all, or
// in a default one.
func genotypeClause(r *repositories.Resolved, clause repositories.GenotypeClause) esQuery {
	positives := []esQuery{}
	negatives := []esQuery{}
	for _, t := range clause.Genotypes {
		gt := genotype.Normalize(t.Value)
		var q esQuery
		if genotype.Contains(r.DefaultClass, gt) {
			q = or(not(inAnyBucket(clause.SampleId)), inBuckets(clause.SampleId, r.DefaultClass))
		} else {
			q = term(bucketField(gt), clause.SampleId)
		}
		if t.Negated {
			negatives = append(negatives, not(q))
		} else {
			positives = append(positives, q)
		}
	}
	clauses := negatives
	if len(positives) > 0 {
		clauses = append([]esQuery{or(positives...)}, negatives...)
	}
	return and(clauses...)
}

func idFilter(field string, op constants.QueryOperation, ids []repositories.IdTerm) esQuery {
	clauses := []esQuery{}
	for _, t := range ids {
		q := term(field, t.Id)
		if t.Negated {
			q = not(q)
		}
		clauses = append(clauses, q)
	}
	return combine(op, clauses)
}

// studyFilters builds the study entry predicates. They are wrapped in
// one nested clause when they have to hold on the same entry, and in one
// nested clause each otherwise.
func studyFilters(r *repositories.Resolved) []esQuery {
	const path = "studies"
	root := []esQuery{}
	inner := []esQuery{}

	if len(r.Studies) > 0 {
		if r.StudiesAtRoot || !r.Nest {
			clauses := []esQuery{}
			for _, t := range r.Studies {
				q := nested(path, term(path+".sid", t.Id))
				if t.Negated {
					q = not(q)
				}
				clauses = append(clauses, q)
			}
			root = append(root, combine(r.StudyOp, clauses))
		} else {
			ids := []int{}
			for _, t := range r.Studies {
				ids = append(ids, t.Id)
			}
			inner = append(inner, terms(path+".sid", ids))
		}
	}

	scoped := []esQuery{}
	if len(r.Files) > 0 {
		scoped = append(scoped, idFilter(path+".files.fid", r.FilesOp, r.Files))
	}
	if list := r.Strings(query.FILTER); list != nil {
		scoped = append(scoped, stringFilter(path+".files.filter", list, nil))
	}
	if len(r.Samples) > 0 {
		clauses := []esQuery{}
		for _, t := range r.Samples {
			q := inBuckets(t.Id, genotype.NonReference)
			if t.Negated {
				q = not(q)
			}
			clauses = append(clauses, q)
		}
		scoped = append(scoped, combine(r.SamplesOp, clauses))
	}
	if len(r.GenotypeClauses) > 0 {
		clauses := []esQuery{}
		for _, clause := range r.GenotypeClauses {
			clauses = append(clauses, genotypeClause(r, clause))
		}
		scoped = append(scoped, combine(r.GenotypeOp, clauses))
	}

	// file, sample and genotype ids only mean something inside their study
	if r.Scope != nil && (len(r.Files) > 0 || len(r.Samples) > 0 || len(r.GenotypeClauses) > 0) && len(inner) == 0 {
		inner = append(inner, term(path+".sid", r.Scope.Id))
	}

	if r.Nest || len(inner) > 0 {
		inner = append(inner, scoped...)
		if len(inner) > 0 {
			root = append(root, nested(path, and(inner...)))
		}
		return root
	}
	for _, q := range scoped {
		root = append(root, nested(path, q))
	}
	return root
}

func statsFilters(r *repositories.Resolved) []esQuery {
	const path = "stats"
	out := []esQuery{}

	if len(r.Cohorts) > 0 {
		clauses := []esQuery{}
		for _, c := range r.Cohorts {
			q := nested(path, and(term(path+".sid", c.StudyId), term(path+".cid", c.CohortId)))
			if c.Negated {
				q = not(q)
			}
			clauses = append(clauses, q)
		}
		out = append(out, combine(r.CohortsOp, clauses))
	}

	for _, pf := range statsFields {
		filters := r.Stats[pf.param]
		if len(filters) == 0 {
			continue
		}
		clauses := []esQuery{}
		for _, f := range filters {
			clauses = append(clauses, nested(path, and(
				term(path+".sid", f.StudyId),
				term(path+".cid", f.CohortId),
				compareNumber(pf.field, f.Op, f.Value),
			)))
		}
		out = append(out, combine(r.StatsOp[pf.param], clauses))
	}

	if list := r.Comparisons(query.NUMERIC_GENOTYPE_COUNT); list != nil {
		clauses := []esQuery{}
		for _, c := range list.Comparisons {
			inner := []esQuery{}
			if r.Scope != nil {
				inner = append(inner, term(path+".sid", r.Scope.Id))
			}
			inner = append(inner, compareNumber(path+".gtc."+c.Key, c.Op, *c.Number))
			clauses = append(clauses, nested(path, and(inner...)))
		}
		out = append(out, combine(list.Op, clauses))
	}
	return out
}
