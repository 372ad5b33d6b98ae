package query

import (
	"net/url"
	"strconv"
	"strings"
	"time"

	"gohan/variantstore/errors"
)

// option names accepted next to the query params on the HTTP surface
const (
	OPT_INCLUDE    = "include"
	OPT_EXCLUDE    = "exclude"
	OPT_LIMIT      = "limit"
	OPT_SKIP       = "skip"
	OPT_SORT       = "sort"
	OPT_SKIP_COUNT = "skipCount"
	OPT_SUMMARY    = "summary"
	OPT_BATCH_SIZE = "batchSize"
	OPT_EXPLAIN    = "explain"
	OPT_TIMEOUT    = "timeout"
)

var OptionNames = []string{
	OPT_INCLUDE, OPT_EXCLUDE, OPT_LIMIT, OPT_SKIP, OPT_SORT, OPT_SKIP_COUNT,
	OPT_SUMMARY, OPT_BATCH_SIZE, OPT_EXPLAIN, OPT_TIMEOUT,
}

// top level variant fields usable in include/exclude
var ProjectableFields = []string{
	"id", "names", "chromosome", "start", "end", "reference", "alternate", "type",
	"studies", "annotation", "stats", "customAnnotations",
}

// core fields kept by a summary projection, plus study ids
var SummaryFields = []string{
	"id", "names", "chromosome", "start", "end", "reference", "alternate", "type", "studies.sid",
}

type Options struct {
	Include   []string
	Exclude   []string
	Limit     int
	Skip      int
	Sort      bool
	SkipCount bool
	Summary   bool
	BatchSize int
	Explain   bool
	Timeout   time.Duration
}

// EffectiveTimeout clamps the requested timeout into [def, max]
func (o Options) EffectiveTimeout(def time.Duration, max time.Duration) time.Duration {
	t := o.Timeout
	if t < def {
		t = def
	}
	if max > 0 && t > max {
		t = max
	}
	return t
}

// Projection resolves include/exclude, giving Summary precedence
func (o Options) Projection() (include []string, exclude []string) {
	if o.Summary {
		return SummaryFields, nil
	}
	return o.Include, o.Exclude
}

func (o Options) Includes(field string) bool {
	include, exclude := o.Projection()
	for _, e := range exclude {
		if e == field {
			return false
		}
	}
	if len(include) == 0 {
		return true
	}
	for _, i := range include {
		if i == field || strings.HasPrefix(i, field+".") {
			return true
		}
	}
	return false
}

func ParseOptions(values url.Values) (Options, error) {
	var (
		o   Options
		err error
	)

	o.Include = splitFields(values.Get(OPT_INCLUDE))
	o.Exclude = splitFields(values.Get(OPT_EXCLUDE))
	for _, f := range append(append([]string{}, o.Include...), o.Exclude...) {
		if !isProjectable(f) {
			return o, errors.MalformedParameter(OPT_INCLUDE, f, "unknown field")
		}
	}

	if o.Limit, err = intOption(values, OPT_LIMIT); err != nil {
		return o, err
	}
	if o.Skip, err = intOption(values, OPT_SKIP); err != nil {
		return o, err
	}
	if o.BatchSize, err = intOption(values, OPT_BATCH_SIZE); err != nil {
		return o, err
	}
	if o.SkipCount, err = boolOption(values, OPT_SKIP_COUNT); err != nil {
		return o, err
	}
	if o.Summary, err = boolOption(values, OPT_SUMMARY); err != nil {
		return o, err
	}
	if o.Explain, err = boolOption(values, OPT_EXPLAIN); err != nil {
		return o, err
	}

	// results are only ever sorted ascending on the variant key
	if s := values.Get(OPT_SORT); s != "" {
		switch strings.ToLower(strings.TrimSpace(s)) {
		case "true", "asc":
			o.Sort = true
		case "false":
		default:
			return o, errors.MalformedParameter(OPT_SORT, s, "expected true, false or asc")
		}
	}

	if t := values.Get(OPT_TIMEOUT); t != "" {
		if ms, convErr := strconv.Atoi(t); convErr == nil {
			o.Timeout = time.Duration(ms) * time.Millisecond
		} else if o.Timeout, err = time.ParseDuration(t); err != nil {
			return o, errors.MalformedParameter(OPT_TIMEOUT, t, "expected milliseconds or a duration")
		}
	}
	return o, nil
}

func splitFields(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	out := []string{}
	for _, f := range strings.Split(raw, ",") {
		if f = strings.TrimSpace(f); f != "" {
			out = append(out, f)
		}
	}
	return out
}

func isProjectable(field string) bool {
	root, _, _ := strings.Cut(field, ".")
	for _, f := range ProjectableFields {
		if f == root {
			return true
		}
	}
	return false
}

func intOption(values url.Values, name string) (int, error) {
	raw := values.Get(name)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, errors.MalformedParameter(name, raw, "expected a non-negative integer")
	}
	return n, nil
}

func boolOption(values url.Values, name string) (bool, error) {
	raw := values.Get(name)
	if raw == "" {
		return false, nil
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		return false, errors.MalformedParameter(name, raw, "expected true or false")
	}
	return b, nil
}
