package query

import (
	"net/url"
	"sort"
	"strings"
)

type entry struct {
	param string
	value string
}

// Query is an ordered multimap of raw parameter name -> raw value. Nothing
// is validated until Parse.
type Query struct {
	entries []entry
}

func New() *Query {
	return &Query{}
}

// FromValues builds a Query out of url values, in key order. Keys in
// skip (e.g. option names) are left out.
func FromValues(values url.Values, skip ...string) *Query {
	ignored := map[string]bool{}
	for _, s := range skip {
		ignored[s] = true
	}
	keys := make([]string, 0, len(values))
	for k := range values {
		if !ignored[k] {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	q := New()
	for _, k := range keys {
		for _, v := range values[k] {
			q.Add(k, v)
		}
	}
	return q
}

func (q *Query) Add(param string, value string) *Query {
	q.entries = append(q.entries, entry{param: param, value: value})
	return q
}

// Set replaces every value of param
func (q *Query) Set(param string, value string) *Query {
	q.Remove(param)
	return q.Add(param, value)
}

func (q *Query) Remove(param string) *Query {
	kept := q.entries[:0]
	for _, e := range q.entries {
		if e.param != param {
			kept = append(kept, e)
		}
	}
	q.entries = kept
	return q
}

// Get joins repeated values of a param with ","
func (q *Query) Get(param string) (string, bool) {
	values := []string{}
	for _, e := range q.entries {
		if e.param == param {
			values = append(values, e.value)
		}
	}
	if len(values) == 0 {
		return "", false
	}
	return strings.Join(values, ","), true
}

// Params returns the distinct parameter names in insertion order
func (q *Query) Params() []string {
	seen := map[string]bool{}
	out := []string{}
	for _, e := range q.entries {
		if !seen[e.param] {
			seen[e.param] = true
			out = append(out, e.param)
		}
	}
	return out
}

func (q *Query) IsEmpty() bool {
	return q == nil || len(q.entries) == 0
}

func (q *Query) Clone() *Query {
	if q == nil {
		return New()
	}
	return &Query{entries: append([]entry{}, q.entries...)}
}

func (q *Query) String() string {
	parts := make([]string, 0, len(q.entries))
	for _, e := range q.entries {
		parts = append(parts, e.param+"="+e.value)
	}
	return strings.Join(parts, "&")
}
