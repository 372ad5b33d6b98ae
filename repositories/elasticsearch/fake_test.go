package elasticsearch

import (
	"bufio"
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"testing"

	"gohan/variantstore/metadata"
	"gohan/variantstore/models/indexes"

	"github.com/Jeffail/gabs"
	"github.com/elastic/go-elasticsearch/v7"
	"github.com/stretchr/testify/require"
)

type recorded struct {
	method string
	path   string
	body   []byte
}

// fakeES answers the client like a single node cluster. Bulk updates are
// applied to an in memory document store; every other endpoint returns
// the canned response registered for its path suffix.
type fakeES struct {
	mu       sync.Mutex
	docs     map[string]*indexes.Variant
	order    []string
	requests []recorded
	canned   map[string][]string
	// bulk items failing with a server error, by document id
	failing map[string]bool
	// answer index existence checks with 404
	missingIndex bool
}

func newFakeES() *fakeES {
	return &fakeES{
		docs:    map[string]*indexes.Variant{},
		canned:  map[string][]string{},
		failing: map[string]bool{},
	}
}

// respond registers the responses of the requests whose path ends with
// suffix. They are served in order, the last one repeatedly.
func (f *fakeES) respond(suffix string, bodies ...string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.canned[suffix] = bodies
}

func (f *fakeES) count(suffix string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, r := range f.requests {
		if strings.HasSuffix(r.path, suffix) {
			n++
		}
	}
	return n
}

func (f *fakeES) bodiesOf(suffix string) []*gabs.Container {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []*gabs.Container{}
	for _, r := range f.requests {
		if strings.HasSuffix(r.path, suffix) {
			parsed, err := gabs.ParseJSON(r.body)
			if err != nil {
				parsed = gabs.New()
			}
			out = append(out, parsed)
		}
	}
	return out
}

func response(status int, body string) *http.Response {
	header := http.Header{}
	header.Set("X-Elastic-Product", "Elasticsearch")
	header.Set("Content-Type", "application/json")
	return &http.Response{
		StatusCode: status,
		Header:     header,
		Body:       io.NopCloser(strings.NewReader(body)),
	}
}

func (f *fakeES) RoundTrip(req *http.Request) (*http.Response, error) {
	var body []byte
	if req.Body != nil {
		body, _ = io.ReadAll(req.Body)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, recorded{method: req.Method, path: req.URL.Path, body: body})

	if req.URL.Path == "/" || req.URL.Path == "" {
		return response(200, `{"version":{"number":"7.17.7","build_flavor":"default"},"tagline":"You Know, for Search"}`), nil
	}
	if strings.HasSuffix(req.URL.Path, "/_bulk") {
		return response(200, f.bulk(body)), nil
	}
	if req.Method == http.MethodHead && f.missingIndex {
		return response(404, ``), nil
	}
	for suffix, canned := range f.canned {
		if strings.HasSuffix(req.URL.Path, suffix) && len(canned) > 0 {
			next := canned[0]
			if len(canned) > 1 {
				f.canned[suffix] = canned[1:]
			}
			return response(200, next), nil
		}
	}
	return response(200, `{}`), nil
}

type bulkBody struct {
	Script struct {
		Params struct {
			Op     string              `json:"op"`
			Study  *indexes.StudyEntry `json:"study"`
			FileId int                 `json:"fileId"`
		} `json:"params"`
	} `json:"script"`
	Upsert *indexes.Variant `json:"upsert"`
}

func bulkItemResponse(id string, status int, result string) map[string]interface{} {
	item := map[string]interface{}{"_id": id, "status": status}
	if result != "" {
		item["result"] = result
	}
	if status == 404 {
		item["error"] = map[string]interface{}{"type": "document_missing_exception", "reason": "[" + id + "]: document missing"}
	}
	if status >= 500 {
		item["error"] = map[string]interface{}{"type": "es_rejected_execution_exception", "reason": "rejected"}
	}
	return map[string]interface{}{"update": item}
}

// bulk applies update items in order, emulating the loader scripts
func (f *fakeES) bulk(raw []byte) string {
	items := []interface{}{}
	hasErrors := false

	scanner := bufio.NewScanner(bytes.NewReader(raw))
	scanner.Buffer(make([]byte, 1024*1024), 16*1024*1024)
	for scanner.Scan() {
		meta, err := gabs.ParseJSON(scanner.Bytes())
		if err != nil || !scanner.Scan() {
			break
		}
		id, _ := meta.Path("update._id").Data().(string)

		var b bulkBody
		_ = json.Unmarshal(scanner.Bytes(), &b)

		status, result := f.apply(id, b)
		if status > 201 {
			hasErrors = true
		}
		items = append(items, bulkItemResponse(id, status, result))
	}

	out, _ := json.Marshal(map[string]interface{}{"took": 1, "errors": hasErrors, "items": items})
	return string(out)
}

func (f *fakeES) apply(id string, b bulkBody) (int, string) {
	if f.failing[id] {
		return 503, ""
	}
	doc, ok := f.docs[id]
	params := b.Script.Params

	switch params.Op {
	case OP_INSERT_STUDY:
		if !ok {
			f.docs[id] = b.Upsert
			f.order = append(f.order, id)
			return 201, "created"
		}
		if doc.Study(params.Study.StudyId) != nil {
			return 200, "noop"
		}
		doc.Studies = append(doc.Studies, params.Study)
		return 200, "updated"
	case OP_MERGE_FILE:
		if !ok {
			return 404, ""
		}
		entry := doc.Study(params.Study.StudyId)
		if entry == nil {
			doc.Studies = append(doc.Studies, params.Study)
			return 200, "updated"
		}
		if entry.HasFile(params.FileId) {
			return 200, "noop"
		}
		entry.Merge(params.Study)
		return 200, "updated"
	}

	if !ok {
		return 404, ""
	}
	return 200, "updated"
}

func silentLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestAdaptor(t *testing.T, fake *fakeES, manager *metadata.InMemoryManager) *VariantAdaptor {
	t.Helper()
	es, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses: []string{"http://localhost:9200"},
		Transport: fake,
	})
	require.NoError(t, err)
	return NewVariantAdaptor(es, manager, manager, Settings{
		Index:           "variants",
		MaxResultWindow: 100,
		Logger:          silentLogger(),
	})
}

const catalogYaml = `
studies:
  - id: 1
    name: 1KG
    indexedFiles: [1]
    samplesInFiles:
      1: [1, 2]
      2: [3]
    samples: {NA001: 1, NA002: 2, NA003: 3}
    files: {a.vcf: 1, b.vcf: 2}
    cohorts: {ALL: 10}
    defaultGenotypes: ["0/0"]
geneSets:
  go:
    "GO:0006281": [BRCA2, ATM]
`

const twoStudiesYaml = `
studies:
  - id: 1
    name: 1KG
    samples: {NA001: 1}
    files: {a.vcf: 1}
    cohorts: {ALL: 10}
  - id: 2
    name: GNOMAD
    samples: {HG001: 1}
    cohorts: {ALL: 20}
`

func testManager(t *testing.T, raw string) *metadata.InMemoryManager {
	t.Helper()
	m, err := metadata.ParseCatalog([]byte(raw))
	require.NoError(t, err)
	return m
}
