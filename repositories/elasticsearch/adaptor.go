// Package elasticsearch is the document search backend of the variant
// store: one document per variant, study entries and stats as nested
// objects.
package elasticsearch

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"gohan/variantstore/errors"
	"gohan/variantstore/metadata"
	"gohan/variantstore/models/indexes"
	"gohan/variantstore/repositories"

	"github.com/Jeffail/gabs"
	"github.com/elastic/go-elasticsearch/v7"
	"github.com/elastic/go-elasticsearch/v7/esapi"
	"github.com/elastic/go-elasticsearch/v7/esutil"
	"github.com/mitchellh/mapstructure"
)

const BACKEND = "elasticsearch"

type Settings struct {
	Index            string
	DefaultTimeout   time.Duration
	MaxTimeout       time.Duration
	MaxResultWindow  int
	DefaultBatchSize int
	// refresh the index after every write
	Refresh bool
	Logger  *slog.Logger
	// closed on Close when set
	HttpTransport *http.Transport
}

func (s Settings) withDefaults() Settings {
	if s.Index == "" {
		s.Index = "variants"
	}
	if s.DefaultTimeout <= 0 {
		s.DefaultTimeout = 20 * time.Second
	}
	if s.MaxTimeout <= 0 {
		s.MaxTimeout = 5 * time.Minute
	}
	if s.MaxResultWindow <= 0 {
		s.MaxResultWindow = 10000
	}
	if s.DefaultBatchSize <= 0 {
		s.DefaultBatchSize = 100
	}
	if s.Logger == nil {
		s.Logger = slog.Default()
	}
	return s
}

var _ repositories.VariantAdaptor = (*VariantAdaptor)(nil)

type VariantAdaptor struct {
	es       *elasticsearch.Client
	manager  metadata.Manager
	genes    metadata.GeneResolver
	settings Settings
	logger   *slog.Logger

	closed    atomic.Bool
	closeOnce sync.Once
}

func NewVariantAdaptor(es *elasticsearch.Client, manager metadata.Manager, genes metadata.GeneResolver, settings Settings) *VariantAdaptor {
	settings = settings.withDefaults()
	return &VariantAdaptor{
		es:       es,
		manager:  manager,
		genes:    genes,
		settings: settings,
		logger:   settings.Logger.With("backend", BACKEND, "index", settings.Index),
	}
}

func (a *VariantAdaptor) Close() error {
	a.closeOnce.Do(func() {
		a.closed.Store(true)
		if a.settings.HttpTransport != nil {
			a.settings.HttpTransport.CloseIdleConnections()
		}
	})
	return nil
}

func (a *VariantAdaptor) checkOpen() error {
	if a.closed.Load() {
		return errors.BackendUnavailable(BACKEND, errors.Errorf("adaptor closed"))
	}
	return nil
}

// EnsureIndex creates the variant index with its mapping unless it
// already exists
func (a *VariantAdaptor) EnsureIndex(ctx context.Context) error {
	if err := a.checkOpen(); err != nil {
		return err
	}

	res, err := a.es.Indices.Exists([]string{a.settings.Index}, a.es.Indices.Exists.WithContext(ctx))
	if err != nil {
		return errors.BackendUnavailable(BACKEND, err)
	}
	res.Body.Close()
	if res.StatusCode == http.StatusOK {
		return nil
	}

	body := map[string]interface{}{
		"settings": map[string]interface{}{
			"index": map[string]interface{}{
				"max_result_window": a.settings.MaxResultWindow,
			},
		},
		"mappings": indexes.VARIANT_INDEX_MAPPING,
	}
	buf, err := encode(body)
	if err != nil {
		return err
	}

	a.logger.Info("creating index")
	_, err = a.parse(a.es.Indices.Create(a.settings.Index,
		a.es.Indices.Create.WithContext(ctx),
		a.es.Indices.Create.WithBody(buf),
	))
	return err
}

func (a *VariantAdaptor) refresh(ctx context.Context) error {
	_, err := a.parse(a.es.Indices.Refresh(
		a.es.Indices.Refresh.WithContext(ctx),
		a.es.Indices.Refresh.WithIndex(a.settings.Index),
	))
	return err
}

func encode(body interface{}) (*bytes.Buffer, error) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(body); err != nil {
		return nil, errors.Wrap(err, "encoding request")
	}
	return &buf, nil
}

// parse reads a response into a gabs container, turning error statuses
// into coded errors
func (a *VariantAdaptor) parse(res *esapi.Response, err error) (*gabs.Container, error) {
	if err != nil {
		return nil, errors.BackendUnavailable(BACKEND, err)
	}
	defer res.Body.Close()

	raw, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, errors.BackendUnavailable(BACKEND, err)
	}

	if res.IsError() {
		reason := string(raw)
		if parsed, perr := gabs.ParseJSON(raw); perr == nil {
			if r, ok := parsed.Path("error.reason").Data().(string); ok {
				reason = r
			}
		}
		cause := errors.Errorf("[%d] %s", res.StatusCode, reason)
		switch {
		case res.StatusCode == http.StatusNotFound:
			return nil, errors.UnresolvedReference("document", reason)
		case res.StatusCode == http.StatusTooManyRequests || res.StatusCode >= 500:
			return nil, errors.BackendUnavailable(BACKEND, cause)
		}
		return nil, errors.Wrap(cause, "elasticsearch request failed")
	}

	if len(raw) == 0 {
		return gabs.New(), nil
	}
	parsed, err := gabs.ParseJSON(raw)
	if err != nil {
		return nil, errors.Wrap(err, "parsing response")
	}
	return parsed, nil
}

func number(c *gabs.Container, path string) int64 {
	switch v := c.Path(path).Data().(type) {
	case float64:
		return int64(v)
	case json.Number:
		n, _ := v.Int64()
		return n
	}
	return 0
}

func decode(source interface{}, out interface{}) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:    "json",
		Result:     out,
		DecodeHook: mapstructure.StringToTimeHookFunc(time.RFC3339Nano),
	})
	if err != nil {
		return err
	}
	return decoder.Decode(source)
}

func decodeVariant(source interface{}) (*indexes.Variant, error) {
	v := &indexes.Variant{}
	if err := decode(source, v); err != nil {
		return nil, errors.Wrap(err, "decoding variant")
	}
	return v, nil
}

type bulkItem struct {
	key  string
	body interface{}
}

type bulkOutcome struct {
	key    string
	result string
	status int
	err    error
}

func (o bulkOutcome) missing() bool {
	return o.status == http.StatusNotFound
}

// bulk sends update items in order through one single worker and reports
// the outcome of each of them. Missing documents are reported, not
// raised. Any other item failure is returned as the error.
func (a *VariantAdaptor) bulk(ctx context.Context, items []bulkItem) ([]bulkOutcome, error) {
	outcomes := make([]bulkOutcome, len(items))
	if len(items) == 0 {
		return outcomes, nil
	}

	var (
		mu       sync.Mutex
		firstErr error
	)
	fail := func(err error) {
		mu.Lock()
		defer mu.Unlock()
		if firstErr == nil {
			firstErr = err
		}
	}

	refresh := "false"
	if a.settings.Refresh {
		refresh = "true"
	}
	bi, err := esutil.NewBulkIndexer(esutil.BulkIndexerConfig{
		Index:      a.settings.Index,
		Client:     a.es,
		NumWorkers: 1,
		Refresh:    refresh,
		OnError: func(ctx context.Context, err error) {
			fail(errors.BackendUnavailable(BACKEND, err))
		},
	})
	if err != nil {
		return nil, errors.BackendUnavailable(BACKEND, err)
	}

	for i, item := range items {
		i := i // per-iteration copy for the async callbacks (go < 1.22)
		data, err := json.Marshal(item.body)
		if err != nil {
			return nil, errors.Wrap(err, "encoding bulk item")
		}

		err = bi.Add(ctx, esutil.BulkIndexerItem{
			Action:     "update",
			DocumentID: item.key,
			Body:       bytes.NewReader(data),
			OnSuccess: func(ctx context.Context, bii esutil.BulkIndexerItem, res esutil.BulkIndexerResponseItem) {
				mu.Lock()
				outcomes[i] = bulkOutcome{key: bii.DocumentID, result: res.Result, status: res.Status}
				mu.Unlock()
			},
			OnFailure: func(ctx context.Context, bii esutil.BulkIndexerItem, res esutil.BulkIndexerResponseItem, err error) {
				if err == nil {
					err = errors.Errorf("%s: %s", res.Error.Type, res.Error.Reason)
				}
				mu.Lock()
				outcomes[i] = bulkOutcome{key: bii.DocumentID, status: res.Status, err: err}
				mu.Unlock()
				if res.Status != http.StatusNotFound {
					fail(err)
				}
			},
		})
		if err != nil {
			return nil, errors.BackendUnavailable(BACKEND, err)
		}
	}

	if err := bi.Close(ctx); err != nil {
		return nil, errors.BackendUnavailable(BACKEND, err)
	}
	return outcomes, firstErr
}

// firstFailed is the key of the first failed item
func firstFailed(outcomes []bulkOutcome) string {
	for _, o := range outcomes {
		if o.err != nil && !o.missing() {
			return o.key
		}
	}
	return ""
}
