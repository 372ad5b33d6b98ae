package services

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"gohan/variantstore/errors"
	"gohan/variantstore/metadata"
	"gohan/variantstore/metrics"
	"gohan/variantstore/models/constants/chromosome"
	"gohan/variantstore/models/dtos"
	"gohan/variantstore/models/indexes"
	"gohan/variantstore/models/ingest"
	"gohan/variantstore/repositories"

	"github.com/cenkalti/backoff"
	"github.com/google/uuid"
	"github.com/panjf2000/ants/v2"
)

type IngestionSettings struct {
	Backend     string
	VcfPath     string
	BatchSize   int
	Concurrency int
	// retries of one batch after its first attempt
	MaxRetries    uint64
	RetryInterval time.Duration
	Logger        *slog.Logger
}

type (
	IngestionService struct {
		IngestRequestMap    map[uuid.UUID]*ingest.IngestRequest
		IngestRequestMapMux sync.RWMutex

		adaptor   repositories.VariantAdaptor
		registrar metadata.FileRegistrar
		settings  IngestionSettings
		pool      *ants.Pool
		logger    *slog.Logger
	}
)

func NewIngestionService(adaptor repositories.VariantAdaptor, registrar metadata.FileRegistrar, settings IngestionSettings) (*IngestionService, error) {
	if settings.BatchSize <= 0 {
		settings.BatchSize = 1000
	}
	if settings.Concurrency <= 0 {
		settings.Concurrency = 4
	}
	if settings.RetryInterval <= 0 {
		settings.RetryInterval = 500 * time.Millisecond
	}
	if settings.Logger == nil {
		settings.Logger = slog.Default()
	}

	pool, err := ants.NewPool(settings.Concurrency)
	if err != nil {
		return nil, errors.Wrap(err, "creating load worker pool")
	}
	return &IngestionService{
		IngestRequestMap: map[uuid.UUID]*ingest.IngestRequest{},
		adaptor:          adaptor,
		registrar:        registrar,
		settings:         settings,
		pool:             pool,
		logger:           settings.Logger.With("service", "ingestion"),
	}, nil
}

// Release stops the load workers once running batches are done
func (i *IngestionService) Release() {
	i.pool.Release()
}

// Start queues the ingestion of a file of the VCF directory into a study
// and returns right away. Progress is reported through the request.
func (i *IngestionService) Start(study string, filename string) (*ingest.IngestRequest, error) {
	if study == "" {
		return nil, errors.MalformedParameter("study", study, "a study is required")
	}
	if filename == "" || filepath.Base(filename) != filename {
		return nil, errors.MalformedParameter("filename", filename, "expected a file name of the vcf directory")
	}
	if _, err := os.Stat(filepath.Join(i.settings.VcfPath, filename)); err != nil {
		return nil, errors.UnresolvedReference("file", filename)
	}
	if i.FilenameAlreadyRunning(filename) {
		return nil, errors.MalformedParameter("filename", filename, "file is already being ingested")
	}

	now := time.Now()
	req := &ingest.IngestRequest{
		Id:        uuid.New(),
		Filename:  filename,
		Study:     study,
		State:     ingest.Queued,
		CreatedAt: now,
		UpdatedAt: now,
	}
	i.IngestRequestMapMux.Lock()
	i.IngestRequestMap[req.Id] = req
	i.IngestRequestMapMux.Unlock()

	i.logger.Info("queueing a new variant ingestion request", "id", req.Id, "filename", filename, "study", study)
	go i.Ingest(context.Background(), req)

	copied := *req
	return &copied, nil
}

// Requests lists every ingestion request, oldest first
func (i *IngestionService) Requests() []ingest.IngestRequest {
	i.IngestRequestMapMux.RLock()
	defer i.IngestRequestMapMux.RUnlock()

	out := make([]ingest.IngestRequest, 0, len(i.IngestRequestMap))
	for _, req := range i.IngestRequestMap {
		out = append(out, *req)
	}
	sort.Slice(out, func(a, b int) bool { return out[a].CreatedAt.Before(out[b].CreatedAt) })
	return out
}

func (i *IngestionService) FilenameAlreadyRunning(filename string) bool {
	i.IngestRequestMapMux.RLock()
	defer i.IngestRequestMapMux.RUnlock()

	for _, v := range i.IngestRequestMap {
		if v.Filename == filename && (v.State == ingest.Queued || v.State == ingest.Running) {
			return true
		}
	}
	return false
}

func (i *IngestionService) update(req *ingest.IngestRequest, fn func(req *ingest.IngestRequest)) {
	i.IngestRequestMapMux.Lock()
	defer i.IngestRequestMapMux.Unlock()
	fn(req)
	req.UpdatedAt = time.Now()
}

// Ingest loads one file synchronously: batches go to the worker pool,
// then the samples of the file are back-filled on the variants it did
// not call, and the file is registered as indexed.
func (i *IngestionService) Ingest(ctx context.Context, req *ingest.IngestRequest) (dtos.WriteResult, error) {
	start := time.Now()
	i.update(req, func(req *ingest.IngestRequest) { req.State = ingest.Running })

	result, err := i.ingest(ctx, req)
	result.Time = time.Since(start)
	metrics.RecordLoad(i.settings.Backend, result)

	if err != nil {
		i.logger.Error("ingestion failed", "id", req.Id, "filename", req.Filename, "error", err)
		i.update(req, func(req *ingest.IngestRequest) {
			req.State = ingest.Error
			req.Message = err.Error()
			req.Result = result
		})
		return result, err
	}

	i.logger.Info("ingestion done", "id", req.Id, "filename", req.Filename,
		"new", result.NewVariants, "updated", result.UpdatedVariants,
		"skipped", result.SkippedVariants, "nonInserted", result.NonInsertedVariants,
		"time", result.Time)
	i.update(req, func(req *ingest.IngestRequest) {
		req.State = ingest.Done
		req.Result = result
	})
	return result, nil
}

func (i *IngestionService) ingest(ctx context.Context, req *ingest.IngestRequest) (dtos.WriteResult, error) {
	var total dtos.WriteResult

	f, err := os.Open(filepath.Join(i.settings.VcfPath, req.Filename))
	if err != nil {
		return total, errors.Wrap(err, "opening vcf")
	}
	defer f.Close()

	reader, err := NewVcfReader(f)
	if err != nil {
		return total, err
	}
	defer reader.Close()

	sc, fileId, sampleIds, err := i.registrar.RegisterFile(ctx, req.Study, req.Filename, reader.Samples)
	if err != nil {
		return total, errors.Wrap(err, "registering file")
	}
	i.update(req, func(req *ingest.IngestRequest) { req.FileId = fileId })
	defaultClass := sc.DefaultGenotypeClass()

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		firstErr error
	)
	failed := func() bool {
		mu.Lock()
		defer mu.Unlock()
		return firstErr != nil
	}
	submit := func(batch []*indexes.Variant) {
		wg.Add(1)
		err := i.pool.Submit(func() {
			defer wg.Done()
			res, err := i.loadBatch(ctx, batch, fileId, sc)
			mu.Lock()
			defer mu.Unlock()
			total.Add(res)
			if err != nil && firstErr == nil {
				firstErr = err
			}
		})
		if err != nil {
			wg.Done()
			mu.Lock()
			if firstErr == nil {
				firstErr = errors.Wrap(err, "submitting batch")
			}
			mu.Unlock()
		}
	}

	chromosomes := map[string]bool{}
	batch := make([]*indexes.Variant, 0, i.settings.BatchSize)
	var skippedRows int64
	for !failed() {
		rec, err := reader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			mu.Lock()
			firstErr = err
			mu.Unlock()
			break
		}

		variants, ok := rec.Variants(sc.Id, fileId, sampleIds, defaultClass)
		if !ok {
			skippedRows++
			i.logger.Debug("skipping row on an unsupported chromosome", "line", rec.Line, "chromosome", rec.Chromosome)
			continue
		}
		chromosomes[chromosome.Normalize(rec.Chromosome)] = true

		batch = append(batch, variants...)
		if len(batch) >= i.settings.BatchSize {
			submit(batch)
			batch = make([]*indexes.Variant, 0, i.settings.BatchSize)
		}
	}
	if len(batch) > 0 && !failed() {
		submit(batch)
	}
	wg.Wait()
	total.SkippedVariants += skippedRows

	if firstErr != nil {
		return total, firstErr
	}

	touched := make([]string, 0, len(chromosomes))
	for c := range chromosomes {
		touched = append(touched, c)
	}
	sort.Strings(touched)
	filled, err := i.adaptor.FillGaps(ctx, fileId, touched, sampleIds, sc)
	if err != nil {
		return total, errors.Wrap(err, "filling gaps")
	}
	i.logger.Debug("gaps filled", "filename", req.Filename, "updated", filled.UpdatedVariants)

	if err := i.registrar.RegisterIndexedFile(ctx, sc.Id, fileId); err != nil {
		return total, errors.Wrap(err, "registering indexed file")
	}
	return total, nil
}

// retryable failures leave the batch safe to load again
func retryable(err error) bool {
	switch errors.CodeOf(err) {
	case errors.ErrBatchAborted, errors.ErrBackendUnavailable, errors.ErrTimeout:
		return true
	}
	return false
}

// loadBatch inserts one batch, retrying it whole under an exponential
// backoff. Loading is idempotent, so a retried batch converges on the
// same rows.
func (i *IngestionService) loadBatch(ctx context.Context, batch []*indexes.Variant, fileId int, sc *metadata.StudyConfiguration) (dtos.WriteResult, error) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = i.settings.RetryInterval

	var (
		result  dtos.WriteResult
		attempt int
	)
	err := backoff.Retry(func() error {
		attempt++
		res, err := i.adaptor.Insert(ctx, batch, fileId, sc)
		if err == nil {
			result = res
			return nil
		}
		if !retryable(err) {
			return backoff.Permanent(err)
		}
		i.logger.Warn("batch failed, retrying", "file", fileId, "attempt", attempt, "error", err)
		return err
	}, backoff.WithContext(backoff.WithMaxRetries(b, i.settings.MaxRetries), ctx))
	return result, err
}
