package services

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"gohan/variantstore/errors"
	"gohan/variantstore/metadata"
	"gohan/variantstore/models/constants/genotype"
	"gohan/variantstore/models/dtos"
	"gohan/variantstore/models/indexes"
	"gohan/variantstore/models/ingest"
	"gohan/variantstore/models/query"
	"gohan/variantstore/repositories"
	"gohan/variantstore/repositories/widecolumn"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func silentLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// flakyAdaptor fails the first inserts with the given error
type flakyAdaptor struct {
	repositories.VariantAdaptor
	failures int32
	err      error
	calls    int32
}

func (f *flakyAdaptor) Insert(ctx context.Context, variants []*indexes.Variant, fileId int, sc *metadata.StudyConfiguration) (dtos.WriteResult, error) {
	if atomic.AddInt32(&f.calls, 1) <= f.failures {
		return dtos.WriteResult{}, f.err
	}
	return f.VariantAdaptor.Insert(ctx, variants, fileId, sc)
}

type ingestionFixture struct {
	dir     string
	manager *metadata.InMemoryManager
	adaptor *widecolumn.VariantAdaptor
}

func newIngestionFixture(t *testing.T) *ingestionFixture {
	t.Helper()
	dir := t.TempDir()
	m := metadata.NewInMemoryManager()
	a, err := widecolumn.NewVariantAdaptor(m, m, widecolumn.Settings{
		InMemory:        true,
		SqlDsn:          "file:" + filepath.Join(dir, "index.db"),
		MaxResultWindow: 100,
		Logger:          silentLogger(),
	})
	require.NoError(t, err)
	t.Cleanup(func() { a.Close() })
	return &ingestionFixture{dir: dir, manager: m, adaptor: a}
}

func (f *ingestionFixture) service(t *testing.T, adaptor repositories.VariantAdaptor, batchSize int) *IngestionService {
	t.Helper()
	svc, err := NewIngestionService(adaptor, f.manager, IngestionSettings{
		Backend:       "widecolumn",
		VcfPath:       f.dir,
		BatchSize:     batchSize,
		Concurrency:   2,
		MaxRetries:    3,
		RetryInterval: time.Millisecond,
		Logger:        silentLogger(),
	})
	require.NoError(t, err)
	t.Cleanup(svc.Release)
	return svc
}

func (f *ingestionFixture) write(t *testing.T, name string, text string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(f.dir, name), []byte(text), 0o644))
}

func (f *ingestionFixture) count(t *testing.T, params ...string) int64 {
	t.Helper()
	q := query.New()
	for i := 0; i+1 < len(params); i += 2 {
		q.Add(params[i], params[i+1])
	}
	n, err := f.adaptor.Count(context.Background(), q)
	require.NoError(t, err)
	return n
}

var firstFile = vcfText([]string{"S1", "S2"},
	"1 100 rs1 A T . PASS DP=10 GT 0/1 0/0",
	"1 200 . C G,T . PASS . GT 1/2 0/1",
	"chr2 300 . G A . q10 . GT ./. 1/1",
	"GL000192.1 10 . A C . PASS . GT 0/1 0/1",
)

func newRequest(study string, filename string) *ingest.IngestRequest {
	return &ingest.IngestRequest{Study: study, Filename: filename, CreatedAt: time.Now()}
}

func TestIngest(t *testing.T) {
	ctx := context.Background()

	t.Run("load, fill gaps and register", func(t *testing.T) {
		f := newIngestionFixture(t)
		f.write(t, "first.vcf", firstFile)
		f.write(t, "second.vcf", vcfText([]string{"S3"}, "1 100 rs1 A T . PASS . GT 1/1"))
		svc := f.service(t, f.adaptor, 2)

		req := newRequest("1KG", "first.vcf")
		result, err := svc.Ingest(ctx, req)
		require.NoError(t, err)
		assert.Equal(t, int64(4), result.NewVariants)
		assert.Equal(t, int64(1), result.SkippedVariants)
		assert.Equal(t, ingest.Done, req.State)
		assert.Equal(t, 1, req.FileId)

		sc, err := f.manager.ResolveStudy(ctx, "1KG")
		require.NoError(t, err)
		assert.True(t, sc.IsFileIndexed(1))

		assert.Equal(t, int64(4), f.count(t))
		assert.Equal(t, int64(1), f.count(t, "genotype", "S2:1/1"))
		assert.Equal(t, int64(2), f.count(t, "region", "1:200"))

		result, err = svc.Ingest(ctx, newRequest("1KG", "second.vcf"))
		require.NoError(t, err)
		assert.Equal(t, int64(1), result.UpdatedVariants)

		res, err := f.adaptor.Get(ctx, query.New().Add("region", "1:200"), query.Options{Limit: 10})
		require.NoError(t, err)
		require.Len(t, res.Results, 2)
		for _, v := range res.Results {
			assert.Equal(t, genotype.Unknown, v.Study(sc.Id).BucketOf(3))
		}
		assert.Equal(t, int64(1), f.count(t, "genotype", "S3:1/1"))
	})

	t.Run("transient failures are retried", func(t *testing.T) {
		f := newIngestionFixture(t)
		f.write(t, "first.vcf", firstFile)
		flaky := &flakyAdaptor{
			VariantAdaptor: f.adaptor,
			failures:       2,
			err:            errors.BatchAborted(errors.Errorf("conflict"), 1, "1:100:A:T"),
		}
		svc := f.service(t, flaky, 100)

		result, err := svc.Ingest(ctx, newRequest("1KG", "first.vcf"))
		require.NoError(t, err)
		assert.Equal(t, int64(4), result.NewVariants)
		assert.Equal(t, int32(3), atomic.LoadInt32(&flaky.calls))
	})

	t.Run("permanent failures are not", func(t *testing.T) {
		f := newIngestionFixture(t)
		f.write(t, "first.vcf", firstFile)
		flaky := &flakyAdaptor{
			VariantAdaptor: f.adaptor,
			failures:       100,
			err:            errors.UnsupportedOperation("widecolumn", "insert"),
		}
		svc := f.service(t, flaky, 100)

		req := newRequest("1KG", "first.vcf")
		_, err := svc.Ingest(ctx, req)
		assert.True(t, errors.Is(err, errors.ErrUnsupportedOperation))
		assert.Equal(t, int32(1), atomic.LoadInt32(&flaky.calls))
		assert.Equal(t, ingest.Error, req.State)
		assert.NotEmpty(t, req.Message)

		sc, err := f.manager.ResolveStudy(ctx, "1KG")
		require.NoError(t, err)
		assert.False(t, sc.IsFileIndexed(1))
	})
}

func TestStart(t *testing.T) {
	f := newIngestionFixture(t)
	f.write(t, "first.vcf", firstFile)
	svc := f.service(t, f.adaptor, 100)

	t.Run("rejects paths outside the vcf directory", func(t *testing.T) {
		_, err := svc.Start("1KG", "../first.vcf")
		assert.True(t, errors.Is(err, errors.ErrMalformedParameter))
	})

	t.Run("rejects missing files", func(t *testing.T) {
		_, err := svc.Start("1KG", "missing.vcf")
		assert.True(t, errors.Is(err, errors.ErrUnresolvedReference))
	})

	t.Run("runs in the background", func(t *testing.T) {
		req, err := svc.Start("1KG", "first.vcf")
		require.NoError(t, err)
		assert.Equal(t, ingest.Queued, req.State)

		require.Eventually(t, func() bool {
			for _, r := range svc.Requests() {
				if r.Id == req.Id && r.State == ingest.Done {
					return true
				}
			}
			return false
		}, 10*time.Second, 10*time.Millisecond)
		assert.False(t, svc.FilenameAlreadyRunning("first.vcf"))

		requests := svc.Requests()
		require.Len(t, requests, 1)
		assert.Equal(t, int64(4), requests[0].Result.NewVariants)
	})
}
