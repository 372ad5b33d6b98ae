package main

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"gohan/variantstore/metadata"
	"gohan/variantstore/models"
	"gohan/variantstore/models/dtos"
	"gohan/variantstore/models/ingest"
	"gohan/variantstore/services"
	variantsService "gohan/variantstore/services/variants"

	"github.com/Jeffail/gabs"
	"github.com/labstack/echo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testVcf = "##fileformat=VCFv4.2\n" +
	"#CHROM\tPOS\tID\tREF\tALT\tQUAL\tFILTER\tINFO\tFORMAT\tS1\tS2\n" +
	"1\t100\trs1\tA\tT\t.\tPASS\t.\tGT\t0/1\t0/0\n" +
	"1\t200\t.\tC\tG\t.\tPASS\t.\tGT\t1/1\t0/1\n" +
	"X\t300\t.\tG\tA\t.\tPASS\t.\tGT\t./.\t0|1\n"

func newTestServer(t *testing.T) *echo.Echo {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "test.vcf"), []byte(testVcf), 0o644))

	var cfg models.Config
	cfg.SemVer = "0.1.0"
	cfg.Api.Backend = models.BACKEND_WIDECOLUMN
	cfg.Api.VcfPath = dir
	cfg.WideColumn.InMemory = true
	cfg.WideColumn.SqlDriver = "sqlite"
	cfg.WideColumn.SqlDsn = "file:" + filepath.Join(dir, "index.db")
	cfg.Query.DefaultBatchSize = 10

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	manager := metadata.NewInMemoryManager()

	adaptor, err := createAdaptor(context.Background(), &cfg, manager, logger)
	require.NoError(t, err)
	t.Cleanup(func() { adaptor.Close() })

	iz, err := services.NewIngestionService(adaptor, manager, services.IngestionSettings{
		Backend: cfg.Api.Backend,
		VcfPath: dir,
		Logger:  logger,
	})
	require.NoError(t, err)
	t.Cleanup(iz.Release)

	vs := variantsService.NewVariantService(adaptor, cfg.Api.Backend, logger)
	return newServer(&cfg, logger, vs, iz)
}

func get(t *testing.T, e *echo.Echo, target string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

func TestServer(t *testing.T) {
	e := newTestServer(t)

	t.Run("service info", func(t *testing.T) {
		rec := get(t, e, "/service-info")
		require.Equal(t, http.StatusOK, rec.Code)
		parsed, err := gabs.ParseJSON(rec.Body.Bytes())
		require.NoError(t, err)
		assert.Equal(t, "0.1.0", parsed.Path("version").Data())
		assert.Equal(t, "gohan-variantstore", parsed.Path("type.artifact").Data())
		assert.Equal(t, models.BACKEND_WIDECOLUMN, parsed.Path("storage.backend").Data())
		studies, err := parsed.Path("storage.studies").Children()
		require.NoError(t, err)
		assert.Empty(t, studies)
	})

	t.Run("ingestion requires a study", func(t *testing.T) {
		rec := get(t, e, "/variants/ingestion/run?fileNames=test.vcf")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("ingest then query", func(t *testing.T) {
		rec := get(t, e, "/variants/ingestion/run?study=1KG&fileNames=test.vcf,../etc/passwd")
		require.Equal(t, http.StatusOK, rec.Code)
		var queued []ingest.IngestResponseDTO
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &queued))
		require.Len(t, queued, 2)
		assert.Equal(t, ingest.Queued, queued[0].State)
		assert.Equal(t, ingest.Error, queued[1].State)

		require.Eventually(t, func() bool {
			var requests []ingest.IngestRequest
			rec := get(t, e, "/variants/ingestion/requests")
			if json.Unmarshal(rec.Body.Bytes(), &requests) != nil || len(requests) != 1 {
				return false
			}
			return requests[0].State == ingest.Done
		}, 10*time.Second, 10*time.Millisecond)

		rec = get(t, e, "/variants/count?chromosome=1")
		require.Equal(t, http.StatusOK, rec.Code)
		var count dtos.VariantsCountResponseDTO
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &count))
		assert.Equal(t, int64(2), count.Count)

		rec = get(t, e, "/variants/get?genotype=S2:0%7C1&limit=10")
		require.Equal(t, http.StatusOK, rec.Code)
		parsed, err := gabs.ParseJSON(rec.Body.Bytes())
		require.NoError(t, err)
		assert.Equal(t, float64(1), parsed.Path("data.numResults").Data())
		assert.Equal(t, "X", parsed.Path("data.results").Index(0).Path("chromosome").Data())

		rec = get(t, e, "/variants/overview?field=chromosome")
		require.Equal(t, http.StatusOK, rec.Code)
		parsed, err = gabs.ParseJSON(rec.Body.Bytes())
		require.NoError(t, err)
		buckets, err := parsed.Path("chromosome").Children()
		require.NoError(t, err)
		assert.Len(t, buckets, 2)

		rec = get(t, e, "/service-info")
		require.Equal(t, http.StatusOK, rec.Code)
		parsed, err = gabs.ParseJSON(rec.Body.Bytes())
		require.NoError(t, err)
		studies, err := parsed.Path("storage.studies").Children()
		require.NoError(t, err)
		assert.Len(t, studies, 1)
	})

	t.Run("unknown parameters are rejected", func(t *testing.T) {
		rec := get(t, e, "/variants/count?colour=red")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.True(t, strings.Contains(rec.Body.String(), "UnknownParameter"))
	})

	t.Run("malformed values are rejected", func(t *testing.T) {
		rec := get(t, e, "/variants/get?region=1:x-y")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("unsupported operations", func(t *testing.T) {
		rec := get(t, e, "/variants/phased?variant=1:100:A:T&sample=S1")
		assert.Equal(t, http.StatusNotImplemented, rec.Code)
	})

	t.Run("metrics", func(t *testing.T) {
		rec := get(t, e, "/metrics")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), "gohan_variant_queries_total")
	})
}
