package utils

import (
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"gohan/variantstore/errors"

	"github.com/cenkalti/backoff"
	"github.com/dgraph-io/badger/v4"
	"github.com/elastic/go-elasticsearch/v7"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"
)

const (
	SQL_DRIVER_SQLITE   = "sqlite"
	SQL_DRIVER_POSTGRES = "pgx"
)

// CreateEsConnection builds a client retrying throttled and unavailable
// responses with an exponential backoff. The transport is returned so
// that its idle connections can be released on shutdown.
func CreateEsConnection(elasticsearchUrl string, elasticsearchUsername string, elasticsearchPassword string) (*elasticsearch.Client, *http.Transport, error) {
	var (
		clusterURLs  = []string{elasticsearchUrl}
		retryBackoff = backoff.NewExponentialBackOff()
		transport    = http.DefaultTransport.(*http.Transport).Clone()
	)

	cfg := elasticsearch.Config{
		Addresses: clusterURLs,
		Username:  elasticsearchUsername,
		Password:  elasticsearchPassword,
		Transport: transport,

		RetryOnStatus: []int{502, 503, 504, 429},

		// Configure the backoff function
		//
		RetryBackoff: func(i int) time.Duration {
			if i == 1 {
				retryBackoff.Reset()
			}
			return retryBackoff.NextBackOff()
		},

		// Retry up to 5 attempts
		//
		MaxRetries: 5,
	}

	es7Client, err := elasticsearch.NewClient(cfg)
	if err != nil {
		return nil, nil, errors.Wrap(err, "creating elasticsearch client")
	}

	slog.Info("using elasticsearch client", "version", elasticsearch.Version, "url", elasticsearchUrl)

	return es7Client, transport, nil
}

// OpenSql opens the SQL index database. sqlite allows a single writer,
// so its pool is limited to one connection.
func OpenSql(driver string, dsn string) (*sql.DB, error) {
	switch driver {
	case SQL_DRIVER_SQLITE, SQL_DRIVER_POSTGRES:
	default:
		return nil, fmt.Errorf("unsupported sql driver %q", driver)
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, errors.Wrapf(err, "opening %s database", driver)
	}
	if driver == SQL_DRIVER_SQLITE {
		db.SetMaxOpenConns(1)
	}
	return db, nil
}

// OpenBadger opens the row store at path, or a memory only store
func OpenBadger(path string, inMemory bool, logger *slog.Logger) (*badger.DB, error) {
	if logger == nil {
		logger = slog.Default()
	}
	opts := badger.DefaultOptions(path)
	if inMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	}
	opts = opts.WithLogger(&badgerLogger{logger: logger.With("component", "badger")})

	db, err := badger.Open(opts)
	if err != nil {
		return nil, errors.Wrapf(err, "opening badger at %q", path)
	}
	return db, nil
}

// badgerLogger bridges badger's printf style logger onto slog. badger
// is chatty at info level, so info goes to debug.
type badgerLogger struct {
	logger *slog.Logger
}

func (l *badgerLogger) msg(format string, args ...interface{}) string {
	return strings.TrimSpace(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Errorf(format string, args ...interface{}) {
	l.logger.Error(l.msg(format, args...))
}

func (l *badgerLogger) Warningf(format string, args ...interface{}) {
	l.logger.Warn(l.msg(format, args...))
}

func (l *badgerLogger) Infof(format string, args ...interface{}) {
	l.logger.Debug(l.msg(format, args...))
}

func (l *badgerLogger) Debugf(format string, args ...interface{}) {
	l.logger.Debug(l.msg(format, args...))
}
