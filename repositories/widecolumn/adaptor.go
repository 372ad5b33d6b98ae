// Package widecolumn is the key-value backend of the variant store. Each
// variant is one badger row holding the full record; a SQL secondary
// index answers which keys match a query.
package widecolumn

import (
	"context"
	"database/sql"
	"encoding/json"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"gohan/variantstore/errors"
	"gohan/variantstore/metadata"
	"gohan/variantstore/models/indexes"
	"gohan/variantstore/repositories"
	"gohan/variantstore/utils"

	"github.com/dgraph-io/badger/v4"
)

const BACKEND = "widecolumn"

type Settings struct {
	// badger directory, ignored when InMemory
	Path     string
	InMemory bool

	SqlDriver string
	SqlDsn    string

	DefaultTimeout   time.Duration
	MaxTimeout       time.Duration
	MaxResultWindow  int
	DefaultBatchSize int
	Logger           *slog.Logger
}

func (s Settings) withDefaults() Settings {
	if s.SqlDriver == "" {
		s.SqlDriver = utils.SQL_DRIVER_SQLITE
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
	rows     *badger.DB
	manager  metadata.Manager
	genes    metadata.GeneResolver
	settings Settings
	logger   *slog.Logger

	sqlOnce sync.Once
	sql     *sql.DB
	sqlErr  error

	closed    atomic.Bool
	closeOnce sync.Once
}

// NewVariantAdaptor opens the row store. The SQL index is connected on
// first use.
func NewVariantAdaptor(manager metadata.Manager, genes metadata.GeneResolver, settings Settings) (*VariantAdaptor, error) {
	settings = settings.withDefaults()
	logger := settings.Logger.With("backend", BACKEND)

	rows, err := utils.OpenBadger(settings.Path, settings.InMemory, logger)
	if err != nil {
		return nil, errors.BackendUnavailable(BACKEND, err)
	}
	return &VariantAdaptor{
		rows:     rows,
		manager:  manager,
		genes:    genes,
		settings: settings,
		logger:   logger,
	}, nil
}

func (a *VariantAdaptor) Close() error {
	var err error
	a.closeOnce.Do(func() {
		a.closed.Store(true)
		if a.sql != nil {
			if sqlErr := a.sql.Close(); sqlErr != nil {
				err = sqlErr
			}
		}
		if rowsErr := a.rows.Close(); rowsErr != nil {
			err = rowsErr
		}
	})
	return err
}

func (a *VariantAdaptor) checkOpen() error {
	if a.closed.Load() {
		return errors.BackendUnavailable(BACKEND, errors.Errorf("adaptor closed"))
	}
	return nil
}

// session returns the SQL index, connecting and migrating it once
func (a *VariantAdaptor) session(ctx context.Context) (*sql.DB, error) {
	a.sqlOnce.Do(func() {
		db, err := utils.OpenSql(a.settings.SqlDriver, a.settings.SqlDsn)
		if err == nil {
			err = migrate(ctx, db)
		}
		if err != nil {
			if db != nil {
				db.Close()
			}
			a.sqlErr = errors.BackendUnavailable(BACKEND, err)
			return
		}
		a.sql = db
		a.logger.Info("sql index connected", "driver", a.settings.SqlDriver)
	})
	return a.sql, a.sqlErr
}

func (a *VariantAdaptor) rebind(query string) string {
	return rebind(a.settings.SqlDriver, query)
}

// queryKeys runs a query returning one string column
func (a *VariantAdaptor) queryKeys(ctx context.Context, query string, args ...interface{}) ([]string, error) {
	db, err := a.session(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := db.QueryContext(ctx, a.rebind(query), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	keys := []string{}
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, err
		}
		keys = append(keys, key)
	}
	return keys, rows.Err()
}

// inTx runs fn in one SQL transaction
func (a *VariantAdaptor) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	db, err := a.session(ctx)
	if err != nil {
		return err
	}
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

func (a *VariantAdaptor) exec(ctx context.Context, tx *sql.Tx, query string, args ...interface{}) error {
	_, err := tx.ExecContext(ctx, a.rebind(query), args...)
	return err
}

// row store layout: v/<key> holds the variant, a/<key>/<name> a named
// annotation snapshot
func rowKey(key string) []byte {
	return []byte("v/" + key)
}

func snapshotPrefix(key string) []byte {
	return []byte("a/" + key + "/")
}

func snapshotKey(key string, name string) []byte {
	return append(snapshotPrefix(key), name...)
}

func readJSON(txn *badger.Txn, k []byte, out interface{}) (bool, error) {
	item, err := txn.Get(k)
	if err == badger.ErrKeyNotFound {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	err = item.Value(func(val []byte) error {
		return json.Unmarshal(val, out)
	})
	return err == nil, err
}

func writeJSON(txn *badger.Txn, k []byte, v interface{}) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return txn.Set(k, raw)
}

func readVariant(txn *badger.Txn, key string) (*indexes.Variant, error) {
	v := &indexes.Variant{}
	found, err := readJSON(txn, rowKey(key), v)
	if err != nil || !found {
		return nil, err
	}
	return v, nil
}

// loadVariants reads the rows of keys, in order. Keys without a row are
// left out.
func (a *VariantAdaptor) loadVariants(keys []string) ([]*indexes.Variant, error) {
	out := make([]*indexes.Variant, 0, len(keys))
	err := a.rows.View(func(txn *badger.Txn) error {
		for _, key := range keys {
			v, err := readVariant(txn, key)
			if err != nil {
				return errors.Wrapf(err, "reading %s", key)
			}
			if v != nil {
				out = append(out, v)
			}
		}
		return nil
	})
	return out, err
}

// per row outcomes of a read-modify-write
const (
	OUTCOME_CREATED  = "created"
	OUTCOME_UPDATED  = "updated"
	OUTCOME_REJECTED = "rejected"
	OUTCOME_NOOP     = "noop"
	OUTCOME_MISSING  = "missing"
	OUTCOME_DELETED  = "deleted"
)

// rowUpdate computes the next state of one row. A nil next leaves the
// row untouched, except for OUTCOME_DELETED which removes it. i is the
// position of the row key; fn may run more than once for a key.
type rowUpdate func(txn *badger.Txn, i int, current *indexes.Variant) (next *indexes.Variant, outcome string, err error)

const (
	rowsPerTxn      = 256
	conflictRetries = 5
)

// updateRows applies fn to every key in optimistic transactions of
// rowsPerTxn rows, retrying a chunk on conflict. Outcomes are aligned
// with keys. On failure the key being updated is returned.
func (a *VariantAdaptor) updateRows(keys []string, fn rowUpdate) ([]string, string, error) {
	outcomes := make([]string, len(keys))
	for from := 0; from < len(keys); from += rowsPerTxn {
		to := from + rowsPerTxn
		if to > len(keys) {
			to = len(keys)
		}

		var (
			failed string
			err    error
		)
		for attempt := 0; attempt < conflictRetries; attempt++ {
			err = a.rows.Update(func(txn *badger.Txn) error {
				for i := from; i < to; i++ {
					failed = keys[i]
					current, err := readVariant(txn, keys[i])
					if err != nil {
						return err
					}
					next, outcome, err := fn(txn, i, current)
					if err != nil {
						return err
					}
					switch {
					case outcome == OUTCOME_DELETED:
						if err := txn.Delete(rowKey(keys[i])); err != nil {
							return err
						}
					case next != nil:
						if err := writeJSON(txn, rowKey(keys[i]), next); err != nil {
							return err
						}
					}
					outcomes[i] = outcome
				}
				return nil
			})
			if errors.Cause(err) != badger.ErrConflict {
				break
			}
			a.logger.Debug("row conflict, retrying", "attempt", attempt+1, "key", keys[from])
		}
		if err != nil {
			return outcomes, failed, err
		}
	}
	return outcomes, "", nil
}
