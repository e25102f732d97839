// Package backend opens the configured trade row store.
package backend

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"hedge-lab/internal/storage"
	chstore "hedge-lab/internal/storage/clickhouse"
	"hedge-lab/internal/storage/memory"
	"hedge-lab/internal/storage/migrations"
	pgstore "hedge-lab/internal/storage/postgres"
)

// Kind selects a store implementation.
type Kind string

const (
	KindAuto       Kind = "auto"
	KindMemory     Kind = "memory"
	KindPostgres   Kind = "postgres"
	KindClickhouse Kind = "clickhouse"
)

// ParseKind accepts the flag spellings of Kind. Empty means auto.
func ParseKind(s string) (Kind, error) {
	switch k := Kind(strings.ToLower(strings.TrimSpace(s))); k {
	case "":
		return KindAuto, nil
	case KindAuto, KindMemory, KindPostgres, KindClickhouse:
		return k, nil
	case "pg":
		return KindPostgres, nil
	case "ch":
		return KindClickhouse, nil
	default:
		return "", fmt.Errorf("unknown store %q (want memory, postgres or clickhouse)", s)
	}
}

// Options selects and configures the store.
type Options struct {
	Kind          Kind
	PostgresDSN   string
	ClickhouseDSN string
	// Migrate applies embedded migrations before returning.
	Migrate bool
	Logger  *zap.Logger
}

// Resolve turns auto into a concrete kind: postgres when its DSN is set,
// then clickhouse, else memory.
func (o Options) Resolve() (Kind, error) {
	switch o.Kind {
	case "", KindAuto:
		switch {
		case o.PostgresDSN != "":
			return KindPostgres, nil
		case o.ClickhouseDSN != "":
			return KindClickhouse, nil
		default:
			return KindMemory, nil
		}
	case KindPostgres:
		if o.PostgresDSN == "" {
			return "", fmt.Errorf("postgres store requires a DSN")
		}
	case KindClickhouse:
		if o.ClickhouseDSN == "" {
			return "", fmt.Errorf("clickhouse store requires a DSN")
		}
	}
	return o.Kind, nil
}

// Open connects to the selected store. The returned cleanup releases its
// connections and is never nil.
func Open(ctx context.Context, opts Options) (storage.TradeRowStore, Kind, func(), error) {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	kind, err := opts.Resolve()
	if err != nil {
		return nil, "", func() {}, err
	}

	switch kind {
	case KindPostgres:
		pool, err := pgstore.NewPool(ctx, opts.PostgresDSN)
		if err != nil {
			return nil, kind, func() {}, err
		}
		if opts.Migrate {
			applied, err := migrations.RunPostgresMigrations(ctx, pool)
			if err != nil {
				pool.Close()
				return nil, kind, func() {}, err
			}
			opts.Logger.Info("postgres migrations applied", zap.Strings("files", applied))
		}
		return pgstore.NewTradeRowStore(pool), kind, pool.Close, nil

	case KindClickhouse:
		var (
			conn *chstore.Conn
			err  error
		)
		if opts.Migrate {
			conn, err = migrations.RunClickhouseMigrations(ctx, opts.ClickhouseDSN)
		} else {
			conn, err = chstore.NewConn(ctx, opts.ClickhouseDSN)
		}
		if err != nil {
			return nil, kind, func() {}, err
		}
		cleanup := func() {
			if err := conn.Close(); err != nil {
				opts.Logger.Warn("close clickhouse", zap.Error(err))
			}
		}
		return chstore.NewTradeRowStore(conn), kind, cleanup, nil

	default:
		return memory.NewTradeRowStore(), KindMemory, func() {}, nil
	}
}
