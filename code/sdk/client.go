package sdk

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/Voltaic314/GameLedger/code/config"
	"github.com/Voltaic314/GameLedger/code/core/bonds"
	"github.com/Voltaic314/GameLedger/code/core/items"
	coreTables "github.com/Voltaic314/GameLedger/code/core/tables"
	"github.com/Voltaic314/GameLedger/code/core/words"
	"github.com/Voltaic314/GameLedger/code/db"
	"github.com/Voltaic314/GameLedger/code/db/seed"
	"github.com/Voltaic314/GameLedger/code/db/tables"
	"github.com/Voltaic314/GameLedger/code/debounce"
	"github.com/Voltaic314/GameLedger/code/editor"
	"github.com/Voltaic314/GameLedger/code/logging"
	"github.com/Voltaic314/GameLedger/code/notify"
	dbTypes "github.com/Voltaic314/GameLedger/code/types/db"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Client is the in-process GameLedger facade: one database, a list editor per
// record table and the change hub. The HTTP API is a thin layer over it.
type Client struct {
	cfg      *config.Config
	logger   *zap.Logger
	database *db.DB

	stores   map[string]*tables.RecordStore
	editors  map[string]*editor.ListEditor
	adjuster *items.Adjuster

	hub       *notify.Hub
	publisher notify.Publisher
	relay     *notify.RedisRelay
	redis     *redis.Client
	unsubs    []func()
}

// NewClient loads the config file at cfgPath (defaults when it does not
// exist) and opens the ledger.
func NewClient(cfgPath string) (*Client, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	logger, err := logging.New(cfg.Logging)
	if err != nil {
		return nil, err
	}
	return Open(context.Background(), cfg, logger)
}

// Open connects to the configured database, creates any missing tables and
// loads every record table into its editor.
func Open(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Client, error) {
	logger = logging.OrNop(logger)

	dsn := cfg.Database.Path
	if cfg.Database.Driver != db.DriverPostgres && dsn != ":memory:" {
		dsn, _ = filepath.Abs(dsn)
	}
	database, err := db.NewDB(cfg.Database.Driver, dsn, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	if err := seed.InitDB(ctx, database, logger); err != nil {
		database.Close()
		return nil, fmt.Errorf("failed to initialize tables: %w", err)
	}

	c := &Client{
		cfg:      cfg,
		logger:   logger,
		database: database,
		stores:   make(map[string]*tables.RecordStore),
		editors:  make(map[string]*editor.ListEditor),
		hub:      notify.NewHub(logger),
	}
	c.publisher = c.hub

	if addr := cfg.Notify.RedisAddr; addr != "" {
		client, err := notify.Dial(ctx, addr)
		if err != nil {
			c.closeStorage()
			return nil, err
		}
		c.redis = client
		c.relay = notify.NewRedisRelay(client, cfg.Notify.Channel, c.hub, logger)
		c.publisher = c.relay
	}

	for _, name := range tables.LedgerNames() {
		table, err := tables.Lookup(name)
		if err != nil {
			c.closeStorage()
			return nil, err
		}
		store := tables.NewRecordStore(database, table)
		c.stores[name] = store

		if table.Log {
			database.InitWriteQueue(name, cfg.Database.LogBatchSize, cfg.Database.LogFlushInterval)
			continue
		}

		ed := editor.New(store,
			editor.WithWindow(cfg.Editor.DebounceWindow),
			editor.WithWriteTimeout(cfg.Editor.WriteTimeout),
			editor.WithLogger(logger.With(zap.String("table", name))),
			editor.WithObserver(c.writeObserver(name)),
		)
		if err := ed.Load(ctx, dbTypes.Filter{}); err != nil {
			c.closeStorage()
			return nil, fmt.Errorf("failed to load %s: %w", name, err)
		}
		c.editors[name] = ed
		c.unsubs = append(c.unsubs, notify.Forward(ed, name, c.publisher))
	}

	c.adjuster = items.NewAdjuster(c.editors[tables.ItemsTable], c.stores[tables.ItemLogsTable])

	logger.Info("ledger opened",
		zap.String("driver", cfg.Database.Driver),
		zap.Int("editors", len(c.editors)),
		zap.Bool("redis", c.relay != nil))
	return c, nil
}

// writeObserver publishes failed debounced writes, which never reach a caller.
func (c *Client) writeObserver(table string) debounce.Observer[string] {
	return debounce.ObserverFuncs[string]{
		OnFailed: func(id string, patch dbTypes.Patch, err error) {
			c.publisher.Publish(notify.Event{
				Table:  table,
				Kind:   "write_failed",
				ID:     id,
				Fields: patch.Fields(),
				Error:  err.Error(),
			})
		},
	}
}

// Run relays changes through Redis until ctx is done. Without Redis it just
// waits.
func (c *Client) Run(ctx context.Context) error {
	if c.relay == nil {
		<-ctx.Done()
		return nil
	}
	return c.relay.Run(ctx)
}

// Config returns the loaded configuration.
func (c *Client) Config() *config.Config {
	return c.cfg
}

// Logger returns the client logger.
func (c *Client) Logger() *zap.Logger {
	return c.logger
}

// DB returns the database.
func (c *Client) DB() *db.DB {
	return c.database
}

// Hub returns the in-process change hub.
func (c *Client) Hub() *notify.Hub {
	return c.hub
}

// Editor returns the list editor of a record table. Log tables have none.
func (c *Client) Editor(table string) (*editor.ListEditor, error) {
	ed, ok := c.editors[table]
	if !ok {
		return nil, fmt.Errorf("%w: %s has no editor", tables.ErrUnknownTable, table)
	}
	return ed, nil
}

// Store returns the record store of any ledger table.
func (c *Client) Store(table string) (*tables.RecordStore, error) {
	s, ok := c.stores[table]
	if !ok {
		return nil, fmt.Errorf("%w: %s", tables.ErrUnknownTable, table)
	}
	return s, nil
}

// AdjustQuantity changes an item's quantity and logs the change.
func (c *Client) AdjustQuantity(itemID string, delta int64, reason string) (*items.AdjustResponse, error) {
	return c.adjuster.AdjustQuantity(items.AdjustRequest{ItemID: itemID, Delta: delta, Reason: reason})
}

// ItemLogs lists the quantity changes of an item, newest first.
func (c *Client) ItemLogs(ctx context.Context, itemID string, limit int) ([]dbTypes.Record, error) {
	resp, err := items.ListLogs(ctx, c.stores[tables.ItemLogsTable], items.ListLogsRequest{ItemID: itemID, Limit: limit})
	if err != nil {
		return nil, err
	}
	return resp.Logs, nil
}

// BondSummaries summarizes the bond logs per creature.
func (c *Client) BondSummaries(ctx context.Context) ([]bonds.Summary, error) {
	if err := c.editors[tables.BondLogsTable].Flush(ctx); err != nil {
		return nil, err
	}
	if err := c.editors[tables.CreatureConfigsTable].Flush(ctx); err != nil {
		return nil, err
	}
	resp, err := bonds.BondSummaries(ctx, c.stores[tables.BondLogsTable], c.stores[tables.CreatureConfigsTable])
	if err != nil {
		return nil, fmt.Errorf("failed to summarize bonds: %w", err)
	}
	return resp.Summaries, nil
}

// ListTables lists all registered tables
func (c *Client) ListTables(ctx context.Context) ([]dbTypes.TableInfo, error) {
	resp, err := coreTables.ListTables(ctx, c.database)
	if err != nil {
		return nil, fmt.Errorf("failed to list tables: %w", err)
	}
	return resp.Tables, nil
}

// CountWords counts the words of text outside quoted dialogue.
func (c *Client) CountWords(text string) *words.CountResponse {
	return words.Count(words.CountRequest{Text: text})
}

// Close flushes every editor, then closes the hub, Redis and the database.
func (c *Client) Close(ctx context.Context) error {
	for _, unsub := range c.unsubs {
		unsub()
	}

	g, gctx := errgroup.WithContext(ctx)
	for name, ed := range c.editors {
		g.Go(func() error {
			if err := ed.Close(gctx); err != nil {
				return fmt.Errorf("close %s editor: %w", name, err)
			}
			return nil
		})
	}
	err := g.Wait()

	if cerr := c.closeStorage(); err == nil {
		err = cerr
	}
	c.logger.Info("ledger closed", zap.Error(err))
	return err
}

func (c *Client) closeStorage() error {
	c.hub.Close()
	if c.redis != nil {
		if err := c.redis.Close(); err != nil {
			c.logger.Warn("error closing redis client", zap.Error(err))
		}
	}
	return c.database.Close()
}
