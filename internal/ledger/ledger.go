// Package ledger simulates the savings-challenge, SaveCoin reward-token and
// cross-border-yield contracts on SQLite.
//
// It is the fixture backend behind the Gateway boundary: the same calls a
// Soroban relay would receive are executed against local tables, with the
// contract's validation rules and error kinds. Every mutation runs in one
// transaction; simulated calls run the same code and roll back.
package ledger

import (
	"context"
	"crypto/sha256"
	"database/sql"
	_ "embed"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/stellarsave/stellarsave/internal/clock"
)

//go:embed schema.sql
var schemaSQL string

// Schema version tracking:
// 0 - Initial schema
// 1 - Seeded supported corridors
const currentSchemaVersion = 1

// DefaultAdmin administers pools and exchange rates when no admin is set.
const DefaultAdmin = "GADMIN"

// DefaultCorridors are the MoneyGram corridors available after initialization.
var DefaultCorridors = []string{"US-MX", "US-PH", "US-NG", "US-KE", "US-IN", "EU-NG", "CA-JM"}

// Ledger is the simulated contract state.
type Ledger struct {
	db      *sql.DB
	clock   clock.Clock
	admin   string
	seq     *clock.Sequence
	logger  *slog.Logger
	rewards RewardConfig
}

// Option configures a Ledger.
type Option func(*Ledger)

// WithClock sets the ledger time source. Defaults to wall time.
func WithClock(c clock.Clock) Option {
	return func(l *Ledger) { l.clock = c }
}

// WithAdmin sets the admin account for pool and rate management.
func WithAdmin(addr string) Option {
	return func(l *Ledger) { l.admin = addr }
}

// WithRewardConfig replaces the SaveCoin reward schedule.
func WithRewardConfig(cfg RewardConfig) Option {
	return func(l *Ledger) { l.rewards = cfg }
}

// WithLogger sets the logger for contract events.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Ledger) { l.logger = logger }
}

// Open creates or opens a ledger database at path. Use ":memory:" for a
// throwaway ledger.
//
// The database is configured with:
//   - WAL mode for concurrent reads during writes
//   - NORMAL synchronous mode
//   - 5-second busy timeout for lock contention
//   - Foreign key enforcement
func Open(path string, opts ...Option) (*Ledger, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// SQLite supports one writer; a single connection also keeps :memory:
	// databases alive for the ledger's lifetime.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply pragmas: %w", err)
	}

	if err := applySchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	l := &Ledger{
		db:      db,
		clock:   clock.Real{},
		admin:   DefaultAdmin,
		seq:     clock.NewSequence(),
		logger:  slog.Default(),
		rewards: DefaultRewardConfig,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l, nil
}

// Close closes the database connection.
func (l *Ledger) Close() error {
	if l.db == nil {
		return nil
	}
	return l.db.Close()
}

// Admin returns the admin account.
func (l *Ledger) Admin() string {
	return l.admin
}

func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}
	return nil
}

func applySchema(db *sql.DB) error {
	if _, err := db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("failed to execute schema: %w", err)
	}
	if err := runMigrations(db); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}

// runMigrations applies incremental migrations based on user_version.
func runMigrations(db *sql.DB) error {
	var version int
	if err := db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("get user_version: %w", err)
	}

	if version < 1 {
		if err := migrateToV1(db); err != nil {
			return err
		}
	}

	if _, err := db.Exec(fmt.Sprintf("PRAGMA user_version = %d", currentSchemaVersion)); err != nil {
		return fmt.Errorf("set user_version: %w", err)
	}
	return nil
}

// migrateToV1 seeds the supported corridors.
func migrateToV1(db *sql.DB) error {
	for i, c := range DefaultCorridors {
		if _, err := db.Exec(`INSERT OR IGNORE INTO corridors (corridor, position) VALUES (?, ?)`, c, i); err != nil {
			return fmt.Errorf("migrate to v1: %w", err)
		}
	}
	return nil
}

// txn is the execution context of one contract call.
type txn struct {
	*sql.Tx
	now  time.Time
	hash string
}

// txFunc runs contract logic inside a transaction.
type txFunc func(t *txn) (any, error)

// mutate runs fn in a transaction. Simulated calls always roll back and
// carry no hash; submitted calls commit and return the transaction hash that
// fn also recorded on the rows it wrote.
func (l *Ledger) mutate(ctx context.Context, method string, args any, simulate bool, fn txFunc) (any, string, error) {
	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, "", fmt.Errorf("begin %s: %w", method, err)
	}
	defer tx.Rollback()

	t := &txn{Tx: tx, now: l.clock.Now().UTC()}
	if !simulate {
		t.hash = l.txHash(method, args, t.now)
	}
	out, err := fn(t)
	if err != nil {
		return nil, "", err
	}
	if simulate {
		return out, "", nil
	}
	if err := tx.Commit(); err != nil {
		return nil, "", fmt.Errorf("commit %s: %w", method, err)
	}

	l.logger.Debug("ledger transaction", "method", method, "tx", t.hash)
	return out, t.hash, nil
}

// view runs read-only logic in a transaction so multi-statement reads see
// one snapshot.
func (l *Ledger) view(ctx context.Context, fn txFunc) (any, error) {
	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin read: %w", err)
	}
	defer tx.Rollback()
	return fn(&txn{Tx: tx, now: l.clock.Now().UTC()})
}

// txDomain prefixes every transaction hash. The version suffix leaves room
// to change the preimage layout.
const txDomain = "stellarsave/tx/v1"

// txHash derives a unique, deterministic-per-sequence transaction hash:
// SHA256(domain + 0x00 + preimage).
func (l *Ledger) txHash(method string, args any, now time.Time) string {
	raw, _ := json.Marshal(args)
	h := sha256.New()
	h.Write([]byte(txDomain))
	h.Write([]byte{0x00})
	fmt.Fprintf(h, "%s|%s|%d|%d", method, raw, now.UnixNano(), l.seq.Next())
	return hex.EncodeToString(h.Sum(nil))
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
