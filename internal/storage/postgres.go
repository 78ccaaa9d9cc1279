package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	json "github.com/goccy/go-json"
	_ "github.com/lib/pq"
	"github.com/tbencze/alpha-pilot/internal/state"
	"go.uber.org/zap"
)

// stateRowID pins the scheduler state to a single row; the record is only
// ever overwritten, never deleted.
const stateRowID = 1

// PostgresStore persists the scheduler state as a JSONB row and appends each
// task result to a history table.
type PostgresStore struct {
	db     *sql.DB
	logger *zap.Logger

	// mu serializes read-modify-write transforms within this process.
	mu          sync.Mutex
	subMu       sync.Mutex
	subscribers []func(state.SchedulerState)
}

// PostgresConfig holds PostgreSQL connection configuration.
type PostgresConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	Database string
	SSLMode  string
	Logger   *zap.Logger
}

// NewPostgresStore connects and ensures the schema exists.
func NewPostgresStore(cfg *PostgresConfig) (*PostgresStore, error) {
	connStr := fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Database, cfg.SSLMode,
	)

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	err = db.Ping()
	if err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	store := &PostgresStore{db: db, logger: cfg.Logger}

	err = store.ensureSchema()
	if err != nil {
		return nil, fmt.Errorf("ensure schema: %w", err)
	}

	cfg.Logger.Info("postgres-store-connected",
		zap.String("host", cfg.Host),
		zap.String("database", cfg.Database))

	return store, nil
}

func (p *PostgresStore) ensureSchema() error {
	_, err := p.db.Exec(`
		CREATE TABLE IF NOT EXISTS scheduler_state (
			id INT PRIMARY KEY,
			data JSONB NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL
		)
	`)
	if err != nil {
		return fmt.Errorf("create scheduler_state: %w", err)
	}

	_, err = p.db.Exec(`
		CREATE TABLE IF NOT EXISTS task_results (
			id BIGSERIAL PRIMARY KEY,
			success BOOLEAN NOT NULL,
			details TEXT,
			meta JSONB,
			reported_at TIMESTAMPTZ NOT NULL
		)
	`)
	if err != nil {
		return fmt.Errorf("create task_results: %w", err)
	}

	return nil
}

// Get loads the state row, creating the default record on first read.
func (p *PostgresStore) Get(ctx context.Context) (*state.SchedulerState, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.getLocked(ctx)
}

func (p *PostgresStore) getLocked(ctx context.Context) (*state.SchedulerState, error) {
	var raw []byte
	err := p.db.QueryRowContext(ctx,
		`SELECT data FROM scheduler_state WHERE id = $1`, stateRowID).Scan(&raw)

	if errors.Is(err, sql.ErrNoRows) {
		st := state.NewDefault()
		err = p.setLocked(ctx, st)
		if err != nil {
			return nil, fmt.Errorf("initialize state: %w", err)
		}
		return st, nil
	}
	if err != nil {
		return nil, fmt.Errorf("select state: %w", err)
	}

	var st state.SchedulerState
	err = json.Unmarshal(raw, &st)
	if err != nil {
		return nil, fmt.Errorf("decode state: %w", err)
	}

	return &st, nil
}

// Set overwrites the state row and notifies subscribers.
func (p *PostgresStore) Set(ctx context.Context, st *state.SchedulerState) error {
	p.mu.Lock()
	err := p.setLocked(ctx, st)
	p.mu.Unlock()
	if err != nil {
		return err
	}

	p.notify(*st)
	return nil
}

func (p *PostgresStore) setLocked(ctx context.Context, st *state.SchedulerState) error {
	raw, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("encode state: %w", err)
	}

	_, err = p.db.ExecContext(ctx, `
		INSERT INTO scheduler_state (id, data, updated_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (id) DO UPDATE SET data = $2, updated_at = $3
	`, stateRowID, raw, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("upsert state: %w", err)
	}

	return nil
}

// Update applies a read-modify-write transform as one serialized step.
func (p *PostgresStore) Update(ctx context.Context, transform func(*state.SchedulerState)) (*state.SchedulerState, error) {
	p.mu.Lock()

	st, err := p.getLocked(ctx)
	if err != nil {
		p.mu.Unlock()
		return nil, err
	}

	transform(st)

	err = p.setLocked(ctx, st)
	p.mu.Unlock()
	if err != nil {
		return nil, err
	}

	p.notify(*st)
	return st, nil
}

// AppendTaskResult records one TASK_COMPLETE snapshot in the history table.
func (p *PostgresStore) AppendTaskResult(ctx context.Context, result *state.TaskResultSnapshot) error {
	var meta []byte
	if result.Meta != nil {
		var err error
		meta, err = json.Marshal(result.Meta)
		if err != nil {
			return fmt.Errorf("encode meta: %w", err)
		}
	}

	_, err := p.db.ExecContext(ctx, `
		INSERT INTO task_results (success, details, meta, reported_at)
		VALUES ($1, $2, $3, $4)
	`, result.Success, result.Details, meta, result.ReportedAt)
	if err != nil {
		return fmt.Errorf("insert task result: %w", err)
	}

	return nil
}

// Subscribe registers a change callback.
func (p *PostgresStore) Subscribe(onChange func(state.SchedulerState)) {
	p.subMu.Lock()
	defer p.subMu.Unlock()
	p.subscribers = append(p.subscribers, onChange)
}

func (p *PostgresStore) notify(snapshot state.SchedulerState) {
	p.subMu.Lock()
	subs := make([]func(state.SchedulerState), len(p.subscribers))
	copy(subs, p.subscribers)
	p.subMu.Unlock()

	for _, fn := range subs {
		fn(snapshot)
	}
}

// Close closes the database connection.
func (p *PostgresStore) Close() error {
	p.logger.Info("closing-postgres-store")
	return p.db.Close()
}
