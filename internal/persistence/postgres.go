package persistence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/unihelp/helpdesk/internal/config"
	"github.com/unihelp/helpdesk/internal/repository"
)

const applicationName = "helpdesk-api"

// bounds the wait on SELECT ... FOR UPDATE in ticket updates
const lockTimeout = 5 * time.Second

// Postgres wraps the pgx pool behind the ticket stores.
type Postgres struct {
	Pool *pgxpool.Pool
}

// Ping verifies database connectivity.
func (p *Postgres) Ping(ctx context.Context) error {
	if p == nil || p.Pool == nil {
		return errors.New("postgres not configured")
	}
	return p.Pool.Ping(ctx)
}

// Close releases pool resources.
func (p *Postgres) Close() {
	if p != nil && p.Pool != nil {
		p.Pool.Close()
	}
}

// TicketStores bundles the repositories the ticket engine runs on.
type TicketStores struct {
	Tickets   repository.TicketRepository
	Sequences repository.SequenceRepository
	Users     repository.UserRepository
	History   repository.TicketHistoryRepository

	// DB is nil when the stores are in memory.
	DB *Postgres
}

// Durable reports whether the stores survive a restart.
func (s *TicketStores) Durable() bool {
	return s != nil && s.DB != nil
}

// Close releases the database pool, if any.
func (s *TicketStores) Close() {
	if s != nil {
		s.DB.Close()
	}
}

// OpenTicketStores connects to Postgres and applies migrations when a DSN is
// configured. Without one every store is in memory and nothing outlives the
// process.
func OpenTicketStores(ctx context.Context, cfg config.PostgresConfig, logger *zap.Logger) (*TicketStores, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.DSN == "" {
		logger.Warn("POSTGRES_DSN not provided; tickets, users and audit log are kept in memory")
		return &TicketStores{
			Tickets:   repository.NewMemoryTicketRepository(),
			Sequences: repository.NewMemorySequenceRepository(),
			Users:     repository.NewMemoryUserRepository(),
			History:   repository.NewMemoryTicketHistoryRepository(),
		}, nil
	}

	poolCfg, err := poolConfig(cfg)
	if err != nil {
		return nil, err
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("open postgres pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	db := &Postgres{Pool: pool}

	if cfg.RunMigrations {
		if err := RunMigrations(ctx, pool, cfg.MigrationsDir, logger); err != nil {
			db.Close()
			return nil, err
		}
	}

	logger.Info("connected to postgres",
		zap.Int32("max_conns", poolCfg.MaxConns),
		zap.Bool("migrations", cfg.RunMigrations))
	return &TicketStores{
		Tickets:   repository.NewTicketRepository(pool),
		Sequences: repository.NewSequenceRepository(pool),
		Users:     repository.NewUserRepository(pool),
		History:   repository.NewTicketHistoryRepository(pool),
		DB:        db,
	}, nil
}

func poolConfig(cfg config.PostgresConfig) (*pgxpool.Config, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse POSTGRES_DSN: %w", err)
	}

	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = min(cfg.MinConns, poolCfg.MaxConns)
	}
	if cfg.ConnMaxIdleSec > 0 {
		poolCfg.MaxConnIdleTime = time.Duration(cfg.ConnMaxIdleSec) * time.Second
	}
	if cfg.ConnMaxLifeSec > 0 {
		poolCfg.MaxConnLifetime = time.Duration(cfg.ConnMaxLifeSec) * time.Second
	}

	params := poolCfg.ConnConfig.RuntimeParams
	if _, ok := params["application_name"]; !ok {
		params["application_name"] = applicationName
	}
	if _, ok := params["lock_timeout"]; !ok {
		params["lock_timeout"] = fmt.Sprintf("%d", lockTimeout.Milliseconds())
	}
	return poolCfg, nil
}
