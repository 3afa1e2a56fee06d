// Package store persists caseforge assets with strict tenant isolation.
// Every operation takes the full (tenant_id, workspace_id) scope; there is no
// lookup by bare human-readable id. Cross-scope references are rejected before
// any row is written, multi-row writes are transactional, and the unique
// composite-key indexes are the final authority against duplicate ids.
package store

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/caseforge/caseforge/asset"
	"github.com/caseforge/caseforge/tenancy"
)

// Supported database drivers.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Store provides tenant-scoped persistence on a relational database.
type Store struct {
	db     *gorm.DB
	logger *slog.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger used for store diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		s.logger = logger
	}
}

// PoolConfig bounds the underlying connection pool.
type PoolConfig struct {
	MaxIdleConns    int
	MaxOpenConns    int
	ConnMaxLifetime time.Duration
}

// Open connects to the database identified by driver and dsn and returns a
// Store. Postgres is the production driver; sqlite backs local and test use.
func Open(driver, dsn string, pool PoolConfig, opts ...Option) (*Store, error) {
	var dialector gorm.Dialector
	switch driver {
	case DriverPostgres:
		dialector = postgres.New(postgres.Config{
			DSN:                  dsn,
			PreferSimpleProtocol: true,
		})
	case DriverSQLite:
		dialector = sqlite.Open(dsn)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("open %s database: %w", driver, err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("get database handle: %w", err)
	}
	if pool.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(pool.MaxIdleConns)
	}
	if pool.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(pool.MaxOpenConns)
	}
	if pool.ConnMaxLifetime > 0 {
		sqlDB.SetConnMaxLifetime(pool.ConnMaxLifetime)
	}

	return New(db, opts...), nil
}

// New wraps an existing GORM handle. The handle must have been opened with
// TranslateError enabled for duplicate-key detection to work.
func New(db *gorm.DB, opts ...Option) *Store {
	s := &Store{
		db:     db,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// AutoMigrate creates or updates all asset tables and their composite indexes.
func (s *Store) AutoMigrate() error {
	models := []any{
		&asset.Workspace{},
		&asset.Story{},
		&asset.TestCase{},
		&asset.Bug{},
		&asset.Execution{},
		&asset.Comment{},
	}
	for _, m := range models {
		if err := s.db.AutoMigrate(m); err != nil {
			return fmt.Errorf("auto-migrate %T: %w", m, err)
		}
	}
	return nil
}

// Close releases the underlying connection pool.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// scoped narrows a query to one tenant/workspace pair. Every lookup in this
// package goes through it or repeats the same filter inline; nothing queries
// on a bare id.
func scoped(tx *gorm.DB, scope tenancy.Scope) *gorm.DB {
	return tx.Where("tenant_id = ? AND workspace_id = ?", scope.TenantID, scope.WorkspaceID)
}

// workspaceExists reports whether the scope's workspace row is present.
// Child writes call this inside their transaction so a workspace deleted
// concurrently cannot acquire new children.
func workspaceExists(tx *gorm.DB, scope tenancy.Scope) (bool, error) {
	var n int64
	err := scoped(tx.Model(&asset.Workspace{}), scope).Count(&n).Error
	if err != nil {
		return false, fmt.Errorf("check workspace %s: %w", scope, err)
	}
	return n > 0, nil
}

// storyExists reports whether a story resolves within the given scope.
func storyExists(tx *gorm.DB, scope tenancy.Scope, storyID string) (bool, error) {
	var n int64
	err := scoped(tx.Model(&asset.Story{}), scope).Where("story_id = ?", storyID).Count(&n).Error
	if err != nil {
		return false, fmt.Errorf("check story %s in %s: %w", storyID, scope, err)
	}
	return n > 0, nil
}

// testCaseExists reports whether a test case resolves within the given scope.
func testCaseExists(tx *gorm.DB, scope tenancy.Scope, caseID string) (bool, error) {
	var n int64
	err := scoped(tx.Model(&asset.TestCase{}), scope).Where("case_id = ?", caseID).Count(&n).Error
	if err != nil {
		return false, fmt.Errorf("check test case %s in %s: %w", caseID, scope, err)
	}
	return n > 0, nil
}

func (s *Store) withCtx(ctx context.Context) *gorm.DB {
	return s.db.WithContext(ctx)
}
