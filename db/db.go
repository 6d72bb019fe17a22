package db

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect"
	"github.com/uptrace/bun/dialect/mysqldialect"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/extra/bundebug"
	_ "modernc.org/sqlite"

	"github.com/padraicbc/barrancos/config"
	"github.com/padraicbc/barrancos/models"
)

// Setup opens the configured database and exits the process on failure.
func Setup(cfg *config.Config) *bun.DB {
	db, err := Open(context.Background(), cfg)
	if err != nil {
		log.Fatal("failed to connect to database:", err)
	}
	return db
}

// Open connects to the database selected by cfg.DBDriver and pings it.
func Open(ctx context.Context, cfg *config.Config) (*bun.DB, error) {
	var db *bun.DB
	switch cfg.DBDriver {
	case config.DriverPostgres:
		sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(cfg.PostgresDSN())))
		db = bun.NewDB(sqldb, pgdialect.New())
	case config.DriverMySQL:
		myCfg, err := mysql.ParseDSN(cfg.MySQLDSN)
		if err != nil {
			return nil, fmt.Errorf("parse MYSQL_DSN: %w", err)
		}
		// Report matched rather than changed rows so an unchanged update is not a miss.
		myCfg.ClientFoundRows = true
		connector, err := mysql.NewConnector(myCfg)
		if err != nil {
			return nil, fmt.Errorf("open mysql: %w", err)
		}
		db = bun.NewDB(sql.OpenDB(connector), mysqldialect.New())
	case config.DriverSQLite:
		sqldb, err := OpenSQLite(cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		db = bun.NewDB(sqldb, sqlitedialect.New())
	default:
		return nil, fmt.Errorf("unsupported driver %q", cfg.DBDriver)
	}

	if cfg.Debug {
		db.AddQueryHook(bundebug.NewQueryHook(bundebug.WithVerbose(true)))
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping %s: %w", cfg.DBDriver, err)
	}

	return db, nil
}

// OpenSQLite opens a SQLite file through the pure-Go modernc driver.
// Writers wait on a locked database instead of failing immediately.
func OpenSQLite(path string) (*sql.DB, error) {
	sqldb, err := sql.Open("sqlite", sqliteDSN(path))
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	sqldb.SetMaxOpenConns(1)
	return sqldb, nil
}

// sqlitePathEscaper percent-encodes the characters that would end the path
// part of a SQLite URI filename.
var sqlitePathEscaper = strings.NewReplacer("%", "%25", "?", "%3f", "#", "%23")

func sqliteDSN(path string) string {
	return "file:" + sqlitePathEscaper.Replace(path) + "?_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)"
}

// CreateTables creates all tables if they do not already exist.
func CreateTables(ctx context.Context, db *bun.DB) error {
	tables := []interface{}{
		(*models.Canyon)(nil),
	}

	for _, model := range tables {
		if _, err := db.NewCreateTable().Model(model).IfNotExists().Exec(ctx); err != nil {
			return fmt.Errorf("creating table for %T: %w", model, err)
		}
	}

	for _, stmt := range dialectFixups(db.Dialect().Name()) {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("adjusting schema: %w", err)
		}
	}

	return nil
}

// dialectFixups returns the statements run after table creation on a given
// dialect. MySQL compares with a case-insensitive collation by default, so the
// canyon name column is switched to a binary one to keep names exact.
func dialectFixups(name dialect.Name) []string {
	switch name {
	case dialect.MySQL:
		return []string{
			"ALTER TABLE barrancos MODIFY name VARCHAR(100) CHARACTER SET utf8mb4 COLLATE utf8mb4_bin NOT NULL",
		}
	default:
		return nil
	}
}
