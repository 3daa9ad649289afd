// Package warehouse loads the raw store into relational warehouse tables
// and checks the two stay in step.
package warehouse

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/mattn/go-sqlite3"
	"github.com/snowflakedb/gosnowflake"
)

// Supported warehouse types.
const (
	TypeSnowflake = "snowflake"
	TypePostgres  = "postgres"
	TypeSQLite    = "sqlite"
)

const DefaultSchema = "RAW"

var ErrUnsupportedType = errors.New("unsupported warehouse type")

type Config struct {
	Type       string
	Host       string
	Port       int
	User       string
	Password   string
	Account    string
	Warehouse  string
	Database   string
	Schema     string
	Role       string
	SQLitePath string
	JSONMode   JSONMode
}

type DB struct {
	conn     *sql.DB
	dbType   string
	jsonMode JSONMode
}

func NewDB(ctx context.Context, config Config) (*DB, error) {
	var conn *sql.DB
	var err error

	switch config.Type {
	case TypeSQLite:
		conn, err = sql.Open("sqlite3", config.SQLitePath)
		if err == nil {
			// An in-memory database exists per connection.
			conn.SetMaxOpenConns(1)
		}
	case TypePostgres:
		dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
			config.Host, config.Port, config.User, config.Password, config.Database)
		conn, err = sql.Open("pgx", dsn)
	case TypeSnowflake:
		var dsn string
		dsn, err = snowflakeDSN(config)
		if err != nil {
			return nil, err
		}
		conn, err = sql.Open("snowflake", dsn)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedType, config.Type)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to open warehouse: %w", err)
	}

	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to ping warehouse: %w", err)
	}

	return &DB{conn: conn, dbType: config.Type, jsonMode: config.JSONMode}, nil
}

// NewFromConn wraps an already opened connection. dbType selects the SQL
// dialect and mode the type of nested JSON columns.
func NewFromConn(conn *sql.DB, dbType string, mode JSONMode) *DB {
	return &DB{conn: conn, dbType: dbType, jsonMode: mode}
}

func snowflakeDSN(config Config) (string, error) {
	schema := config.Schema
	if schema == "" {
		schema = DefaultSchema
	}

	dsn, err := gosnowflake.DSN(&gosnowflake.Config{
		Account:   config.Account,
		User:      config.User,
		Password:  config.Password,
		Database:  config.Database,
		Schema:    schema,
		Warehouse: config.Warehouse,
		Role:      config.Role,
	})
	if err != nil {
		return "", fmt.Errorf("failed to build snowflake dsn: %w", err)
	}
	return dsn, nil
}

func (db *DB) Close() error {
	return db.conn.Close()
}

func (db *DB) Conn() *sql.DB {
	return db.conn
}

func (db *DB) Type() string {
	return db.dbType
}

// jsonColumnType is the column type nested JSON fields are created with.
// Only snowflake in variant mode stores them natively.
func (db *DB) jsonColumnType() string {
	if db.dbType == TypeSnowflake && db.jsonMode == JSONVariant {
		return "VARIANT"
	}
	return "TEXT"
}

// placeholder returns the bind marker for the n-th (1-based) parameter.
func (db *DB) placeholder(n int) string {
	if db.dbType == TypePostgres {
		return fmt.Sprintf("$%d", n)
	}
	return "?"
}

func (db *DB) placeholders(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = db.placeholder(i + 1)
	}
	return out
}

// truncate empties a table. SQLite has no TRUNCATE statement.
func (db *DB) truncate(ctx context.Context, table string) error {
	query := "TRUNCATE TABLE " + table
	if db.dbType == TypeSQLite {
		query = "DELETE FROM " + table
	}
	if _, err := db.conn.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("failed to truncate %s: %w", table, err)
	}
	return nil
}

// Count returns the number of rows in a table.
func (db *DB) Count(ctx context.Context, table string) (int64, error) {
	var n int64
	if err := db.conn.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+table).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count %s: %w", table, err)
	}
	return n, nil
}

// splitStatements breaks a migration file into single statements. Snowflake
// executes one statement per call.
func splitStatements(script string) []string {
	var out []string
	for _, part := range strings.Split(script, ";") {
		var lines []string
		for _, line := range strings.Split(part, "\n") {
			if strings.HasPrefix(strings.TrimSpace(line), "--") {
				continue
			}
			lines = append(lines, line)
		}
		stmt := strings.TrimSpace(strings.Join(lines, "\n"))
		if stmt != "" {
			out = append(out, stmt)
		}
	}
	return out
}
