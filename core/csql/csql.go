// Package csql opens the planner's relational database.
//
// Production uses Postgres through lib/pq, every table lives in a dedicated schema
// which is selected with the search_path of each connection. Tests and local
// development may use an in-memory sqlite database instead. Both are handed to the
// rest of the code as a *gorm.DB.
package csql

import (
	"database/sql"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"

	_ "github.com/lib/pq" // load database driver for postgres
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/relabs-tech/plantparenthood/core/logger"
)

// DB encapsulates a standard sql.DB with a schema
type DB struct {
	*sql.DB
	Schema string
}

var validSchema = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

// OpenWithSchema opens a postgres database with a schema. The password is optional
// and may also be part of the data source name. The schema gets created if it does
// not exist yet.
func OpenWithSchema(dataSourceName, password, schema string) (*DB, error) {
	if len(schema) == 0 {
		schema = "public"
	}
	if !validSchema.MatchString(schema) {
		return nil, fmt.Errorf("invalid schema name '%s'", schema)
	}
	logger.Default().Infoln("connecting to postgres database, schema:", schema)
	db, err := sql.Open("postgres", DataSourceWithSchema(dataSourceName, password, schema))
	if err != nil {
		return nil, err
	}
	if err = db.Ping(); err != nil {
		db.Close()
		return nil, err
	}
	res, err := WithSchema(db, schema)
	if err != nil {
		db.Close()
		return nil, err
	}
	return res, nil
}

// WithSchema wraps an open database and makes sure the schema exists
func WithSchema(db *sql.DB, schema string) (*DB, error) {
	if schema != "public" {
		if _, err := db.Exec(`CREATE SCHEMA IF NOT EXISTS ` + schema + `;`); err != nil {
			return nil, fmt.Errorf("cannot create schema %s: %w", schema, err)
		}
	}
	return &DB{DB: db, Schema: schema}, nil
}

// DataSourceWithSchema adds password and search_path to a lib/pq data source name.
// Both the URL form (postgres://...) and the key=value form are supported.
func DataSourceWithSchema(dataSourceName, password, schema string) string {
	if strings.HasPrefix(dataSourceName, "postgres://") || strings.HasPrefix(dataSourceName, "postgresql://") {
		u, err := url.Parse(dataSourceName)
		if err != nil {
			return dataSourceName
		}
		if password != "" && u.User != nil {
			u.User = url.UserPassword(u.User.Username(), password)
		}
		q := u.Query()
		q.Set("search_path", schema)
		u.RawQuery = q.Encode()
		return u.String()
	}
	dsn := strings.TrimSpace(dataSourceName)
	if password != "" {
		dsn += " password='" + strings.ReplaceAll(password, "'", `\'`) + "'"
	}
	return dsn + " search_path=" + schema
}

// ClearSchema drops all tables of the database's schema by dropping and recreating it
func (db *DB) ClearSchema() error {
	if db.Schema == "public" {
		return fmt.Errorf("refuse to drop public schema")
	}
	_, err := db.Exec(`DROP SCHEMA ` + db.Schema + ` CASCADE;
	CREATE SCHEMA IF NOT EXISTS ` + db.Schema + `;`)
	return err
}

// Gorm returns a gorm database on top of the connection pool
func (db *DB) Gorm(level gormlogger.LogLevel) (*gorm.DB, error) {
	return gorm.Open(postgres.New(postgres.Config{Conn: db.DB}), gormConfig(level))
}

// OpenSQLite opens a sqlite database, typically an in-memory one like
// "file:test?mode=memory&cache=shared&_foreign_keys=1". Foreign keys are
// always enforced. sqlite allows only one writer, so the pool is limited to a
// single connection.
func OpenSQLite(dsn string, level gormlogger.LogLevel) (*gorm.DB, error) {
	if !strings.Contains(dsn, "_foreign_keys") {
		if strings.Contains(dsn, "?") {
			dsn += "&_foreign_keys=1"
		} else {
			dsn += "?_foreign_keys=1"
		}
	}
	db, err := gorm.Open(sqlite.Open(dsn), gormConfig(level))
	if err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(1)
	return db, nil
}

func gormConfig(level gormlogger.LogLevel) *gorm.Config {
	return &gorm.Config{
		Logger:         logger.NewGormLogger(level),
		TranslateError: true,
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	}
}
