// Package configsqlite opens the application database from a config
// value: a plain path for an embedded sqlite file, or a libsql:// /
// wss:// / https:// URL for a hosted database.
package configsqlite

import (
	"database/sql"
	"fmt"
	"os"
	"strings"

	_ "github.com/tursodatabase/libsql-client-go/libsql"
	_ "modernc.org/sqlite"
)

type Struct struct {
	File string `json:"file"`
}

// Driver picks the sql driver from the connection string: remote URL
// schemes go to libsql, anything else is a local sqlite file path.
func Driver(connString string) string {
	for _, scheme := range []string{"libsql://", "wss://", "ws://", "https://", "http://"} {
		if strings.HasPrefix(connString, scheme) {
			return "libsql"
		}
	}
	return "sqlite"
}

// OpenDB opens the configured database and applies the given schema.
// Local files are created when missing; running the schema on an
// existing database is fine since all statements use IF NOT EXISTS.
func (config Struct) OpenDB(schema string) (*sql.DB, error) {
	if config.File == "" {
		return nil, fmt.Errorf("a database path was not specified")
	}

	driver := Driver(config.File)
	if driver == "sqlite" {
		_, statErr := os.Stat(config.File)
		if os.IsNotExist(statErr) {
			f, err := os.Create(config.File)
			if err != nil {
				return nil, err
			}
			f.Close()
		}
	}

	db, err := sql.Open(driver, config.File)
	if err != nil {
		return nil, err
	}

	if driver == "sqlite" {
		// see this stackoverflow post for information on why the following
		// lines exist: https://stackoverflow.com/questions/35804884/sqlite-concurrent-writing-performance
		db.SetMaxOpenConns(1)
		_, err = db.Exec("PRAGMA journal_mode=WAL")
		if err != nil {
			return nil, err
		}
	}

	if schema != "" {
		_, err = db.Exec(schema)
		if err != nil {
			return nil, err
		}
	}

	return db, nil
}
