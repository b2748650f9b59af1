package configsqlite

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDriver(t *testing.T) {
	testCases := []struct {
		connString string
		expected   string
	}{
		{"club.db", "sqlite"},
		{"/var/lib/clubops/club.db", "sqlite"},
		{"libsql://club-acme.turso.io", "libsql"},
		{"wss://club-acme.turso.io", "libsql"},
		{"https://club-acme.turso.io", "libsql"},
	}
	for _, tc := range testCases {
		require.Equal(t, tc.expected, Driver(tc.connString), tc.connString)
	}
}

func TestOpenDBCreatesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "club.db")
	db, err := Struct{File: path}.OpenDB("CREATE TABLE IF NOT EXISTS t (id TEXT PRIMARY KEY);")
	require.NoError(t, err)
	defer db.Close()

	_, err = db.Exec("INSERT INTO t (id) VALUES ('1')")
	require.NoError(t, err)
}

func TestOpenDBEmptyPath(t *testing.T) {
	_, err := Struct{}.OpenDB("")
	require.Error(t, err)
}
