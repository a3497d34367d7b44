package database

import (
	"path/filepath"
	"strings"
	"testing"
	"time"

	mysqldriver "github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/require"
)

func TestBuildPostgresDSNDefaults(t *testing.T) {
	dsn, err := buildPostgresDSN(Config{User: "studynotify", Name: "studynotify"})
	require.NoError(t, err)
	require.Equal(t, "host=localhost port=5432 user=studynotify dbname=studynotify TimeZone=UTC sslmode=disable", dsn)
}

func TestBuildPostgresDSNWithOptions(t *testing.T) {
	dsn, err := buildPostgresDSN(Config{
		User:     "engine",
		Name:     "campus",
		Host:     "db.example.com",
		Port:     6543,
		Password: "pass",
		Options:  map[string]string{"search_path": "notify"},
	})
	require.NoError(t, err)

	parsed, err := pgconn.ParseConfig(dsn)
	require.NoError(t, err)
	require.Equal(t, "db.example.com", parsed.Host)
	require.Equal(t, uint16(6543), parsed.Port)
	require.Equal(t, "engine", parsed.User)
	require.Equal(t, "pass", parsed.Password)
	require.Equal(t, "campus", parsed.Database)
	require.Equal(t, "notify", parsed.RuntimeParams["search_path"])
	require.Equal(t, "UTC", parsed.RuntimeParams["TimeZone"])
}

func TestBuildPostgresDSNQuotesPasswords(t *testing.T) {
	dsn, err := buildPostgresDSN(Config{User: "engine", Name: "campus", Password: `it's a \secret`})
	require.NoError(t, err)
	require.Contains(t, dsn, `password='it\'s a \\secret'`)

	parsed, err := pgconn.ParseConfig(dsn)
	require.NoError(t, err)
	require.Equal(t, `it's a \secret`, parsed.Password)
}

func TestBuildPostgresDSNRejectsBadOptions(t *testing.T) {
	_, err := buildPostgresDSN(Config{User: "u", Name: "db", Options: map[string]string{"sslmode": "sometimes"}})
	require.Error(t, err)
}

func TestBuildPostgresDSNPrefersExplicitDSN(t *testing.T) {
	dsn, err := buildPostgresDSN(Config{DSN: "postgres://u:p@h/db"})
	require.NoError(t, err)
	require.Equal(t, "postgres://u:p@h/db", dsn)
}

func TestBuildPostgresDSNRequiresUserAndName(t *testing.T) {
	_, err := buildPostgresDSN(Config{})
	require.Error(t, err)
}

func TestBuildMySQLDSNDefaults(t *testing.T) {
	dsn, err := buildMySQLDSN(Config{User: "studynotify", Name: "studynotify"})
	require.NoError(t, err)
	require.Contains(t, dsn, "charset=utf8mb4")

	parsed, err := mysqldriver.ParseDSN(dsn)
	require.NoError(t, err)
	require.Equal(t, "127.0.0.1:3306", parsed.Addr)
	require.Equal(t, "studynotify", parsed.User)
	require.Equal(t, "studynotify", parsed.DBName)
	require.True(t, parsed.ParseTime)
	require.Equal(t, time.UTC, parsed.Loc)
}

func TestBuildMySQLDSNWithOptions(t *testing.T) {
	dsn, err := buildMySQLDSN(Config{
		User:     "engine",
		Password: "s3cr@t",
		Name:     "campus",
		Host:     "db.example.com",
		Port:     3307,
		Options:  map[string]string{"tls": "skip-verify"},
	})
	require.NoError(t, err)

	parsed, err := mysqldriver.ParseDSN(dsn)
	require.NoError(t, err)
	require.Equal(t, "db.example.com:3307", parsed.Addr)
	require.Equal(t, "s3cr@t", parsed.Passwd)
	require.Equal(t, "skip-verify", parsed.TLSConfig)
}

func TestBuildMySQLDSNRequiresUserAndName(t *testing.T) {
	_, err := buildMySQLDSN(Config{Host: "localhost"})
	require.Error(t, err)
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	_, err := Open(Config{Driver: "oracle"})
	require.Error(t, err)
}

func TestBuildSQLiteDSNFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data", "engine.sqlite")

	dsn, memory, err := buildSQLiteDSN(Config{Path: path})
	require.NoError(t, err)
	require.False(t, memory)
	require.Equal(t, "file:"+filepath.ToSlash(path)+"?_busy_timeout=5000&_foreign_keys=1&_journal_mode=WAL", dsn)
	require.DirExists(t, filepath.Dir(path))
}

func TestBuildSQLiteDSNMemoryIsPerHandle(t *testing.T) {
	first, memory, err := buildSQLiteDSN(Config{Path: ":memory:"})
	require.NoError(t, err)
	require.True(t, memory)
	require.True(t, strings.HasSuffix(first, "?_foreign_keys=1&cache=shared&mode=memory"), first)

	second, _, err := buildSQLiteDSN(Config{})
	require.NoError(t, err)
	require.NotEqual(t, first, second)
}
