package database

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func openPostgres(cfg Config) (*gorm.DB, error) {
	dsn, err := buildPostgresDSN(cfg)
	if err != nil {
		return nil, err
	}
	return gorm.Open(postgres.Open(dsn), gormConfig())
}

// buildPostgresDSN renders a libpq keyword/value string. Connection keys come first in a
// fixed order; options follow sorted so the output is stable.
func buildPostgresDSN(cfg Config) (string, error) {
	if cfg.DSN != "" {
		return cfg.DSN, nil
	}
	if cfg.User == "" || cfg.Name == "" {
		return "", errors.New("postgres configuration requires user and database name")
	}

	host := cfg.Host
	if host == "" {
		host = "localhost"
	}
	port := cfg.Port
	if port == 0 {
		port = 5432
	}

	pairs := [][2]string{
		{"host", host},
		{"port", strconv.Itoa(port)},
		{"user", cfg.User},
		{"dbname", cfg.Name},
	}
	if cfg.Password != "" {
		pairs = append(pairs, [2]string{"password", cfg.Password})
	}

	options := map[string]string{"sslmode": "disable", "TimeZone": "UTC"}
	maps.Copy(options, cfg.Options)
	for _, key := range slices.Sorted(maps.Keys(options)) {
		pairs = append(pairs, [2]string{key, options[key]})
	}

	parts := make([]string, len(pairs))
	for i, kv := range pairs {
		parts[i] = kv[0] + "=" + quoteLibpqValue(kv[1])
	}
	dsn := strings.Join(parts, " ")

	if _, err := pgconn.ParseConfig(dsn); err != nil {
		return "", fmt.Errorf("postgres configuration: %w", err)
	}
	return dsn, nil
}

// quoteLibpqValue single-quotes values that are empty or contain spaces, quotes or backslashes.
func quoteLibpqValue(value string) string {
	if value != "" && !strings.ContainsAny(value, " '\\") {
		return value
	}
	escaped := strings.NewReplacer(`\`, `\\`, `'`, `\'`).Replace(value)
	return "'" + escaped + "'"
}
