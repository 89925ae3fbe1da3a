package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sethvargo/go-envconfig"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bryanwahyu/leakwatch/internal/domain/assets"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

const sample = `
database:
  driver: mysql
  host: db
  port: 3306
  user: leak
  password: from-file
  name: leakwatch
scan:
  interval: 2h
  initial_delay: 5s
  run_on_start: true
targets:
  - {id: "13365322", kind: user, developer: true, name: chickenputty}
  - {id: "3317771874", kind: place}
developers: ["1493409"]
uploads:
  max_bytes: 2048
  session_ttl: 1m
`

func TestLoadAppliesDefaultsAndEnv(t *testing.T) {
	path := writeConfig(t, sample)
	env := envconfig.MapLookuper(map[string]string{
		"LEAKWATCH_DB_PASSWORD": "from-env",
		"LEAKWATCH_PORT":        "9090",
		"LEAKWATCH_NATS_URL":    "nats://nats:4222",
	})

	cfg, err := LoadWith(context.Background(), path, env)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "from-env", cfg.Database.Password)
	assert.Equal(t, "nats://nats:4222", cfg.NATS.URL)
	assert.Equal(t, "leakwatch", cfg.NATS.SubjectPrefix)
	assert.Equal(t, 2*time.Hour, cfg.Scan.Interval)
	assert.Equal(t, 5*time.Second, cfg.Scan.InitialDelay)
	assert.True(t, cfg.Scan.RunOnStart)
	assert.Equal(t, int64(2048), cfg.Uploads.MaxBytes)
	assert.Equal(t, time.Minute, cfg.Uploads.SessionTTL)
	assert.Contains(t, cfg.Uploads.AllowedExtensions, "rbxm")
	assert.Equal(t, "/", cfg.Bot.Prefix)

	require.Len(t, cfg.Targets, 2)
	assert.Equal(t, assets.Target{ID: "13365322", Kind: assets.TargetUser, Developer: true, Name: "chickenputty"}, cfg.Targets[0])
	assert.Equal(t, assets.TargetPlace, cfg.Targets[1].Kind)
	assert.Equal(t, []string{"1493409"}, cfg.Developers)

	assert.Equal(t, "leak:from-env@tcp(db:3306)/leakwatch?parseTime=true&charset=utf8mb4&loc=UTC", cfg.MySQLDSN())
}

func TestPostgresDSN(t *testing.T) {
	var c Config
	c.Database.User = "leak"
	c.Database.Password = "p@ss"
	c.Database.Host = "pg"
	c.Database.Port = 5432
	c.Database.Name = "leakwatch"
	assert.Equal(t, "postgres://leak:p%40ss@pg:5432/leakwatch?sslmode=disable", c.PostgresDSN())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"unknown driver", "database: {driver: oracle}", "unknown database.driver"},
		{"mysql needs host", "database: {driver: mysql}", "database.host and database.name are required"},
		{"interval too short", "database: {driver: sqlite}\nscan: {interval: 10s}", "below 1m"},
		{"bad target kind", "database: {driver: sqlite}\ntargets: [{id: '1', kind: planet}]", "invalid kind"},
		{"duplicate target", "database: {driver: sqlite}\ntargets: [{id: '1', kind: user}, {id: '1', kind: group}]", "duplicate id"},
		{"missing id", "database: {driver: sqlite}\ntargets: [{kind: user}]", "id is required"},
		{"prefix whitespace", "database: {driver: sqlite}\nbot: {prefix: '! '}", "must not contain whitespace"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadWith(context.Background(), writeConfig(t, tt.body), envconfig.MapLookuper(nil))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestSQLiteDefaults(t *testing.T) {
	cfg, err := LoadWith(context.Background(), writeConfig(t, "database: {driver: sqlite}"), envconfig.MapLookuper(nil))
	require.NoError(t, err)
	assert.Equal(t, "leakwatch.db", cfg.Database.Path)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 3*time.Hour, cfg.Scan.Interval)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(context.Background(), filepath.Join(t.TempDir(), "nope.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}
