package main

import (
	"bytes"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"csvload/internal/config"
	"csvload/internal/dbcontainer"
)

const artistsCSV = `Artist ID,Name,Followers,Popularity
1dfeR4HaWDbWqFHLkxsg1d,Queen,37000000,86
3WrFJ7ztbogyGnTHbHJFl2,The Beatles,24000000,83
7dGJo4pcD2V6oG8kP0tJRR,Eminem,61000000,91
`

func writeTestPipeline(t *testing.T, mode string) (cfgPath, dbPath string) {
	t.Helper()
	dir := t.TempDir()
	csvPath := filepath.Join(dir, "artists.csv")
	require.NoError(t, os.WriteFile(csvPath, []byte(artistsCSV), 0o644))
	dbPath = filepath.Join(dir, "spotify.db")

	cfg := fmt.Sprintf(`{
  "job": "spotify_artists",
  "source": {"kind": "file", "file": {"path": %q}},
  "parser": {"kind": "csv"},
  "storage": {"kind": "sqlite", "db": {"dsn": %q, "table": "artists", "mode": %q}}
}`, csvPath, dbPath, mode)
	cfgPath = filepath.Join(dir, "pipeline.json")
	require.NoError(t, os.WriteFile(cfgPath, []byte(cfg), 0o644))
	return cfgPath, dbPath
}

func execute(t *testing.T, args ...string) (stdout, stderr string, err error) {
	t.Helper()
	cmd := newRootCmd()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err = cmd.Execute()
	return out.String(), errOut.String(), err
}

func countArtists(t *testing.T, dbPath string) int {
	t.Helper()
	db, err := sql.Open("sqlite", dbPath)
	require.NoError(t, err)
	defer db.Close()
	var n int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM "artists"`).Scan(&n))
	return n
}

func TestLoadCommand_WritesAllRows(t *testing.T) {
	cfgPath, dbPath := writeTestPipeline(t, "append")

	out, _, err := execute(t, "load", "--config", cfgPath)
	require.NoError(t, err)
	assert.Contains(t, out, "loaded 3 rows into artists, table now has 3 rows")
	assert.Equal(t, 3, countArtists(t, dbPath))

	out, _, err = execute(t, "load", "--config", cfgPath)
	require.NoError(t, err)
	assert.Contains(t, out, "loaded 3 rows into artists, table now has 6 rows")
}

func TestLoadCommand_ModeFlagOverridesConfig(t *testing.T) {
	cfgPath, dbPath := writeTestPipeline(t, "append")

	_, _, err := execute(t, "load", "-c", cfgPath)
	require.NoError(t, err)
	_, _, err = execute(t, "load", "-c", cfgPath, "--mode", " Replace ")
	require.NoError(t, err)
	assert.Equal(t, 3, countArtists(t, dbPath))

	_, _, err = execute(t, "load", "-c", cfgPath, "--mode", "fail")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already exists")
}

func TestLoadCommand_MissingSourceFile(t *testing.T) {
	cfgPath, _ := writeTestPipeline(t, "append")

	_, _, err := execute(t, "load", "-c", cfgPath, "--file", filepath.Join(t.TempDir(), "nope.csv"))
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestValidateCommand(t *testing.T) {
	cfgPath, _ := writeTestPipeline(t, "append")
	out, _, err := execute(t, "validate", "-c", cfgPath)
	require.NoError(t, err)
	assert.Contains(t, out, "ok: ")

	badPath, _ := writeTestPipeline(t, "upsert")
	_, stderr, err := execute(t, "validate", "-c", badPath)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "configuration is invalid")
	assert.Contains(t, stderr, `error: storage.db.mode: must be append, replace or fail, got "upsert"`)
}

func TestValidateCommand_UnknownBackend(t *testing.T) {
	cfgPath, _ := writeTestPipeline(t, "append")
	raw, err := os.ReadFile(cfgPath)
	require.NoError(t, err)
	raw = bytes.Replace(raw, []byte(`"kind": "sqlite"`), []byte(`"kind": "oracle"`), 1)
	require.NoError(t, os.WriteFile(cfgPath, raw, 0o644))

	_, stderr, err := execute(t, "validate", "-c", cfgPath)
	require.Error(t, err)
	assert.Contains(t, stderr, `error: storage.kind: unsupported backend "oracle"`)
	assert.Contains(t, stderr, "sqlite")
}

func TestHeadCommand(t *testing.T) {
	cfgPath, dbPath := writeTestPipeline(t, "append")

	out, _, err := execute(t, "head", "-c", cfgPath, "-n", "2")
	require.NoError(t, err)
	assert.Contains(t, out, "artist_id")
	assert.Contains(t, out, "Queen")
	assert.Contains(t, out, "The Beatles")
	assert.NotContains(t, out, "Eminem")
	assert.Contains(t, out, "[3 rows x 4 columns]")

	_, err = os.Stat(dbPath)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestApplyOverrides(t *testing.T) {
	var p config.Pipeline
	applyOverrides(&p, loadFlagValues{mode: "replace", file: "a.csv", table: "albums"})
	assert.Equal(t, "replace", p.Storage.DB.Mode)
	require.NotNil(t, p.Source.File)
	assert.Equal(t, "a.csv", p.Source.File.Path)
	assert.Equal(t, "file", p.Source.Kind)
	assert.Equal(t, "albums", p.Storage.DB.Table)

	p2 := config.Pipeline{Storage: config.Storage{DB: config.DBConfig{Mode: "fail", Table: "t"}}}
	applyOverrides(&p2, loadFlagValues{})
	assert.Equal(t, "fail", p2.Storage.DB.Mode)
	assert.Equal(t, "t", p2.Storage.DB.Table)
	assert.Nil(t, p2.Source.File)
}

func TestPointAtContainer(t *testing.T) {
	p := config.Pipeline{Storage: config.Storage{Kind: "sqlite", DB: config.DBConfig{DSN: "x.db", Table: "artists"}}}
	m := &dbcontainer.MySQL{Host: "localhost", Port: 49153, Password: "mysql", Database: "spotify"}

	pointAtContainer(&p, m)
	assert.Equal(t, "mysql", p.Storage.Kind)
	assert.Empty(t, p.Storage.DB.DSN)
	assert.Equal(t, "localhost", p.Storage.DB.Host)
	assert.Equal(t, 49153, p.Storage.DB.Port)
	assert.Equal(t, "root", p.Storage.DB.User)
	assert.Equal(t, "artists", p.Storage.DB.Table)
}

func TestContainerOptions_ZeroPortIsRandom(t *testing.T) {
	o := containerOptions(bootstrapFlagValues{port: 0, image: "mysql:8.4"}, "pw")
	assert.True(t, o.RandomPort)
	assert.Equal(t, "mysql:8.4", o.Image)
	assert.Equal(t, "pw", o.RootPassword)

	o = containerOptions(bootstrapFlagValues{port: 3307}, "")
	assert.False(t, o.RandomPort)
	assert.Equal(t, 3307, o.HostPort)
}

func TestProbeCommand_OutputLoadsAsValidConfig(t *testing.T) {
	dir := t.TempDir()
	csvPath := filepath.Join(dir, "artists.csv")
	require.NoError(t, os.WriteFile(csvPath, []byte(artistsCSV), 0o644))
	outPath := filepath.Join(dir, "generated.yaml")

	_, stderr, err := execute(t, "probe", csvPath, "--backend", "sqlite", "--yaml", "-o", outPath)
	require.NoError(t, err)
	assert.Contains(t, stderr, "followers (Followers): integer not null empty=0")

	p, err := config.Load(outPath)
	require.NoError(t, err)
	assert.Equal(t, "sqlite", p.Storage.Kind)
	assert.Equal(t, "artists", p.Storage.DB.Table)
	require.Len(t, p.Storage.DB.Columns, 4)
	assert.Equal(t, "integer", p.Storage.DB.Columns[3].Type)
	assert.False(t, config.HasErrors(config.ValidatePipeline(p)))
}

func TestProbeCommand_RejectsMultiCharComma(t *testing.T) {
	_, _, err := execute(t, "probe", "x.csv", "--comma", ";;")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "single character")
}
