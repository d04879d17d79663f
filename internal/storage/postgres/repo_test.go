package postgres

import (
	"strings"
	"testing"

	"github.com/jackc/pgx/v5"

	"csvload/internal/schema"
	"csvload/internal/storage"
)

func TestBuildCreateSQL_QualifiedNameCreatesSchema(t *testing.T) {
	t.Parallel()

	spec := storage.TableSpec{
		Name: "music.tracks",
		Columns: []storage.ColumnSpec{
			{Name: "track_id", Type: schema.TypeText},
			{Name: "popularity", Type: schema.TypeInteger, Nullable: true},
			{Name: "danceability", Type: schema.TypeFloat, Nullable: true},
			{Name: "explicit", Type: schema.TypeBoolean, Nullable: true},
			{Name: "release_date", Type: schema.TypeDate, Nullable: true},
			{Name: "added_at", Type: schema.TypeTimestamp, Nullable: true},
		},
	}

	schemaSQL, tableSQL, err := buildCreateSQL(spec)
	if err != nil {
		t.Fatalf("buildCreateSQL: %v", err)
	}
	if schemaSQL != `CREATE SCHEMA IF NOT EXISTS "music";` {
		t.Fatalf("unexpected schemaSQL: %q", schemaSQL)
	}
	for _, want := range []string{
		`CREATE TABLE IF NOT EXISTS "music"."tracks"`,
		`"track_id" text NOT NULL`,
		`"popularity" bigint,`,
		`"danceability" double precision`,
		`"explicit" boolean`,
		`"release_date" date`,
		`"added_at" timestamp`,
	} {
		if !strings.Contains(tableSQL, want) {
			t.Fatalf("tableSQL missing %q: %s", want, tableSQL)
		}
	}
}

func TestBuildCreateSQL_UnqualifiedNameHasNoSchemaSQL(t *testing.T) {
	t.Parallel()

	schemaSQL, tableSQL, err := buildCreateSQL(storage.TableSpec{
		Name:    "albums",
		Columns: []storage.ColumnSpec{{Name: "name", Type: schema.TypeText, Nullable: true}},
	})
	if err != nil {
		t.Fatalf("buildCreateSQL: %v", err)
	}
	if schemaSQL != "" {
		t.Fatalf("expected no schema DDL, got %q", schemaSQL)
	}
	if tableSQL != `CREATE TABLE IF NOT EXISTS "albums" ("name" text);` {
		t.Fatalf("unexpected tableSQL %q", tableSQL)
	}
}

func TestBuildCreateSQL_RejectsEmptySpec(t *testing.T) {
	t.Parallel()
	if _, _, err := buildCreateSQL(storage.TableSpec{Name: "x"}); err == nil {
		t.Fatalf("expected error for no columns")
	}
}

func TestPgIdentEscapesQuotes(t *testing.T) {
	t.Parallel()
	if got := pgIdent(`we"ird`); got != `"we""ird"` {
		t.Fatalf("got %s", got)
	}
}

func TestCopyIdentifier(t *testing.T) {
	t.Parallel()
	if got := copyIdentifier("public.tracks"); len(got) != 2 || got[0] != "public" || got[1] != "tracks" {
		t.Fatalf("unexpected %v", got)
	}
	if got := copyIdentifier("tracks"); !equalIdent(got, pgx.Identifier{"tracks"}) {
		t.Fatalf("unexpected %v", got)
	}
}

func equalIdent(a, b pgx.Identifier) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestBuildDSN(t *testing.T) {
	t.Parallel()

	got, err := buildDSN(storage.ConnParams{Host: "db", User: "etl", Password: "p@ss", Database: "spotify"})
	if err != nil {
		t.Fatalf("buildDSN: %v", err)
	}
	if got != "postgres://etl:p%40ss@db:5432/spotify?sslmode=disable" {
		t.Fatalf("unexpected dsn %q", got)
	}

	if _, err := buildDSN(storage.ConnParams{}); err == nil {
		t.Fatalf("expected error without host")
	}
}
