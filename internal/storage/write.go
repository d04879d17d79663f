package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// WriteMode decides what happens to an existing destination table.
type WriteMode string

const (
	// ModeAppend creates the table if missing and adds rows to it.
	ModeAppend WriteMode = "append"
	// ModeReplace drops the table, recreates it, then inserts.
	ModeReplace WriteMode = "replace"
	// ModeFail refuses to write into an existing table.
	ModeFail WriteMode = "fail"
)

// ErrTableExists is returned by Write in ModeFail when the table exists.
var ErrTableExists = errors.New("storage: table already exists")

// ParseWriteMode maps a config string to a WriteMode. Empty means append.
func ParseWriteMode(s string) (WriteMode, error) {
	switch WriteMode(strings.ToLower(strings.TrimSpace(s))) {
	case "", ModeAppend:
		return ModeAppend, nil
	case ModeReplace:
		return ModeReplace, nil
	case ModeFail:
		return ModeFail, nil
	default:
		return "", fmt.Errorf("storage: unknown write mode %q", s)
	}
}

// Write prepares spec.Name according to mode and inserts rows.
//
// DDL runs before the insert transaction because MySQL commits DDL
// implicitly. In ModeReplace a failed insert therefore leaves an empty,
// recreated table; in ModeAppend it leaves the pre-existing rows unchanged.
func Write(ctx context.Context, repo Repository, spec TableSpec, rows [][]any, mode WriteMode, chunkSize int) (int64, error) {
	if err := spec.Validate(); err != nil {
		return 0, err
	}

	switch mode {
	case ModeFail:
		exists, err := repo.TableExists(ctx, spec.Name)
		if err != nil {
			return 0, fmt.Errorf("storage: check table %s: %w", spec.Name, err)
		}
		if exists {
			return 0, fmt.Errorf("%w: %s", ErrTableExists, spec.Name)
		}
	case ModeReplace:
		if err := repo.DropTable(ctx, spec.Name); err != nil {
			return 0, fmt.Errorf("storage: drop table %s: %w", spec.Name, err)
		}
	case ModeAppend:
	default:
		return 0, fmt.Errorf("storage: unknown write mode %q", mode)
	}

	if err := repo.EnsureTable(ctx, spec); err != nil {
		return 0, fmt.Errorf("storage: create table %s: %w", spec.Name, err)
	}

	n, err := repo.InsertRows(ctx, spec.Name, spec.ColumnNames(), rows, chunkSize)
	if err != nil {
		return 0, fmt.Errorf("storage: insert into %s: %w", spec.Name, err)
	}
	return n, nil
}
