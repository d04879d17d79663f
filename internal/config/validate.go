package config

import (
	"fmt"
	"slices"
	"strings"

	"csvload/internal/frame"
	"csvload/internal/schema"
)

type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// Issue is one validation finding. Path is a dotted config path such as
// "storage.db.table".
type Issue struct {
	Severity Severity
	Path     string
	Message  string
}

func (i Issue) String() string {
	return fmt.Sprintf("%s: %s: %s", i.Severity, i.Path, i.Message)
}

// ValidatePipeline checks p for problems and returns every issue found.
// It never stops at the first one.
func ValidatePipeline(p Pipeline) []Issue {
	var issues []Issue
	add := func(sev Severity, path, format string, a ...any) {
		issues = append(issues, Issue{Severity: sev, Path: path, Message: fmt.Sprintf(format, a...)})
	}

	if p.Source.Kind != "file" {
		add(SeverityError, "source.kind", "must be %q, got %q", "file", p.Source.Kind)
	}
	if p.Source.File == nil || strings.TrimSpace(p.Source.File.Path) == "" {
		add(SeverityError, "source.file.path", "is required")
	}

	switch p.Parser.Kind {
	case "csv":
		if !p.Parser.Options.Bool("has_header", true) {
			add(SeverityError, "parser.options.has_header", "csv input must have a header row")
		}
	case "xlsx":
	default:
		add(SeverityError, "parser.kind", "must be csv or xlsx, got %q", p.Parser.Kind)
	}

	for i, t := range p.Transform {
		path := fmt.Sprintf("transform[%d]", i)
		switch t.Kind {
		case "add_index":
			if t.Options.String("name", "") == "" {
				add(SeverityError, path+".options.name", "is required")
			}
			if len(t.Options.StringSlice("columns")) == 0 {
				add(SeverityError, path+".options.columns", "must list at least one column")
			}
		case "sort":
			if t.Options.String("column", "") == "" {
				add(SeverityError, path+".options.column", "is required")
			}
		default:
			add(SeverityError, path+".kind", "unknown transform %q", t.Kind)
		}
	}

	// Membership in the backend registry is checked by ValidateBackend.
	if strings.TrimSpace(p.Storage.Kind) == "" {
		add(SeverityError, "storage.kind", "is required")
	}

	db := p.Storage.DB
	if strings.TrimSpace(db.Table) == "" {
		add(SeverityError, "storage.db.table", "is required")
	}
	if db.DSN == "" {
		if p.Storage.Kind == "sqlite" {
			add(SeverityError, "storage.db.dsn", "is required for sqlite")
		} else if db.Host == "" {
			add(SeverityError, "storage.db.host", "is required when dsn is empty")
		}
		if db.Password == "" && p.Storage.Kind != "sqlite" {
			add(SeverityWarning, "storage.db.password", "is empty")
		}
	}
	if db.Port < 0 || db.Port > 65535 {
		add(SeverityError, "storage.db.port", "out of range: %d", db.Port)
	}

	switch db.Mode {
	case ModeAppend, ModeReplace, ModeFail:
	default:
		add(SeverityError, "storage.db.mode", "must be append, replace or fail, got %q", db.Mode)
	}
	if db.ChunkSize < 0 {
		add(SeverityError, "storage.db.chunk_size", "must not be negative")
	}

	seen := map[string]string{}
	for i, c := range db.Columns {
		path := fmt.Sprintf("storage.db.columns[%d]", i)
		if strings.TrimSpace(c.Name) == "" {
			add(SeverityError, path+".name", "is required")
		}
		norm := frame.NormalizeName(c.Name)
		if first, dup := seen[norm]; dup && norm != "" {
			add(SeverityError, path+".name", "duplicate column %q (same as %q)", c.Name, first)
		} else {
			seen[norm] = c.Name
		}
		// an empty type keeps the inferred one
		if c.Type != "" {
			if _, err := schema.ParseType(c.Type); err != nil {
				add(SeverityError, path+".type", "%v", err)
			}
		}
	}
	if db.StrictColumns && len(db.Columns) == 0 {
		add(SeverityError, "storage.db.columns", "strict_columns requires columns")
	}

	return issues
}

// ValidateBackend reports an issue unless kind is one of the registered
// backend kinds.
func ValidateBackend(kind string, registered []string) []Issue {
	if kind == "" || slices.Contains(registered, kind) {
		return nil
	}
	return []Issue{{
		Severity: SeverityError,
		Path:     "storage.kind",
		Message:  fmt.Sprintf("unsupported backend %q (registered: %s)", kind, strings.Join(registered, ", ")),
	}}
}

// HasErrors reports whether any issue has error severity.
func HasErrors(issues []Issue) bool {
	for _, iss := range issues {
		if iss.Severity == SeverityError {
			return true
		}
	}
	return false
}

// Validate returns an error wrapping ErrInvalid that lists every
// error-severity issue, or nil. registered is the list of backend kinds the
// binary was built with.
func Validate(p Pipeline, registered []string) error {
	return issuesError(append(ValidatePipeline(p), ValidateBackend(p.Storage.Kind, registered)...))
}

// issuesError folds the error-severity issues into one error wrapping
// ErrInvalid, or returns nil.
func issuesError(issues []Issue) error {
	if !HasErrors(issues) {
		return nil
	}
	var msgs []string
	for _, iss := range issues {
		if iss.Severity == SeverityError {
			msgs = append(msgs, iss.Path+": "+iss.Message)
		}
	}
	return fmt.Errorf("%w: %s", ErrInvalid, strings.Join(msgs, "; "))
}
