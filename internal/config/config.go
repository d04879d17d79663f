// Package config defines the pipeline configuration consumed by cmd/csvload
// and internal/loader, and the helpers to load and validate it.
package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Write modes for storage.db.mode.
const (
	ModeAppend  = "append"
	ModeReplace = "replace"
	ModeFail    = "fail"
)

const (
	DefaultChunkSize = 2000
	DefaultDatabase  = "spotify"
	DefaultJob       = "csvload"
)

// ErrInvalid is wrapped by errors returned for a config that fails validation.
var ErrInvalid = errors.New("config: invalid pipeline")

type Pipeline struct {
	Job       string      `json:"job" yaml:"job"`
	Source    Source      `json:"source" yaml:"source"`
	Parser    Parser      `json:"parser" yaml:"parser"`
	Transform []Transform `json:"transform,omitempty" yaml:"transform,omitempty"`
	Storage   Storage     `json:"storage" yaml:"storage"`
}

type Source struct {
	Kind string      `json:"kind" yaml:"kind"` // "file"
	File *FileSource `json:"file,omitempty" yaml:"file,omitempty"`
}

type FileSource struct {
	Path string `json:"path" yaml:"path"`
}

type Parser struct {
	Kind    string  `json:"kind" yaml:"kind"` // "csv" | "xlsx"
	Options Options `json:"options,omitempty" yaml:"options,omitempty"`
}

// Transform is a frame step applied after parsing: "add_index" or "sort".
type Transform struct {
	Kind    string  `json:"kind" yaml:"kind"`
	Options Options `json:"options,omitempty" yaml:"options,omitempty"`
}

type Storage struct {
	// Backend kind: "mysql" | "postgres" | "mssql" | "sqlite"
	Kind string   `json:"kind" yaml:"kind"`
	DB   DBConfig `json:"db" yaml:"db"`
}

// DBConfig holds connection parameters and the destination table.
//
// Either DSN or the discrete Host/Port/User/Password/Database fields are used;
// a non-empty DSN wins.
type DBConfig struct {
	DSN      string `json:"dsn,omitempty" yaml:"dsn,omitempty"`
	Host     string `json:"host,omitempty" yaml:"host,omitempty"`
	Port     int    `json:"port,omitempty" yaml:"port,omitempty"`
	User     string `json:"user,omitempty" yaml:"user,omitempty"`
	Password string `json:"password,omitempty" yaml:"password,omitempty"`
	Database string `json:"database,omitempty" yaml:"database,omitempty"`

	Table     string         `json:"table" yaml:"table"`
	Mode      string         `json:"mode,omitempty" yaml:"mode,omitempty"`
	ChunkSize int            `json:"chunk_size,omitempty" yaml:"chunk_size,omitempty"`
	Columns   []ColumnConfig `json:"columns,omitempty" yaml:"columns,omitempty"`

	// StrictColumns, when true, makes Columns the complete destination schema
	// instead of per-column type overrides.
	StrictColumns bool `json:"strict_columns,omitempty" yaml:"strict_columns,omitempty"`
}

type ColumnConfig struct {
	Name     string `json:"name" yaml:"name"`
	Type     string `json:"type" yaml:"type"`
	Nullable *bool  `json:"nullable,omitempty" yaml:"nullable,omitempty"`
}

// Load reads a pipeline file. Files ending in .yaml or .yml are decoded as
// YAML, everything else as JSON. ${VAR} references in connection fields and
// the source path are expanded from the environment, and defaults applied.
func Load(path string) (Pipeline, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Pipeline{}, fmt.Errorf("config: read %s: %w", path, err)
	}
	p, err := Decode(data, filepath.Ext(path))
	if err != nil {
		return Pipeline{}, fmt.Errorf("config: decode %s: %w", path, err)
	}
	return p, nil
}

// Decode parses data as JSON or YAML depending on ext.
func Decode(data []byte, ext string) (Pipeline, error) {
	var p Pipeline
	switch strings.ToLower(ext) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &p); err != nil {
			return Pipeline{}, err
		}
	default:
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&p); err != nil {
			return Pipeline{}, err
		}
	}
	ExpandEnv(&p)
	ApplyDefaults(&p)
	return p, nil
}

// ExpandEnv replaces ${VAR} and $VAR in the fields that commonly carry
// secrets or machine-specific paths.
func ExpandEnv(p *Pipeline) {
	db := &p.Storage.DB
	db.DSN = os.ExpandEnv(db.DSN)
	db.Host = os.ExpandEnv(db.Host)
	db.User = os.ExpandEnv(db.User)
	db.Password = os.ExpandEnv(db.Password)
	db.Database = os.ExpandEnv(db.Database)
	if p.Source.File != nil {
		p.Source.File.Path = os.ExpandEnv(p.Source.File.Path)
	}
}

// ApplyDefaults fills in the values a minimal config leaves out.
func ApplyDefaults(p *Pipeline) {
	if p.Job == "" {
		p.Job = DefaultJob
	}
	if p.Source.Kind == "" && p.Source.File != nil {
		p.Source.Kind = "file"
	}
	if p.Parser.Kind == "" {
		p.Parser.Kind = "csv"
	}
	db := &p.Storage.DB
	db.Mode = strings.ToLower(strings.TrimSpace(db.Mode))
	if db.Mode == "" {
		db.Mode = ModeAppend
	}
	if db.ChunkSize <= 0 {
		db.ChunkSize = DefaultChunkSize
	}
	if db.DSN == "" && db.Database == "" && p.Storage.Kind != "sqlite" {
		db.Database = DefaultDatabase
	}
}
