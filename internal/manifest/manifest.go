// Package manifest loads and validates requirements.yaml, the dependency
// manifest consumed by install-env.
package manifest

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// ErrNotFound is returned when the manifest file does not exist.
var ErrNotFound = errors.New("manifest not found")

// Manifest describes what an environment needs before data processing can run.
type Manifest struct {
	Name        string   `yaml:"name" validate:"required"`
	Directories []string `yaml:"directories" validate:"dive,required"`
	DuckDB      DuckDB   `yaml:"duckdb"`
	Tables      []Table  `yaml:"tables" validate:"dive"`

	// Path and Hash are set by Load.
	Path string `yaml:"-"`
	Hash string `yaml:"-"`
}

// DuckDB lists extensions to install and settings applied to every connection.
type DuckDB struct {
	Extensions []string       `yaml:"extensions" validate:"dive,required,alphanum"`
	Settings   map[string]any `yaml:"settings"`
}

// Table is an input table the environment expects.
type Table struct {
	Name     string   `yaml:"name" validate:"required,oneof=trips shapes stops stop_times vp stop_times_direction"`
	Required bool     `yaml:"required"`
	Columns  []string `yaml:"columns" validate:"dive,required"`
}

// ValidationError lists every problem found in a manifest.
type ValidationError struct {
	Path     string
	Problems []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid manifest %s: %s", e.Path, strings.Join(e.Problems, "; "))
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	// Report yaml names instead of Go field names.
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("yaml"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Load reads, decodes and validates the manifest at path.
func Load(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}

	m, err := Parse(path, data)
	if err != nil {
		return nil, err
	}
	m.Path = path
	m.Hash = Hash(data)
	return m, nil
}

// Parse decodes and validates manifest bytes. Unknown keys are rejected.
func Parse(path string, data []byte) (*Manifest, error) {
	var m Manifest
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&m); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, &ValidationError{Path: path, Problems: []string{"manifest is empty"}}
		}
		return nil, &ValidationError{Path: path, Problems: []string{err.Error()}}
	}

	if problems := m.problems(); len(problems) > 0 {
		return nil, &ValidationError{Path: path, Problems: problems}
	}
	return &m, nil
}

func (m *Manifest) problems() []string {
	var problems []string

	if err := validate.Struct(m); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return []string{err.Error()}
		}
		for _, fe := range verrs {
			problems = append(problems, describe(fe))
		}
	}

	seen := make(map[string]bool, len(m.Tables))
	for _, t := range m.Tables {
		if t.Name != "" && seen[t.Name] {
			problems = append(problems, fmt.Sprintf("tables: duplicate table %q", t.Name))
		}
		seen[t.Name] = true
	}
	return problems
}

func describe(fe validator.FieldError) string {
	field := strings.TrimPrefix(fe.Namespace(), "Manifest.")
	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "oneof":
		return fmt.Sprintf("%s %q must be one of: %s", field, fe.Value(), fe.Param())
	default:
		return fmt.Sprintf("%s failed %q validation", field, fe.Tag())
	}
}

// Hash returns the hex sha256 of the manifest bytes.
func Hash(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// RequiredTables returns the tables marked required.
func (m *Manifest) RequiredTables() []Table {
	var out []Table
	for _, t := range m.Tables {
		if t.Required {
			out = append(out, t)
		}
	}
	return out
}
