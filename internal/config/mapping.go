package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// MappingConfig describes how the primary table is reconciled: which column carries
// the row identity, what counts as a placeholder, and which targets are filled from
// which reference files.
//
// The three built-in targets (Taxonomy, PAI, ESG) are configured through flat
// environment variables. A YAML mapping file can replace them with any list.
type MappingConfig struct {
	// File is an optional YAML mapping file overlaid after the environment.
	File string `env:"MAPPING_FILE"`

	IdentityField string `env:"MAPPING_IDENTITY_FIELD" default:"Ids"`

	// Placeholders are the tokens treated as "not available" besides the empty
	// cell. An empty MAPPING_PLACEHOLDERS reads as unset and keeps the default;
	// use "placeholders: []" in the mapping file to match empty cells only.
	Placeholders             []string `env:"MAPPING_PLACEHOLDERS" default:"NA,N/A"`
	PlaceholderCaseSensitive bool     `env:"MAPPING_PLACEHOLDER_CASE_SENSITIVE" default:"false"`

	// HeaderCaseSensitive stops column lookups from falling back to a
	// case-insensitive match after the trimmed exact match fails.
	HeaderCaseSensitive bool `env:"MAPPING_HEADER_CASE_SENSITIVE" default:"false"`

	// FillValue is written into every row of a target column the engine has to create.
	FillValue string `env:"MAPPING_FILL_VALUE" default:"NA"`

	// OverwritePolicy is "preserve" (fill placeholders only) or "overwrite".
	OverwritePolicy string `env:"MAPPING_OVERWRITE_POLICY" default:"preserve"`

	PrimaryHeaderRow int    `env:"MAPPING_PRIMARY_HEADER_ROW" default:"1"`
	OutputSuffix     string `env:"MAPPING_OUTPUT_SUFFIX" default:"_filled"`

	TaxonomyField     string `env:"MAPPING_TAXONOMY_FIELD" default:"Taxonomy"`
	TaxonomyColumn    string `env:"MAPPING_TAXONOMY_COLUMN" default:"MI Key"`
	TaxonomyHeaderRow int    `env:"MAPPING_TAXONOMY_HEADER_ROW" default:"1"`
	TaxonomyMinFiles  int    `env:"MAPPING_TAXONOMY_MIN_FILES" default:"2"`

	PAIField     string `env:"MAPPING_PAI_FIELD" default:"PAI"`
	PAIColumn    string `env:"MAPPING_PAI_COLUMN" default:"KeyInstn"`
	PAIHeaderRow int    `env:"MAPPING_PAI_HEADER_ROW" default:"1"`
	PAIMinFiles  int    `env:"MAPPING_PAI_MIN_FILES" default:"1"`

	ESGField     string `env:"MAPPING_ESG_FIELD" default:"ESG"`
	ESGColumn    string `env:"MAPPING_ESG_COLUMN" default:"SP_ENTITY_ID"`
	ESGHeaderRow int    `env:"MAPPING_ESG_HEADER_ROW" default:"5"`
	ESGMinFiles  int    `env:"MAPPING_ESG_MIN_FILES" default:"1"`

	// TargetList replaces the built-in targets when non-empty. Set from the mapping file.
	TargetList []TargetConfig
}

// TargetConfig binds one status column to the reference files uploaded under Source.
type TargetConfig struct {
	Field     string `yaml:"field" json:"field"`
	Source    string `yaml:"source" json:"source"`
	Column    string `yaml:"column" json:"column"`
	HeaderRow int    `yaml:"header_row" json:"header_row"`
	Sheet     string `yaml:"sheet,omitempty" json:"sheet,omitempty"`
	MinFiles  int    `yaml:"min_files" json:"min_files"`
}

// PrimarySource is the upload key of the primary table; no target may use it.
const PrimarySource = "primary"

// Targets returns the effective target list with defaults applied.
func (m *MappingConfig) Targets() []TargetConfig {
	if len(m.TargetList) > 0 {
		out := make([]TargetConfig, len(m.TargetList))
		for i, t := range m.TargetList {
			if t.Source == "" {
				t.Source = strings.ToLower(strings.TrimSpace(t.Field))
			}
			if t.HeaderRow == 0 {
				t.HeaderRow = 1
			}
			out[i] = t
		}
		return out
	}

	return []TargetConfig{
		{Field: m.TaxonomyField, Source: "taxonomy", Column: m.TaxonomyColumn, HeaderRow: m.TaxonomyHeaderRow, MinFiles: m.TaxonomyMinFiles},
		{Field: m.PAIField, Source: "pai", Column: m.PAIColumn, HeaderRow: m.PAIHeaderRow, MinFiles: m.PAIMinFiles},
		{Field: m.ESGField, Source: "esg", Column: m.ESGColumn, HeaderRow: m.ESGHeaderRow, MinFiles: m.ESGMinFiles},
	}
}

// mappingFile is the on-disk shape. Pointer fields distinguish "absent" from zero.
type mappingFile struct {
	IdentityField            *string        `yaml:"identity_field"`
	Placeholders             *[]string      `yaml:"placeholders"`
	PlaceholderCaseSensitive *bool          `yaml:"placeholder_case_sensitive"`
	HeaderCaseSensitive      *bool          `yaml:"header_case_sensitive"`
	FillValue                *string        `yaml:"fill_value"`
	OverwritePolicy          *string        `yaml:"overwrite_policy"`
	PrimaryHeaderRow         *int           `yaml:"primary_header_row"`
	OutputSuffix             *string        `yaml:"output_suffix"`
	Targets                  []TargetConfig `yaml:"targets"`
}

// LoadFile overlays the YAML mapping file at path.
func (m *MappingConfig) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read mapping file: %w", err)
	}
	return m.Apply(data)
}

// Apply overlays a YAML mapping document. Unknown keys are rejected.
func (m *MappingConfig) Apply(data []byte) error {
	var f mappingFile
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("parse mapping file: %w", err)
	}

	if f.IdentityField != nil {
		m.IdentityField = *f.IdentityField
	}
	if f.Placeholders != nil {
		m.Placeholders = *f.Placeholders
	}
	if f.PlaceholderCaseSensitive != nil {
		m.PlaceholderCaseSensitive = *f.PlaceholderCaseSensitive
	}
	if f.HeaderCaseSensitive != nil {
		m.HeaderCaseSensitive = *f.HeaderCaseSensitive
	}
	if f.FillValue != nil {
		m.FillValue = *f.FillValue
	}
	if f.OverwritePolicy != nil {
		m.OverwritePolicy = *f.OverwritePolicy
	}
	if f.PrimaryHeaderRow != nil {
		m.PrimaryHeaderRow = *f.PrimaryHeaderRow
	}
	if f.OutputSuffix != nil {
		m.OutputSuffix = *f.OutputSuffix
	}
	if len(f.Targets) > 0 {
		m.TargetList = f.Targets
	}
	return nil
}

// validate appends mapping problems to errs.
func (m *MappingConfig) validate(errs []string) []string {
	if strings.TrimSpace(m.IdentityField) == "" {
		errs = append(errs, "MAPPING_IDENTITY_FIELD must not be empty")
	}
	if m.PrimaryHeaderRow < 1 {
		errs = append(errs, fmt.Sprintf("MAPPING_PRIMARY_HEADER_ROW (%d) must be >= 1", m.PrimaryHeaderRow))
	}
	switch m.OverwritePolicy {
	case "preserve", "overwrite":
	default:
		errs = append(errs, fmt.Sprintf("MAPPING_OVERWRITE_POLICY (%q) must be one of: preserve, overwrite", m.OverwritePolicy))
	}

	targets := m.Targets()
	if len(targets) == 0 {
		errs = append(errs, "mapping must define at least one target")
	}

	fields := make(map[string]bool, len(targets))
	sources := make(map[string]bool, len(targets))
	for i, t := range targets {
		label := fmt.Sprintf("target %d (%s)", i+1, t.Field)

		field := strings.ToLower(strings.TrimSpace(t.Field))
		switch {
		case field == "":
			errs = append(errs, fmt.Sprintf("target %d: field must not be empty", i+1))
		case field == strings.ToLower(strings.TrimSpace(m.IdentityField)):
			errs = append(errs, label+": field must differ from the identity field")
		case fields[field]:
			errs = append(errs, label+": duplicate field")
		}
		fields[field] = true

		switch {
		case t.Source == PrimarySource:
			errs = append(errs, fmt.Sprintf("%s: source %q is reserved", label, PrimarySource))
		case sources[t.Source]:
			errs = append(errs, fmt.Sprintf("%s: duplicate source %q", label, t.Source))
		}
		sources[t.Source] = true

		if strings.TrimSpace(t.Column) == "" {
			errs = append(errs, label+": column must not be empty")
		}
		if t.HeaderRow < 1 {
			errs = append(errs, fmt.Sprintf("%s: header row (%d) must be >= 1", label, t.HeaderRow))
		}
		if t.MinFiles < 0 {
			errs = append(errs, fmt.Sprintf("%s: min files (%d) must be non-negative", label, t.MinFiles))
		}
	}
	return errs
}

// String summarises the mapping for startup logs.
func (m *MappingConfig) String() string {
	var parts []string
	for _, t := range m.Targets() {
		parts = append(parts, fmt.Sprintf("%s<-%s[%s]@%d", t.Field, t.Source, t.Column, t.HeaderRow))
	}
	return fmt.Sprintf("{Identity: %q, Policy: %s, Targets: %s}", m.IdentityField, m.OverwritePolicy, strings.Join(parts, " "))
}
