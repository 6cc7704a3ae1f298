// Package parsers provides parsers for importing seed facts from external files.
package parsers

import (
	"io"
	"path/filepath"
	"strings"
)

// SeedFact represents one canon entry parsed from a seed file before it is
// validated and committed as a chapter-zero fact.
type SeedFact struct {
	Kind    string   `json:"kind"`
	Name    string   `json:"name"`
	Value   string   `json:"value,omitempty"`
	Aliases []string `json:"aliases,omitempty"`
	Day     int      `json:"day,omitempty"`
	LineNum int      `json:"-"` // Line number in source file (set by parser)
}

// Parser defines the interface for parsing seed facts from various formats.
type Parser interface {
	Parse(r io.Reader) ([]SeedFact, error)
}

// ForFormat returns the appropriate parser for the given format.
// Supported formats: "json", "csv".
func ForFormat(format string) Parser {
	switch strings.ToLower(format) {
	case "json":
		return &JSONParser{}
	case "csv":
		return &CSVParser{}
	default:
		return nil
	}
}

// ForFile returns the appropriate parser based on file extension.
func ForFile(filename string) Parser {
	ext := strings.ToLower(filepath.Ext(filename))
	switch ext {
	case ".json":
		return &JSONParser{}
	case ".csv":
		return &CSVParser{}
	default:
		return nil
	}
}
