package common

import (
	"strings"
	"time"
)

// DefaultBatchSize is the number of rows grouped under one INSERT statement.
const DefaultBatchSize = 500

// DefaultEncoding is stamped into SQL dump headers when none is configured.
const DefaultEncoding = "utf8mb4"

// ConversionConfig stores configuration options for the conversion process.
type ConversionConfig struct {
	Format          string   // Output format name (mysql, postgres, csv, ...)
	Layout          string   // Output layout (direct, per_region, per_table, region_tree)
	InputPath       string   // Directory or .zip archive with XML data
	SchemaPath      string   // Directory or .zip archive with XSD files; defaults to InputPath
	OutputPath      string   // Output directory, or file for the direct layout
	Tables          []string // Tables to process; empty means all known tables
	Regions         []string // Regions to process; empty means all found in InputPath
	BatchSize       int      // Rows per batch
	Encoding        string   // Encoding label for SQL header directives
	Charset         string   // Decode XML input from this charset regardless of its declaration
	Workers         int      // Output units converted concurrently
	SkipData        bool     // Do not emit table rows
	SkipDefinition  bool     // Do not emit CREATE TABLE
	IncludeKeys     bool     // Splice index definitions into CREATE TABLE
	DropTables      bool     // Emit DROP TABLE IF EXISTS before CREATE TABLE
	NoBanner        bool     // Skip the generated-by banner
	NoManifest      bool     // Do not write manifest.hcl
	ContinueOnError bool     // Keep converting other units after a table-scoped error
	ScanTimeout     string   // Duration string (e.g. "2m") without row progress before a unit is aborted
	Verbose         bool     // Enable detailed logging
}

// Normalize fills zero values with defaults and returns the config.
func (c *ConversionConfig) Normalize() *ConversionConfig {
	if c.BatchSize <= 0 {
		c.BatchSize = DefaultBatchSize
	}
	if c.Encoding == "" {
		c.Encoding = DefaultEncoding
	}
	if c.Workers <= 0 {
		c.Workers = 1
	}
	if c.SchemaPath == "" {
		c.SchemaPath = c.InputPath
	}
	c.Format = strings.ToLower(strings.TrimSpace(c.Format))
	c.Layout = strings.ToLower(strings.TrimSpace(c.Layout))
	return c
}

// Timeout parses ScanTimeout. An empty value disables the watchdog.
func (c *ConversionConfig) Timeout() (time.Duration, error) {
	if c.ScanTimeout == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(c.ScanTimeout)
	if err != nil {
		return 0, &ConfigurationError{Setting: "scan_timeout", Value: c.ScanTimeout, Msg: err.Error()}
	}
	return d, nil
}

// SplitList splits a comma-separated flag value into upper-cased names,
// dropping blanks.
func SplitList(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.ToUpper(strings.TrimSpace(p))
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
