// Package config loads conversion settings from an HCL file. Values set on
// the command line take precedence; the CLI only copies fields it was not
// given explicitly.
package config

import (
	"fmt"
	"os"
	"runtime"
	"strings"

	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/hashicorp/hcl/v2/hclwrite"
	"github.com/zclconf/go-cty/cty"

	"github.com/darianmavgo/garsql/converters/common"
	"github.com/darianmavgo/garsql/converters/ddl"
)

// DefaultPath is the file looked up in the working directory when no
// --config flag is given.
const DefaultPath = "garsql.hcl"

// Config represents the application configuration.
type Config struct {
	Format          string   `hcl:"format,optional"`
	Layout          string   `hcl:"layout,optional"`
	Schema          string   `hcl:"schema,optional"`
	BatchSize       int      `hcl:"batch_size,optional"`
	Encoding        string   `hcl:"encoding,optional"`
	Charset         string   `hcl:"charset,optional"`
	Workers         int      `hcl:"workers,optional"`
	Tables          []string `hcl:"tables,optional"`
	Regions         []string `hcl:"regions,optional"`
	IncludeKeys     bool     `hcl:"include_keys,optional"`
	DropTables      bool     `hcl:"drop_tables,optional"`
	SkipData        bool     `hcl:"skip_data,optional"`
	SkipDefinition  bool     `hcl:"skip_definition,optional"`
	NoBanner        bool     `hcl:"no_banner,optional"`
	NoManifest      bool     `hcl:"no_manifest,optional"`
	ContinueOnError bool     `hcl:"continue_on_error,optional"`
	ScanTimeout     string   `hcl:"scan_timeout,optional"`

	Indexes []Index `hcl:"index,block"`
}

// Index overrides the keys of one table.
//
//	index "HOUSES" {
//	  primary = ["ID"]
//	  key "GUID" {
//	    columns = ["OBJECTGUID"]
//	    unique  = true
//	  }
//	}
type Index struct {
	Table   string   `hcl:"table,label"`
	Primary []string `hcl:"primary,optional"`
	Keys    []Key    `hcl:"key,block"`
}

// Key is a secondary index of an Index block.
type Key struct {
	Name    string   `hcl:"name,label"`
	Columns []string `hcl:"columns"`
	Unique  bool     `hcl:"unique,optional"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Format:    "mysql",
		Layout:    "direct",
		BatchSize: common.DefaultBatchSize,
		Encoding:  common.DefaultEncoding,
		Workers:   runtime.NumCPU(),
	}
}

// Load reads the configuration from the given HCL file.
func Load(path string) (*Config, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	parser := hclparse.NewParser()
	file, diags := parser.ParseHCL(content, path)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse config file: %s", diags.Error())
	}

	cfg := DefaultConfig()
	diags = gohcl.DecodeBody(file.Body, nil, cfg)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to decode config: %s", diags.Error())
	}

	return cfg, nil
}

// LoadOptional loads path, or DefaultPath when path is empty. A missing
// default file yields the defaults.
func LoadOptional(path string) (*Config, error) {
	if path != "" {
		return Load(path)
	}
	if _, err := os.Stat(DefaultPath); err != nil {
		return DefaultConfig(), nil
	}
	return Load(DefaultPath)
}

// Conversion converts the file settings into a ConversionConfig. Paths are
// left to the caller.
func (c *Config) Conversion() *common.ConversionConfig {
	return &common.ConversionConfig{
		Format:          c.Format,
		Layout:          c.Layout,
		SchemaPath:      c.Schema,
		Tables:          upper(c.Tables),
		Regions:         c.Regions,
		BatchSize:       c.BatchSize,
		Encoding:        c.Encoding,
		Charset:         c.Charset,
		Workers:         c.Workers,
		SkipData:        c.SkipData,
		SkipDefinition:  c.SkipDefinition,
		IncludeKeys:     c.IncludeKeys,
		DropTables:      c.DropTables,
		NoBanner:        c.NoBanner,
		NoManifest:      c.NoManifest,
		ContinueOnError: c.ContinueOnError,
		ScanTimeout:     c.ScanTimeout,
	}
}

// Catalog returns the built-in index catalog with the index blocks applied.
func (c *Config) Catalog() ddl.Catalog {
	if len(c.Indexes) == 0 {
		return ddl.DefaultCatalog()
	}
	overrides := make(ddl.Catalog, len(c.Indexes))
	for _, ix := range c.Indexes {
		ti := ddl.TableIndex{Primary: ix.Primary}
		for _, k := range ix.Keys {
			ti.Keys = append(ti.Keys, ddl.Key{Name: k.Name, Columns: k.Columns, Unique: k.Unique})
		}
		overrides[ix.Table] = ti
	}
	return ddl.DefaultCatalog().Merge(overrides)
}

func upper(list []string) []string {
	if len(list) == 0 {
		return nil
	}
	out := make([]string, len(list))
	for i, s := range list {
		out[i] = strings.ToUpper(s)
	}
	return out
}

func stringList(list []string) cty.Value {
	if len(list) == 0 {
		return cty.ListValEmpty(cty.String)
	}
	vals := make([]cty.Value, len(list))
	for i, s := range list {
		vals[i] = cty.StringVal(s)
	}
	return cty.ListVal(vals)
}

// Export writes the configuration to the specified file in HCL format.
func Export(path string, cfg *Config) error {
	f := hclwrite.NewEmptyFile()
	root := f.Body()

	root.SetAttributeValue("format", cty.StringVal(cfg.Format))
	root.SetAttributeValue("layout", cty.StringVal(cfg.Layout))
	if cfg.Schema != "" {
		root.SetAttributeValue("schema", cty.StringVal(cfg.Schema))
	}
	root.SetAttributeValue("batch_size", cty.NumberIntVal(int64(cfg.BatchSize)))
	root.SetAttributeValue("encoding", cty.StringVal(cfg.Encoding))
	if cfg.Charset != "" {
		root.SetAttributeValue("charset", cty.StringVal(cfg.Charset))
	}
	root.SetAttributeValue("workers", cty.NumberIntVal(int64(cfg.Workers)))
	root.SetAttributeValue("tables", stringList(cfg.Tables))
	root.SetAttributeValue("regions", stringList(cfg.Regions))

	root.AppendNewline()
	root.SetAttributeValue("include_keys", cty.BoolVal(cfg.IncludeKeys))
	root.SetAttributeValue("drop_tables", cty.BoolVal(cfg.DropTables))
	root.SetAttributeValue("skip_data", cty.BoolVal(cfg.SkipData))
	root.SetAttributeValue("skip_definition", cty.BoolVal(cfg.SkipDefinition))
	root.SetAttributeValue("no_banner", cty.BoolVal(cfg.NoBanner))
	root.SetAttributeValue("no_manifest", cty.BoolVal(cfg.NoManifest))
	root.SetAttributeValue("continue_on_error", cty.BoolVal(cfg.ContinueOnError))
	if cfg.ScanTimeout != "" {
		root.SetAttributeValue("scan_timeout", cty.StringVal(cfg.ScanTimeout))
	}

	for _, ix := range cfg.Indexes {
		root.AppendNewline()
		body := root.AppendNewBlock("index", []string{ix.Table}).Body()
		if len(ix.Primary) > 0 {
			body.SetAttributeValue("primary", stringList(ix.Primary))
		}
		for _, k := range ix.Keys {
			kb := body.AppendNewBlock("key", []string{k.Name}).Body()
			kb.SetAttributeValue("columns", stringList(k.Columns))
			if k.Unique {
				kb.SetAttributeValue("unique", cty.True)
			}
		}
	}

	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer file.Close()

	_, err = file.Write(f.Bytes())
	if err != nil {
		return fmt.Errorf("failed to write config to file: %w", err)
	}

	return nil
}
