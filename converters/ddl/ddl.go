// Package ddl renders CREATE TABLE statements for the SQL dialects from the
// metadata gathered by the schema reader. Index definitions come from an
// IndexDeriver and are spliced into the statement unchanged.
package ddl

import (
	"embed"
	"fmt"
	"io"
	"text/template"

	"github.com/darianmavgo/garsql/converters/common"
	"github.com/darianmavgo/garsql/converters/dialect"
	"github.com/darianmavgo/garsql/converters/schema"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

// templates is parsed once; Render clones it to bind the dialect's quoting.
var templates = template.Must(template.New("ddl").
	Funcs(template.FuncMap{"literal": func(string) string { return "" }}).
	ParseFS(templateFS, "templates/*.tmpl"))

// IndexDeriver returns the pre-rendered key and index fragment for a table.
// The fragment is placed where the dialect's template expects it: inside the
// column list for MySQL, Postgres and SQLite, after the engine for ClickHouse.
type IndexDeriver interface {
	IndexDefinition(table string) string
}

// StatementDeriver is implemented by derivers that also emit standalone
// statements after CREATE TABLE, such as CREATE INDEX.
type StatementDeriver interface {
	IndexStatements(table string) string
}

// Options control Render.
type Options struct {
	Drop    bool   // emit DROP TABLE IF EXISTS first
	Charset string // MySQL table charset, common.DefaultEncoding when empty
}

type flavor struct {
	template    string
	indexInBody bool
	columnType  func(f schema.Field) string
}

var flavors = map[string]flavor{
	dialect.MySQL:      {"mysql.tmpl", true, mysqlType},
	dialect.Postgres:   {"postgres.tmpl", true, postgresType},
	dialect.SQLite:     {"sqlite.tmpl", true, sqliteType},
	dialect.ClickHouse: {"clickhouse.tmpl", false, clickhouseType},
}

type columnData struct {
	Name    string
	Type    string
	NotNull bool
	Doc     string
	Comma   bool
}

type tableData struct {
	Table      string
	Doc        string
	Columns    []columnData
	Index      string
	Statements string
	Drop       bool
	Charset    string
}

// Supports reports whether Render can produce DDL for the profile.
func Supports(p *dialect.Profile) bool {
	_, ok := flavors[p.Name]
	return ok && p.SQL
}

// Render writes the CREATE TABLE statement for s in dialect p. deriver may be
// nil, in which case no keys are emitted.
func Render(w io.Writer, p *dialect.Profile, s *schema.TableSchema, deriver IndexDeriver, opts Options) error {
	fl, ok := flavors[p.Name]
	if !ok || !p.SQL {
		return &common.ConfigurationError{Setting: "format", Value: p.Name, Msg: "no table definitions for this format"}
	}
	if opts.Charset == "" {
		opts.Charset = common.DefaultEncoding
	}

	data := tableData{
		Table:   p.QuoteIdent(s.Name),
		Doc:     s.Doc,
		Drop:    opts.Drop,
		Charset: opts.Charset,
	}
	if deriver != nil {
		data.Index = deriver.IndexDefinition(s.Name)
		if sd, ok := deriver.(StatementDeriver); ok {
			data.Statements = sd.IndexStatements(s.Name)
		}
	}

	data.Columns = make([]columnData, len(s.Fields))
	for i, f := range s.Fields {
		last := i == len(s.Fields)-1
		data.Columns[i] = columnData{
			Name:    p.QuoteIdent(f.Name),
			Type:    fl.columnType(f),
			NotNull: f.Required,
			Doc:     f.Doc,
			Comma:   !last || (fl.indexInBody && data.Index != ""),
		}
	}

	t, err := templates.Clone()
	if err != nil {
		return fmt.Errorf("failed to clone templates: %w", err)
	}
	t.Funcs(template.FuncMap{"literal": literal(p)})
	if err := t.ExecuteTemplate(w, fl.template, data); err != nil {
		return fmt.Errorf("failed to render table %s: %w", s.Name, err)
	}
	return nil
}

// literal quotes text as a string constant of the dialect. Unlike
// Profile.Value it never turns "true" or "false" into booleans.
func literal(p *dialect.Profile) func(string) string {
	return func(text string) string {
		if p.Escape != nil {
			text = p.Escape.Replace(text)
		}
		return p.Quote + text + p.Quote
	}
}

func isInteger(t string) bool {
	switch t {
	case "long", "integer", "int", "short", "byte",
		"nonNegativeInteger", "positiveInteger", "unsignedLong", "unsignedInt":
		return true
	}
	return false
}

// wide reports whether an integer field needs 64 bits.
func wide(f schema.Field) bool {
	return f.Type == "long" || f.Type == "unsignedLong" || f.TotalDigits > 9
}

func mysqlType(f schema.Field) string {
	switch {
	case isInteger(f.Type) && wide(f):
		return "BIGINT"
	case isInteger(f.Type):
		return "INT"
	case f.Type == "boolean":
		return "TINYINT(1)"
	case f.Type == "date":
		return "DATE"
	case f.Type == "dateTime":
		return "DATETIME"
	case f.Type == "decimal" && f.TotalDigits > 0:
		return fmt.Sprintf("DECIMAL(%d)", f.TotalDigits)
	case f.MaxLength > 0:
		return fmt.Sprintf("VARCHAR(%d)", f.MaxLength)
	}
	return "TEXT"
}

func postgresType(f schema.Field) string {
	switch {
	case isInteger(f.Type) && wide(f):
		return "BIGINT"
	case isInteger(f.Type):
		return "INTEGER"
	case f.Type == "boolean":
		return "BOOLEAN"
	case f.Type == "date":
		return "DATE"
	case f.Type == "dateTime":
		return "TIMESTAMP"
	case f.Type == "decimal" && f.TotalDigits > 0:
		return fmt.Sprintf("NUMERIC(%d)", f.TotalDigits)
	case f.MaxLength > 0:
		return fmt.Sprintf("VARCHAR(%d)", f.MaxLength)
	}
	return "TEXT"
}

// sqliteType returns a type name with the affinity SQLite derives from it.
func sqliteType(f schema.Field) string {
	switch {
	case isInteger(f.Type), f.Type == "boolean":
		return "INTEGER"
	case f.Type == "decimal":
		return "NUMERIC"
	}
	return "TEXT"
}

func clickhouseType(f schema.Field) string {
	var t string
	switch {
	case isInteger(f.Type) && wide(f):
		t = "Int64"
	case isInteger(f.Type):
		t = "Int32"
	case f.Type == "boolean":
		t = "UInt8"
	case f.Type == "date":
		t = "Date"
	case f.Type == "dateTime":
		t = "DateTime"
	case f.Type == "decimal" && f.TotalDigits > 0:
		t = fmt.Sprintf("Decimal(%d, 0)", f.TotalDigits)
	default:
		t = "String"
	}
	if !f.Required {
		return "Nullable(" + t + ")"
	}
	return t
}
