// Package dialect describes how a target format renders scalar values, rows,
// batch boundaries and table framing. A Profile is a plain configuration
// value; every supported format is a fixed instance, not a subtype.
package dialect

import (
	"strings"
)

// Escaper translates raw attribute text before it is quoted.
// *strings.Replacer satisfies it.
type Escaper interface {
	Replace(s string) string
}

// EscapeFunc adapts a plain function to Escaper.
type EscapeFunc func(string) string

// Replace implements Escaper.
func (f EscapeFunc) Replace(s string) string { return f(s) }

// Profile is the rendering policy of one output format. The zero value of any
// hook means the corresponding emission step is skipped.
type Profile struct {
	Name string

	Quote      string // wraps every non-null, non-boolean value
	IdentQuote string // wraps table and column names
	Delimiter  string // between values of one row
	RowIndent  string
	RowOpen    string
	RowClose   string

	LineEnding     string // after a row when more rows of the same batch follow
	LineEndingLast string // after the last row of a batch

	False string
	True  string
	Null  string

	Escape Escaper

	// SQL marks dialects that can carry DDL.
	SQL bool
	// CommentPrefix starts a single-line comment; empty when the format has none.
	CommentPrefix string
	CommentSuffix string

	// Ident overrides identifier quoting when IdentQuote doubling is not enough.
	Ident func(name string) string

	TableStart func(p *Profile, table string) string
	TableEnd   func(p *Profile, table string) string
	BatchStart func(p *Profile, table string, fields []string) string

	// DumpHeader and DumpFooter frame a whole output file.
	DumpHeader func(p *Profile, encoding string) string
	DumpFooter func(p *Profile) string
}

// QuoteIdent renders a table or column name.
func (p *Profile) QuoteIdent(name string) string {
	if p.Ident != nil {
		return p.Ident(name)
	}
	if p.IdentQuote == "" {
		return name
	}
	return p.IdentQuote + strings.ReplaceAll(name, p.IdentQuote, p.IdentQuote+p.IdentQuote) + p.IdentQuote
}

// QuoteIdents renders names joined by a bare comma.
func (p *Profile) QuoteIdents(names []string) string {
	var b strings.Builder
	for i, n := range names {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(p.QuoteIdent(n))
	}
	return b.String()
}

// Value renders one attribute. Absent attributes become the null literal
// unquoted; the literal strings "true" and "false" become the boolean pair
// regardless of the declared XSD type.
func (p *Profile) Value(raw string, present bool) string {
	var b strings.Builder
	p.AppendValue(&b, raw, present)
	return b.String()
}

// AppendValue is the allocation-free form of Value used on the hot path.
func (p *Profile) AppendValue(b *strings.Builder, raw string, present bool) {
	switch {
	case !present:
		b.WriteString(p.Null)
	case raw == "true":
		b.WriteString(p.True)
	case raw == "false":
		b.WriteString(p.False)
	default:
		if p.Escape != nil {
			raw = p.Escape.Replace(raw)
		}
		b.WriteString(p.Quote)
		b.WriteString(raw)
		b.WriteString(p.Quote)
	}
}

// AppendRow renders indent, row wrapping and delimited values.
func (p *Profile) AppendRow(b *strings.Builder, values []string, present []bool) {
	b.WriteString(p.RowIndent)
	b.WriteString(p.RowOpen)
	for i, v := range values {
		if i > 0 {
			b.WriteString(p.Delimiter)
		}
		p.AppendValue(b, v, present[i])
	}
	b.WriteString(p.RowClose)
}

// Comment renders text as a single-line comment, or "" when the format has
// no comment syntax.
func (p *Profile) Comment(text string) string {
	if p.CommentPrefix == "" {
		return ""
	}
	return p.CommentPrefix + text + p.CommentSuffix + "\n"
}

// TablePrologue returns the table-start text or "".
func (p *Profile) TablePrologue(table string) string {
	if p.TableStart == nil {
		return ""
	}
	return p.TableStart(p, table)
}

// TableEpilogue returns the table-end text or "".
func (p *Profile) TableEpilogue(table string) string {
	if p.TableEnd == nil {
		return ""
	}
	return p.TableEnd(p, table)
}

// BatchPrologue returns the batch-start text or "".
func (p *Profile) BatchPrologue(table string, fields []string) string {
	if p.BatchStart == nil {
		return ""
	}
	return p.BatchStart(p, table, fields)
}

// Header returns the file header for the given encoding label or "".
func (p *Profile) Header(encoding string) string {
	if p.DumpHeader == nil {
		return ""
	}
	return p.DumpHeader(p, encoding)
}

// Footer returns the file footer or "".
func (p *Profile) Footer() string {
	if p.DumpFooter == nil {
		return ""
	}
	return p.DumpFooter(p)
}
