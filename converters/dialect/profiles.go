package dialect

import (
	"fmt"
	"sort"
	"strings"

	"github.com/jackc/pgx/v5"
	"golang.org/x/net/html"

	"github.com/darianmavgo/garsql/converters/common"
)

// Names of the built-in profiles.
const (
	MySQL      = "mysql"
	Postgres   = "postgres"
	SQLite     = "sqlite"
	ClickHouse = "clickhouse"
	CSV        = "csv"
	TSV        = "tsv"
	HTML       = "html"
)

var (
	backslashEscape = strings.NewReplacer(
		`\`, `\\`,
		`'`, `\'`,
		"\x00", `\0`,
		"\n", `\n`,
		"\r", `\r`,
		"\x1a", `\Z`,
	)
	doubledQuote = strings.NewReplacer(`'`, `''`)
	csvQuote     = strings.NewReplacer(`"`, `""`)
	tsvEscape    = strings.NewReplacer(
		`\`, `\\`,
		"\t", `\t`,
		"\n", `\n`,
		"\r", `\r`,
	)
)

func insertInto(p *Profile, table string, fields []string) string {
	return "INSERT INTO " + p.QuoteIdent(table) + " (" + p.QuoteIdents(fields) + ") VALUES\n"
}

// sqlRows is the row framing shared by every SQL profile.
func sqlRows(p Profile) Profile {
	p.SQL = true
	p.Quote = "'"
	p.Delimiter = ","
	p.RowIndent = "\t"
	p.RowOpen = "("
	p.RowClose = ")"
	p.LineEnding = ",\n"
	p.LineEndingLast = ";\n"
	p.Null = "NULL"
	p.CommentPrefix = "-- "
	p.BatchStart = insertInto
	return p
}

var mysqlProfile = sqlRows(Profile{
	Name:       MySQL,
	IdentQuote: "`",
	False:      "'0'",
	True:       "'1'",
	Escape:     backslashEscape,
	TableStart: func(p *Profile, table string) string {
		return "/*!40000 ALTER TABLE " + p.QuoteIdent(table) + " DISABLE KEYS */;\n"
	},
	TableEnd: func(p *Profile, table string) string {
		return "/*!40000 ALTER TABLE " + p.QuoteIdent(table) + " ENABLE KEYS */;\n"
	},
	DumpHeader: func(_ *Profile, encoding string) string {
		return "/*!40101 SET @OLD_CHARACTER_SET_CLIENT=@@CHARACTER_SET_CLIENT */;\n" +
			"/*!40101 SET NAMES " + encoding + " */;\n" +
			"/*!40014 SET @OLD_FOREIGN_KEY_CHECKS=@@FOREIGN_KEY_CHECKS, FOREIGN_KEY_CHECKS=0 */;\n" +
			"/*!40101 SET @OLD_SQL_MODE=@@SQL_MODE, SQL_MODE='NO_AUTO_VALUE_ON_ZERO' */;\n"
	},
	DumpFooter: func(*Profile) string {
		return "/*!40101 SET SQL_MODE=IFNULL(@OLD_SQL_MODE, '') */;\n" +
			"/*!40014 SET FOREIGN_KEY_CHECKS=IF(@OLD_FOREIGN_KEY_CHECKS IS NULL, 1, @OLD_FOREIGN_KEY_CHECKS) */;\n" +
			"/*!40101 SET CHARACTER_SET_CLIENT=@OLD_CHARACTER_SET_CLIENT */;\n"
	},
})

var postgresProfile = sqlRows(Profile{
	Name:       Postgres,
	IdentQuote: `"`,
	Ident:      func(name string) string { return pgx.Identifier{name}.Sanitize() },
	False:      "'0'",
	True:       "'1'",
	Escape:     doubledQuote,
	DumpHeader: func(_ *Profile, encoding string) string {
		return "SET client_encoding = '" + postgresEncoding(encoding) + "';\n" +
			"SET standard_conforming_strings = on;\n"
	},
})

var sqliteProfile = sqlRows(Profile{
	Name:       SQLite,
	IdentQuote: `"`,
	False:      "0",
	True:       "1",
	Escape:     doubledQuote,
	DumpHeader: func(*Profile, string) string {
		return "PRAGMA foreign_keys=OFF;\nBEGIN TRANSACTION;\n"
	},
	DumpFooter: func(*Profile) string {
		return "COMMIT;\n"
	},
})

var clickhouseProfile = sqlRows(Profile{
	Name:       ClickHouse,
	IdentQuote: "`",
	False:      "0",
	True:       "1",
	Escape:     backslashEscape,
})

var csvProfile = Profile{
	Name:           CSV,
	Quote:          `"`,
	Delimiter:      ",",
	LineEnding:     "\n",
	LineEndingLast: "\n",
	False:          "false",
	True:           "true",
	Null:           `\N`,
	Escape:         csvQuote,
}

var tsvProfile = Profile{
	Name:           TSV,
	Delimiter:      "\t",
	LineEnding:     "\n",
	LineEndingLast: "\n",
	False:          "false",
	True:           "true",
	Null:           `\N`,
	Escape:         tsvEscape,
}

var htmlProfile = Profile{
	Name:           HTML,
	Ident:          html.EscapeString,
	Delimiter:      "</td><td>",
	RowIndent:      "  ",
	RowOpen:        "<tr><td>",
	RowClose:       "</td></tr>",
	LineEnding:     "\n",
	LineEndingLast: "\n</tbody>\n",
	False:          "false",
	True:           "true",
	Null:           "<i>NULL</i>",
	Escape:         EscapeFunc(html.EscapeString),
	CommentPrefix:  "<!-- ",
	CommentSuffix:  " -->",
	TableStart: func(p *Profile, table string) string {
		return `<table data-table="` + p.QuoteIdent(table) + `">` + "\n"
	},
	TableEnd: func(*Profile, string) string {
		return "</table>\n"
	},
	BatchStart: func(p *Profile, _ string, fields []string) string {
		var b strings.Builder
		b.WriteString("<tbody>\n  <tr>")
		for _, f := range fields {
			b.WriteString("<th>")
			b.WriteString(p.QuoteIdent(f))
			b.WriteString("</th>")
		}
		b.WriteString("</tr>\n")
		return b.String()
	},
	DumpHeader: func(*Profile, string) string {
		return "<!DOCTYPE html>\n<html><head><meta charset=\"utf-8\"></head><body>\n"
	},
	DumpFooter: func(*Profile) string {
		return "</body></html>\n"
	},
}

var profiles = map[string]*Profile{
	MySQL:      &mysqlProfile,
	Postgres:   &postgresProfile,
	SQLite:     &sqliteProfile,
	ClickHouse: &clickhouseProfile,
	CSV:        &csvProfile,
	TSV:        &tsvProfile,
	HTML:       &htmlProfile,
}

var aliases = map[string]string{
	"my":         MySQL,
	"mariadb":    MySQL,
	"psql":       Postgres,
	"pg":         Postgres,
	"postgresql": Postgres,
	"sqlite3":    SQLite,
	"ch":         ClickHouse,
}

// Lookup returns a copy of the named profile. Aliases such as "psql" and
// "ch" are accepted.
func Lookup(name string) (*Profile, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	if canonical, ok := aliases[key]; ok {
		key = canonical
	}
	p, ok := profiles[key]
	if !ok {
		return nil, &common.ConfigurationError{
			Setting: "format",
			Value:   name,
			Msg:     fmt.Sprintf("unknown dialect, want one of %s", strings.Join(Names(), ", ")),
		}
	}
	cp := *p
	return &cp, nil
}

// Names returns the canonical profile names, sorted.
func Names() []string {
	list := make([]string, 0, len(profiles))
	for name := range profiles {
		list = append(list, name)
	}
	sort.Strings(list)
	return list
}

// postgresEncoding maps MySQL-style labels onto Postgres client encodings.
func postgresEncoding(label string) string {
	l := strings.ToLower(label)
	if strings.HasPrefix(l, "utf8") || l == "utf-8" {
		return "UTF8"
	}
	return strings.ToUpper(label)
}
