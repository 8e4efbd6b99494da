package transcode

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/csv"
	"errors"
	"fmt"
	"strings"
	"testing"

	"golang.org/x/text/encoding/charmap"
	_ "modernc.org/sqlite"

	"github.com/darianmavgo/garsql/converters/common"
	"github.com/darianmavgo/garsql/converters/dialect"
	"github.com/darianmavgo/garsql/converters/schema"
)

func objectSchema(fields ...string) *schema.TableSchema {
	s := &schema.TableSchema{Name: "table", Entity: "OBJECTS", Tag: "OBJECT"}
	for _, f := range fields {
		s.Fields = append(s.Fields, schema.Field{Name: f})
	}
	return s
}

func mustProfile(t *testing.T, name string) *dialect.Profile {
	t.Helper()
	p, err := dialect.Lookup(name)
	if err != nil {
		t.Fatalf("Failed to look up dialect %s: %v", name, err)
	}
	return p
}

func run(t *testing.T, s *schema.TableSchema, p *dialect.Profile, opts Options, doc string) (string, Stats) {
	t.Helper()
	var buf bytes.Buffer
	st, err := New(s, p, opts).Transcode(context.Background(), strings.NewReader(doc), &buf)
	if err != nil {
		t.Fatalf("Failed to transcode: %v", err)
	}
	return buf.String(), st
}

// genDoc builds a data file with n OBJECT rows.
func genDoc(n int) string {
	var b strings.Builder
	b.WriteString(`<?xml version="1.0" encoding="utf-8"?>` + "\n<OBJECTS>\n")
	for i := 1; i <= n; i++ {
		fmt.Fprintf(&b, "  <OBJECT ID=\"%d\" NAME=\"n%d\"/>\n", i, i)
	}
	b.WriteString("</OBJECTS>\n")
	return b.String()
}

func TestMySQLScenario(t *testing.T) {
	doc := `<OBJECTS><OBJECT ID="1" NAME="Foo" ISACTUAL="true"/><OBJECT ID="2" NAME="Bar"/></OBJECTS>`
	out, st := run(t, objectSchema("ID", "NAME", "ISACTUAL"), mustProfile(t, dialect.MySQL), Options{BatchSize: 1}, doc)

	want := "/*!40000 ALTER TABLE `table` DISABLE KEYS */;\n" +
		"INSERT INTO `table` (`ID`,`NAME`,`ISACTUAL`) VALUES\n" +
		"\t('1','Foo','1');\n" +
		"INSERT INTO `table` (`ID`,`NAME`,`ISACTUAL`) VALUES\n" +
		"\t('2','Bar',NULL);\n" +
		"/*!40000 ALTER TABLE `table` ENABLE KEYS */;\n"
	if out != want {
		t.Errorf("unexpected output:\n%s\nwant:\n%s", out, want)
	}
	if st.Rows != 2 || st.Batches != 2 || st.Bytes != int64(len(want)) {
		t.Errorf("Stats = %+v", st)
	}
}

func TestNullRendering(t *testing.T) {
	doc := `<OBJECTS><OBJECT a="x" c=""/></OBJECTS>`
	for _, name := range dialect.Names() {
		t.Run(name, func(t *testing.T) {
			p := mustProfile(t, name)
			out, _ := run(t, objectSchema("a", "b", "c"), p, Options{}, doc)
			want := p.Value("x", true) + p.Delimiter + p.Null + p.Delimiter + p.Value("", true)
			if !strings.Contains(out, want) {
				t.Errorf("row %q not found in:\n%s", want, out)
			}
		})
	}
}

// marker makes every framing token countable.
func marker() *dialect.Profile {
	return &dialect.Profile{
		Name:           "marker",
		Delimiter:      "|",
		LineEnding:     "<M>\n",
		LineEndingLast: "<L>\n",
		TableStart:     func(*dialect.Profile, string) string { return "<TS>\n" },
		TableEnd:       func(*dialect.Profile, string) string { return "<TE>\n" },
		BatchStart: func(_ *dialect.Profile, table string, fields []string) string {
			return "<B " + table + ":" + strings.Join(fields, ",") + ">\n"
		},
	}
}

func TestBatchBoundaries(t *testing.T) {
	for n := 0; n <= 13; n++ {
		for b := 1; b <= 6; b++ {
			t.Run(fmt.Sprintf("N%d_B%d", n, b), func(t *testing.T) {
				out, st := run(t, objectSchema("ID", "NAME"), marker(), Options{BatchSize: b}, genDoc(n))

				batches := (n + b - 1) / b
				if got := strings.Count(out, "<B table:ID,NAME>"); got != batches {
					t.Errorf("prologues = %d, want %d", got, batches)
				}
				if got := strings.Count(out, "<L>"); got != batches {
					t.Errorf("last-in-batch terminators = %d, want %d", got, batches)
				}
				if got := strings.Count(out, "<M>"); got != n-batches {
					t.Errorf("more-follow terminators = %d, want %d", got, n-batches)
				}
				if st.Rows != int64(n) || st.Batches != int64(batches) {
					t.Errorf("Stats = %+v", st)
				}
				if !strings.HasPrefix(out, "<TS>\n") || !strings.HasSuffix(out, "<TE>\n") {
					t.Errorf("table framing missing: %q", out)
				}

				// Every batch holds at most b rows and only its last row ends with <L>.
				for _, group := range strings.Split(out, "<B table:ID,NAME>\n")[1:] {
					lines := strings.Split(strings.TrimSuffix(group, "<TE>\n"), "\n")
					lines = lines[:len(lines)-1]
					if len(lines) > b {
						t.Errorf("batch has %d rows, max %d", len(lines), b)
					}
					for i, l := range lines {
						last := i == len(lines)-1
						if last != strings.HasSuffix(l, "<L>") {
							t.Errorf("row %d of batch ends with %q", i, l)
						}
					}
				}
			})
		}
	}
}

func TestZeroRows(t *testing.T) {
	for _, doc := range []string{
		"<OBJECTS/>",
		"<OBJECTS><OTHER ID=\"1\"/></OBJECTS>",
		"\uFEFF<OBJECTS/>\n",
	} {
		out, st := run(t, objectSchema("ID"), mustProfile(t, dialect.MySQL), Options{}, doc)
		want := "/*!40000 ALTER TABLE `table` DISABLE KEYS */;\n/*!40000 ALTER TABLE `table` ENABLE KEYS */;\n"
		if out != want {
			t.Errorf("doc %q: got %q, want %q", doc, out, want)
		}
		if st.Rows != 0 || st.Batches != 0 {
			t.Errorf("doc %q: Stats = %+v", doc, st)
		}
	}

	out, _ := run(t, objectSchema("ID"), mustProfile(t, dialect.CSV), Options{}, "<OBJECTS/>")
	if out != "" {
		t.Errorf("csv zero rows = %q, want empty", out)
	}
}

func TestIdempotent(t *testing.T) {
	s := objectSchema("ID", "NAME")
	doc := genDoc(1234)
	for _, name := range dialect.Names() {
		p := mustProfile(t, name)
		first, _ := run(t, s, p, Options{BatchSize: 100}, doc)
		second, _ := run(t, s, p, Options{BatchSize: 100}, doc)
		if first != second {
			t.Errorf("%s: output differs between runs", name)
		}
	}
}

func TestCSVRoundTrip(t *testing.T) {
	rows := [][]string{
		{"1", "plain", "Москва"},
		{"2", `quote " inside`, "comma, inside"},
		{"3", "multi\nline", `back\slash`},
		{"4", "", "  padded  "},
	}
	var doc strings.Builder
	doc.WriteString("<OBJECTS>")
	for _, r := range rows {
		fmt.Fprintf(&doc, `<OBJECT ID="%s" A="%s" B="%s"/>`, escapeAttr(r[0]), escapeAttr(r[1]), escapeAttr(r[2]))
	}
	doc.WriteString("</OBJECTS>")

	out, _ := run(t, objectSchema("ID", "A", "B"), mustProfile(t, dialect.CSV), Options{BatchSize: 3}, doc.String())

	got, err := csv.NewReader(strings.NewReader(out)).ReadAll()
	if err != nil {
		t.Fatalf("Failed to parse CSV output: %v\n%s", err, out)
	}
	if len(got) != len(rows) {
		t.Fatalf("got %d records, want %d", len(got), len(rows))
	}
	for i := range rows {
		for j := range rows[i] {
			if got[i][j] != rows[i][j] {
				t.Errorf("record %d field %d = %q, want %q", i, j, got[i][j], rows[i][j])
			}
		}
	}
}

func escapeAttr(s string) string {
	var b bytes.Buffer
	for _, r := range s {
		switch r {
		case '"':
			b.WriteString("&quot;")
		case '&':
			b.WriteString("&amp;")
		case '<':
			b.WriteString("&lt;")
		case '\n':
			b.WriteString("&#10;")
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

func TestTSV(t *testing.T) {
	doc := `<OBJECTS><OBJECT ID="1" NAME="a&#9;b"/><OBJECT ID="2"/></OBJECTS>`
	out, _ := run(t, objectSchema("ID", "NAME"), mustProfile(t, dialect.TSV), Options{}, doc)
	want := "1\ta\\tb\n2\t\\N\n"
	if out != want {
		t.Errorf("got %q, want %q", out, want)
	}
}

func TestMalformedXML(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		rows int64
	}{
		{"Truncated", `<OBJECTS><OBJECT ID="1"/><OBJECT ID=`, 1},
		{"Unclosed", `<OBJECTS><OBJECT ID="1"/>`, 1},
		{"Mismatched", `<OBJECTS><OBJECT ID="1"></OBJECTS>`, 1},
		{"Garbage", `<<<`, 0},
		{"Empty", ``, 0},
		{"Blank", "  \n", 0},
		{"PlainText", `not xml at all`, 0},
		{"ElementAfterRoot", `<OBJECTS><OBJECT ID="1"/></OBJECTS><OBJECT ID="2"/>`, 1},
		{"TextAfterRoot", `<OBJECTS><OBJECT ID="1"/></OBJECTS>trailer`, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			st, err := New(objectSchema("ID"), mustProfile(t, dialect.MySQL), Options{}).
				Transcode(context.Background(), strings.NewReader(tt.doc), &buf)

			var de *common.DataFormatError
			if !errors.As(err, &de) {
				t.Fatalf("want DataFormatError, got %v", err)
			}
			if de.Table != "table" || de.Row != tt.rows {
				t.Errorf("DataFormatError = %+v", de)
			}
			if !common.IsTableScoped(err) {
				t.Error("DataFormatError must be table scoped")
			}
			if st.Rows != tt.rows {
				t.Errorf("Rows = %d, want %d", st.Rows, tt.rows)
			}
			// Rows rendered before the failure are flushed.
			if tt.rows > 0 && !strings.Contains(buf.String(), "('1')") {
				t.Errorf("partial output not flushed: %q", buf.String())
			}
		})
	}
}

func TestCancelled(t *testing.T) {
	ctx, cancel := context.WithCancelCause(context.Background())
	cancel(common.ErrInterrupted)

	var buf bytes.Buffer
	st, err := New(objectSchema("ID"), mustProfile(t, dialect.MySQL), Options{}).
		Transcode(ctx, strings.NewReader(genDoc(10)), &buf)
	if !errors.Is(err, common.ErrInterrupted) {
		t.Fatalf("want ErrInterrupted, got %v", err)
	}
	if st.Rows != 0 {
		t.Errorf("Rows = %d after cancel", st.Rows)
	}
}

func TestCancelMidStream(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	opts := Options{
		ProgressEvery: 5,
		Progress: func(rows int64) {
			if rows == 5 {
				cancel()
			}
		},
	}
	var buf bytes.Buffer
	st, err := New(objectSchema("ID"), mustProfile(t, dialect.CSV), opts).
		Transcode(ctx, strings.NewReader(genDoc(100)), &buf)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("want context.Canceled, got %v", err)
	}
	if st.Rows != 5 {
		t.Errorf("Rows = %d, want 5", st.Rows)
	}
	if got := strings.Count(buf.String(), "\n"); got != 4 {
		t.Errorf("flushed %d complete lines, want 4", got)
	}
}

func TestProgress(t *testing.T) {
	var calls []int64
	opts := Options{ProgressEvery: 4, Progress: func(rows int64) { calls = append(calls, rows) }}
	run(t, objectSchema("ID"), mustProfile(t, dialect.CSV), opts, genDoc(10))
	if fmt.Sprint(calls) != "[4 8 10]" {
		t.Errorf("progress calls = %v", calls)
	}
}

func TestDeclaredCharset(t *testing.T) {
	body, err := charmap.Windows1251.NewEncoder().String(`<OBJECTS><OBJECT ID="1" NAME="Москва"/></OBJECTS>`)
	if err != nil {
		t.Fatalf("Failed to encode fixture: %v", err)
	}
	doc := `<?xml version="1.0" encoding="windows-1251"?>` + body

	out, _ := run(t, objectSchema("ID", "NAME"), mustProfile(t, dialect.CSV), Options{}, doc)
	if out != "\"1\",\"Москва\"\n" {
		t.Errorf("got %q", out)
	}
}

func TestForcedCharset(t *testing.T) {
	doc, err := charmap.Windows1251.NewEncoder().String(`<OBJECTS><OBJECT NAME="Тула"/></OBJECTS>`)
	if err != nil {
		t.Fatalf("Failed to encode fixture: %v", err)
	}
	out, _ := run(t, objectSchema("NAME"), mustProfile(t, dialect.CSV), Options{Charset: "windows-1251"}, doc)
	if out != "\"Тула\"\n" {
		t.Errorf("got %q", out)
	}

	// A forced charset wins over the declaration, UTF-8 included.
	mislabeled := `<?xml version="1.0" encoding="windows-1251"?><OBJECTS><OBJECT NAME="Тула"/></OBJECTS>`
	for _, label := range []string{"utf-8", "UTF8"} {
		out, _ = run(t, objectSchema("NAME"), mustProfile(t, dialect.CSV), Options{Charset: label}, mislabeled)
		if out != "\"Тула\"\n" {
			t.Errorf("charset %s: got %q", label, out)
		}
	}

	_, err = NewRowReader(strings.NewReader(doc), objectSchema("NAME"), Options{Charset: "no-such-charset"})
	var ce *common.ConfigurationError
	if !errors.As(err, &ce) {
		t.Errorf("want ConfigurationError, got %v", err)
	}
}

func TestUnknownDeclaredCharset(t *testing.T) {
	doc := `<?xml version="1.0" encoding="x-unknown"?><OBJECTS><OBJECT ID="1"/></OBJECTS>`
	_, err := New(objectSchema("ID"), mustProfile(t, dialect.CSV), Options{}).
		Transcode(context.Background(), strings.NewReader(doc), &bytes.Buffer{})
	var de *common.DataFormatError
	if !errors.As(err, &de) {
		t.Errorf("want DataFormatError, got %v", err)
	}
}

func TestRowReader(t *testing.T) {
	doc := `<OBJECTS xmlns:x="urn:x"><OBJECT ID="1" EXTRA="?" x:NAME="ns"/><nested><OBJECT NAME="deep"/></nested></OBJECTS>`
	rr, err := NewRowReader(strings.NewReader(doc), objectSchema("ID", "NAME"), Options{})
	if err != nil {
		t.Fatalf("Failed to create reader: %v", err)
	}
	values, present, err := rr.Next()
	if err != nil {
		t.Fatalf("Failed to read row: %v", err)
	}
	if values[0] != "1" || !present[0] || values[1] != "ns" || !present[1] {
		t.Errorf("row 1 = %q %v", values, present)
	}
	values, present, err = rr.Next()
	if err != nil {
		t.Fatalf("Failed to read row: %v", err)
	}
	if present[0] || values[0] != "" || values[1] != "deep" {
		t.Errorf("row 2 = %q %v (stale values?)", values, present)
	}
	if _, _, err := rr.Next(); err == nil || err.Error() != "EOF" {
		t.Errorf("want io.EOF, got %v", err)
	}
	if rr.Rows() != 2 {
		t.Errorf("Rows = %d", rr.Rows())
	}
}

func TestSQLiteExecutes(t *testing.T) {
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("Failed to open sqlite: %v", err)
	}
	defer db.Close()
	if _, err := db.Exec(`CREATE TABLE "table" ("ID" INTEGER, "NAME" TEXT, "ISACTUAL" INTEGER)`); err != nil {
		t.Fatalf("Failed to create table: %v", err)
	}

	doc := `<OBJECTS>
		<OBJECT ID="1" NAME="it's" ISACTUAL="true"/>
		<OBJECT ID="2" NAME="two" ISACTUAL="false"/>
		<OBJECT ID="3"/>
		<OBJECT ID="4" NAME="four" ISACTUAL="1"/>
		<OBJECT ID="5" NAME="" ISACTUAL="0"/>
	</OBJECTS>`
	out, _ := run(t, objectSchema("ID", "NAME", "ISACTUAL"), mustProfile(t, dialect.SQLite), Options{BatchSize: 2}, doc)
	if _, err := db.Exec(out); err != nil {
		t.Fatalf("Failed to execute generated SQL: %v\n%s", err, out)
	}

	var count, actual, nulls int
	if err := db.QueryRow(`SELECT COUNT(*), SUM(ISACTUAL), SUM(NAME IS NULL) FROM "table"`).Scan(&count, &actual, &nulls); err != nil {
		t.Fatalf("Failed to query: %v", err)
	}
	if count != 5 || actual != 2 || nulls != 1 {
		t.Errorf("count=%d actual=%d nulls=%d", count, actual, nulls)
	}
	var name string
	if err := db.QueryRow(`SELECT NAME FROM "table" WHERE ID = 1`).Scan(&name); err != nil || name != "it's" {
		t.Errorf("NAME = %q, %v", name, err)
	}
}
