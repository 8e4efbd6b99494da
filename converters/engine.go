// Package converters turns a GAR export into dump files. It resolves schema
// and data files, plans output units according to the layout, and writes the
// units concurrently.
package converters

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/zeebo/xxh3"
	"golang.org/x/sync/errgroup"

	"github.com/darianmavgo/garsql/converters/common"
	"github.com/darianmavgo/garsql/converters/ddl"
	"github.com/darianmavgo/garsql/converters/schema"
	"github.com/darianmavgo/garsql/converters/source"
	"github.com/darianmavgo/garsql/converters/transcode"
	"github.com/darianmavgo/garsql/converters/xlsx"
)

// Version is stamped into generated banners.
var Version = "dev"

// DirectName is the file written by the direct layout when the output path is
// a directory.
const DirectName = "gar"

// Option customizes a Converter.
type Option func(*Converter)

// WithCatalog replaces the built-in index catalog.
func WithCatalog(c ddl.Catalog) Option {
	return func(cv *Converter) { cv.catalog = c }
}

// WithClock sets the time source used for banners.
func WithClock(now func() time.Time) Option {
	return func(cv *Converter) { cv.now = now }
}

// Converter converts one GAR export according to a ConversionConfig.
type Converter struct {
	cfg     *common.ConversionConfig
	format  Format
	data    *source.Source
	schemas *source.Source
	catalog ddl.Catalog
	timeout time.Duration
	now     func() time.Time

	mu      sync.Mutex
	schemaC map[string]*schema.TableSchema
}

// New validates cfg and opens the export. Configuration problems are
// reported as *common.ConfigurationError before any file is written.
func New(cfg *common.ConversionConfig, opts ...Option) (*Converter, error) {
	cfg.Normalize()

	format, err := LookupFormat(cfg.Format)
	if err != nil {
		return nil, err
	}
	if format.Workbook() && cfg.SkipData {
		return nil, &common.ConfigurationError{Setting: "skip_data", Value: "true", Msg: "xlsx output has no table definitions"}
	}
	if cfg.Layout == "" {
		cfg.Layout = LayoutDirect
	}
	if !isLayout(cfg.Layout) {
		return nil, &common.ConfigurationError{Setting: "layout", Value: cfg.Layout, Msg: "unknown layout, want one of " + strings.Join(Layouts(), ", ")}
	}
	timeout, err := cfg.Timeout()
	if err != nil {
		return nil, err
	}

	data, err := source.Open(cfg.InputPath)
	if err != nil {
		return nil, err
	}
	schemas := data
	if cfg.SchemaPath != cfg.InputPath {
		if schemas, err = source.Open(cfg.SchemaPath); err != nil {
			data.Close()
			return nil, err
		}
	}

	c := &Converter{
		cfg:     cfg,
		format:  format,
		data:    data,
		schemas: schemas,
		catalog: ddl.DefaultCatalog(),
		timeout: timeout,
		now:     time.Now,
		schemaC: make(map[string]*schema.TableSchema),
	}
	for _, o := range opts {
		o(c)
	}
	return c, nil
}

func isLayout(name string) bool {
	for _, l := range Layouts() {
		if l == name {
			return true
		}
	}
	return false
}

// Format returns the resolved output format.
func (c *Converter) Format() Format { return c.format }

// Close releases the opened sources.
func (c *Converter) Close() error {
	err := c.data.Close()
	if c.schemas != c.data {
		if serr := c.schemas.Close(); err == nil {
			err = serr
		}
	}
	return err
}

// Regions returns the configured regions, or every region of the export.
func (c *Converter) Regions() ([]string, error) {
	found, err := c.data.Regions()
	if err != nil {
		return nil, err
	}
	if len(c.cfg.Regions) == 0 {
		return found, nil
	}
	have := make(map[string]bool, len(found))
	for _, r := range found {
		have[r] = true
	}
	for _, r := range c.cfg.Regions {
		if !have[r] {
			return nil, &common.ConfigurationError{Setting: "regions", Value: r, Msg: "no such region directory in " + c.cfg.InputPath}
		}
	}
	return c.cfg.Regions, nil
}

// TableSchema reads the schema of t. Fragments are parsed once per entity and
// shared between tables of the same entity.
func (c *Converter) TableSchema(t source.Table) (*schema.TableSchema, error) {
	c.mu.Lock()
	s, ok := c.schemaC[t.Entity]
	c.mu.Unlock()
	if !ok {
		name, err := c.schemas.Resolve(".", t.Entity, "xsd")
		if err != nil {
			return nil, err
		}
		if s, err = schema.ReadFS(c.schemas, t.Entity, name); err != nil {
			return nil, err
		}
		c.mu.Lock()
		c.schemaC[t.Entity] = s
		c.mu.Unlock()
	}
	return s.WithName(t.Name), nil
}

// WriteDefinition renders the CREATE TABLE statement of t.
func (c *Converter) WriteDefinition(w io.Writer, t source.Table) error {
	s, err := c.TableSchema(t)
	if err != nil {
		return err
	}
	return c.writeDefinition(w, s)
}

func (c *Converter) writeDefinition(w io.Writer, s *schema.TableSchema) error {
	p := c.format.Profile
	if p == nil || !ddl.Supports(p) {
		return &common.ConfigurationError{Setting: "format", Value: c.format.Name, Msg: "no table definitions for this format"}
	}
	var deriver ddl.IndexDeriver
	if c.cfg.IncludeKeys {
		deriver = c.catalog.Deriver(p)
	}
	return ddl.Render(w, p, s, deriver, ddl.Options{Drop: c.cfg.DropTables, Charset: c.cfg.Encoding})
}

// ConvertTable writes the definition (unless skipped) and the rows of t in
// region to w. region is empty for common tables.
func (c *Converter) ConvertTable(ctx context.Context, w io.Writer, t source.Table, region string) (transcode.Stats, error) {
	if c.format.Workbook() {
		return transcode.Stats{}, &common.ConfigurationError{Setting: "format", Value: FormatXLSX, Msg: "workbooks are written per unit"}
	}
	return c.writeSection(ctx, w, Section{Table: t, Region: region}, !c.cfg.SkipDefinition)
}

func (c *Converter) writeSection(ctx context.Context, w io.Writer, sec Section, define bool) (transcode.Stats, error) {
	s, err := c.TableSchema(sec.Table)
	if err != nil {
		return transcode.Stats{}, err
	}
	if define && ddl.Supports(c.format.Profile) {
		if err := c.writeDefinition(w, s); err != nil {
			return transcode.Stats{}, err
		}
		if !c.cfg.SkipData {
			if _, err := io.WriteString(w, "\n"); err != nil {
				return transcode.Stats{}, err
			}
		}
	}
	if c.cfg.SkipData {
		return transcode.Stats{}, nil
	}

	rc, name, err := c.openData(sec)
	if err != nil {
		return transcode.Stats{}, err
	}
	defer rc.Close()

	ctx, wd, stop := c.watch(ctx, sec, rc)
	defer stop()

	opts := transcode.Options{
		BatchSize: c.cfg.BatchSize,
		Charset:   c.cfg.Charset,
		Progress: func(rows int64) {
			wd.Kick()
			if c.cfg.Verbose && rows%100000 == 0 {
				log.Printf("[GARSQL] %s: %d rows", sec.Title(), rows)
			}
		},
	}
	start := time.Now()
	st, err := transcode.New(s, c.format.Profile, opts).Transcode(ctx, rc, w)
	if err != nil {
		return st, fmt.Errorf("%s: %w", name, err)
	}
	if c.cfg.Verbose {
		log.Printf("[GARSQL] Finished %s: %d rows, %d batches in %v", sec.Title(), st.Rows, st.Batches, time.Since(start).Round(time.Millisecond))
	}
	return st, nil
}

func (c *Converter) openData(sec Section) (io.ReadCloser, string, error) {
	dir := sec.Region
	if dir == "" {
		dir = "."
	}
	name, err := c.data.Resolve(dir, sec.Table.Name, "xml")
	if err != nil {
		return nil, "", err
	}
	f, err := c.data.Open(name)
	if err != nil {
		return nil, "", fmt.Errorf("failed to open data file: %w", err)
	}
	return f, name, nil
}

// watch arms the stall watchdog for one section. When it fires, or ctx ends,
// the data file is closed so a blocked read returns.
func (c *Converter) watch(ctx context.Context, sec Section, rc io.Closer) (context.Context, *common.Watchdog, func()) {
	wd := common.NewWatchdog(sec.Title(), c.timeout)
	wctx, stop := wd.Watch(ctx)
	stopClose := context.AfterFunc(wctx, func() { rc.Close() })
	return wctx, wd, func() {
		stopClose()
		stop()
	}
}

// UnitResult is the outcome of one output unit.
type UnitResult struct {
	Unit     Unit
	Path     string
	Rows     int64
	Batches  int64
	Bytes    int64
	Digest   string
	Duration time.Duration
	Err      error
}

// Report summarizes a run.
type Report struct {
	Units    []UnitResult
	Manifest string // path of the manifest, empty when none was written
}

// Rows returns the number of rows written by successful units.
func (r *Report) Rows() int64 {
	var n int64
	for _, u := range r.Units {
		if u.Err == nil {
			n += u.Rows
		}
	}
	return n
}

// Failed returns the units that did not complete.
func (r *Report) Failed() []UnitResult {
	var out []UnitResult
	for _, u := range r.Units {
		if u.Err != nil {
			out = append(out, u)
		}
	}
	return out
}

// outputTarget returns the output directory and the file name used by the
// direct layout.
func (c *Converter) outputTarget() (string, string) {
	out := c.cfg.OutputPath
	if c.cfg.Layout != LayoutDirect {
		return out, ""
	}
	if info, err := os.Stat(out); err == nil && info.IsDir() {
		return out, DirectName + "." + c.format.Ext
	}
	return filepath.Dir(out), filepath.Base(out)
}

// Run converts the selected tables and regions. Units run concurrently up to
// cfg.Workers. With ContinueOnError, table scoped failures are recorded in the
// report and the other units go on; otherwise the first failure cancels the
// run.
func (c *Converter) Run(ctx context.Context) (*Report, error) {
	tables, err := source.SelectTables(c.cfg.Tables)
	if err != nil {
		return nil, err
	}
	regions, err := c.Regions()
	if err != nil {
		return nil, err
	}
	dir, direct := c.outputTarget()
	units, err := Plan(c.cfg.Layout, tables, regions, c.format.Ext, direct)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}
	if c.cfg.Verbose {
		log.Printf("[GARSQL] %d tables, %d regions, %d output files", len(tables), len(regions), len(units))
	}

	report := &Report{Units: make([]UnitResult, len(units))}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.cfg.Workers)
	for i, u := range units {
		i, u := i, u
		g.Go(func() error {
			res := c.runUnit(gctx, dir, u)
			report.Units[i] = res
			if res.Err == nil {
				return nil
			}
			log.Printf("[GARSQL] %s failed: %v", u.Name, res.Err)
			if c.cfg.ContinueOnError && common.IsTableScoped(res.Err) {
				return nil
			}
			return fmt.Errorf("%s: %w", u.Name, res.Err)
		})
	}
	if err := g.Wait(); err != nil {
		return report, err
	}

	if !c.cfg.NoManifest {
		m := &Manifest{Format: c.format.Name, Layout: c.cfg.Layout, BatchSize: c.cfg.BatchSize}
		for _, r := range report.Units {
			if r.Err != nil {
				continue
			}
			mf := ManifestFile{Name: r.Unit.Name, Rows: r.Rows, Batches: r.Batches, Bytes: r.Bytes, Digest: r.Digest}
			for _, sec := range r.Unit.Sections {
				mf.Sections = append(mf.Sections, sec.Title())
			}
			m.Files = append(m.Files, mf)
		}
		report.Manifest = filepath.Join(dir, ManifestName)
		if err := WriteManifest(report.Manifest, m); err != nil {
			return report, err
		}
	}
	return report, nil
}

// runUnit writes one unit to a temporary file and moves it into place only
// when every section succeeded.
func (c *Converter) runUnit(ctx context.Context, dir string, u Unit) UnitResult {
	res := UnitResult{Unit: u, Path: filepath.Join(dir, filepath.FromSlash(u.Name))}
	start := time.Now()
	defer func() { res.Duration = time.Since(start) }()

	if err := context.Cause(ctx); err != nil {
		res.Err = err
		return res
	}
	if err := os.MkdirAll(filepath.Dir(res.Path), 0755); err != nil {
		res.Err = fmt.Errorf("failed to create output directory: %w", err)
		return res
	}
	tmp := res.Path + ".partial"
	f, err := os.Create(tmp)
	if err != nil {
		res.Err = fmt.Errorf("failed to create output file: %w", err)
		return res
	}

	h := xxh3.New()
	cw := &countingWriter{w: io.MultiWriter(f, h)}
	if c.format.Workbook() {
		err = c.writeWorkbook(ctx, cw, u, &res)
	} else {
		err = c.writeText(ctx, cw, u, &res)
	}
	if cerr := f.Close(); err == nil && cerr != nil {
		err = fmt.Errorf("failed to close output file: %w", cerr)
	}
	if err == nil {
		err = os.Rename(tmp, res.Path)
	}
	if err != nil {
		os.Remove(tmp)
		res.Err = err
		return res
	}

	res.Bytes = cw.n
	res.Digest = hexSum(h)
	if c.cfg.Verbose {
		log.Printf("[GARSQL] Wrote %s: %d rows, %d bytes", u.Name, res.Rows, res.Bytes)
	}
	return res
}

func (c *Converter) writeText(ctx context.Context, w io.Writer, u Unit, res *UnitResult) error {
	p := c.format.Profile
	comments := p.CommentPrefix != ""

	var head strings.Builder
	if !c.cfg.NoBanner && comments {
		head.WriteString(c.banner())
	}
	head.WriteString(p.Header(c.cfg.Encoding))
	if _, err := io.WriteString(w, head.String()); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	defined := make(map[string]bool)
	for _, sec := range u.Sections {
		if err := context.Cause(ctx); err != nil {
			return err
		}
		if comments {
			sep := "\n"
			if sec.Separator {
				sep += p.Comment(separator(sec))
			}
			if _, err := io.WriteString(w, sep); err != nil {
				return fmt.Errorf("failed to write separator: %w", err)
			}
		}

		define := !c.cfg.SkipDefinition && !defined[sec.Table.Name]
		defined[sec.Table.Name] = true
		st, err := c.writeSection(ctx, w, sec, define)
		res.Rows += st.Rows
		res.Batches += st.Batches
		if err != nil {
			return fmt.Errorf("table %s: %w", sec.Title(), err)
		}
	}

	if footer := p.Footer(); footer != "" {
		if _, err := io.WriteString(w, "\n"+footer); err != nil {
			return fmt.Errorf("failed to write footer: %w", err)
		}
	}
	return nil
}

func (c *Converter) writeWorkbook(ctx context.Context, w io.Writer, u Unit, res *UnitResult) error {
	wb, err := xlsx.New()
	if err != nil {
		return err
	}
	defer wb.Close()

	for _, sec := range u.Sections {
		n, err := c.addSheet(ctx, wb, sec)
		res.Rows += n
		if err != nil {
			return fmt.Errorf("table %s: %w", sec.Title(), err)
		}
	}
	_, err = wb.WriteTo(w)
	return err
}

func (c *Converter) addSheet(ctx context.Context, wb *xlsx.Workbook, sec Section) (int64, error) {
	s, err := c.TableSchema(sec.Table)
	if err != nil {
		return 0, err
	}
	rc, name, err := c.openData(sec)
	if err != nil {
		return 0, err
	}
	defer rc.Close()

	ctx, wd, stop := c.watch(ctx, sec, rc)
	defer stop()

	rows, err := transcode.NewRowReader(rc, s, transcode.Options{Charset: c.cfg.Charset})
	if err != nil {
		return 0, err
	}
	n, err := wb.AddTable(ctx, sec.Title(), rows, func(int64) { wd.Kick() })
	if err != nil {
		if ctx.Err() != nil {
			err = context.Cause(ctx)
		}
		return n, fmt.Errorf("%s: %w", name, err)
	}
	return n, nil
}

func separator(sec Section) string {
	if sec.Region == "" {
		return fmt.Sprintf("Table: `%s`", sec.Table.Name)
	}
	return fmt.Sprintf("Region: `%s`, Table: `%s`", sec.Region, sec.Table.Name)
}

// banner frames the version and generation time in a comment box.
func (c *Converter) banner() string {
	p := c.format.Profile
	version := fmt.Sprintf("garsql %s -- GAR XML to %s converter", Version, c.format.Name)
	generated := "generated at " + c.now().Format(time.RFC3339)
	width := max(len(version), len(generated))
	pad := func(s string) string { return s + strings.Repeat(" ", width-len(s)) }
	rule := strings.Repeat("-", width)
	return p.Comment(rule) + p.Comment(pad(version)) + p.Comment(pad(generated)) + p.Comment(rule) + "\n"
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (cw *countingWriter) Write(b []byte) (int, error) {
	n, err := cw.w.Write(b)
	cw.n += int64(n)
	return n, err
}

// InterruptContext returns a context cancelled with common.ErrInterrupted on
// SIGINT or SIGTERM.
func InterruptContext(parent context.Context) (context.Context, func()) {
	ctx, cancel := context.WithCancelCause(parent)
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		select {
		case <-sigCh:
			log.Printf("[GARSQL] Interrupted, stopping after the current row")
			cancel(common.ErrInterrupted)
		case <-ctx.Done():
		}
	}()
	return ctx, func() {
		signal.Stop(sigCh)
		cancel(nil)
	}
}
