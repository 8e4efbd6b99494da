// Package transcode streams a GAR data file and re-encodes each row element
// into a target dialect, grouping rows into batches.
package transcode

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/darianmavgo/garsql/converters/common"
	"github.com/darianmavgo/garsql/converters/dialect"
	"github.com/darianmavgo/garsql/converters/schema"
)

// DefaultProgressEvery is the row interval between Progress calls when
// Options.ProgressEvery is unset.
const DefaultProgressEvery = 1000

// Options tune a single transcoding run.
type Options struct {
	BatchSize int    // rows per batch, common.DefaultBatchSize when <= 0
	Charset   string // decode input from this charset whatever the XML declaration says

	// Progress, when set, is called with the running row count every
	// ProgressEvery rows.
	Progress      func(rows int64)
	ProgressEvery int64
}

// Stats summarizes what one run wrote.
type Stats struct {
	Rows    int64
	Batches int64
	Bytes   int64
}

// Transcoder renders the rows of one table. It holds no state between runs
// and may be reused sequentially.
type Transcoder struct {
	schema  *schema.TableSchema
	profile *dialect.Profile
	opts    Options
}

// New returns a Transcoder for the table described by s.
func New(s *schema.TableSchema, p *dialect.Profile, opts Options) *Transcoder {
	if opts.BatchSize <= 0 {
		opts.BatchSize = common.DefaultBatchSize
	}
	if opts.ProgressEvery <= 0 {
		opts.ProgressEvery = DefaultProgressEvery
	}
	return &Transcoder{schema: s, profile: p, opts: opts}
}

// Transcode reads XML from r and writes the rendered table to w. Output is
// buffered and flushed at a row boundary before Transcode returns, also on
// error. A cancelled ctx stops the stream between elements and the cause is
// returned.
func (t *Transcoder) Transcode(ctx context.Context, r io.Reader, w io.Writer) (Stats, error) {
	var st Stats
	out := &statsWriter{w: bufio.NewWriterSize(w, 64*1024), stats: &st}

	rows, err := NewRowReader(r, t.schema, t.opts)
	if err != nil {
		return st, err
	}

	p := t.profile
	table := t.schema.Name
	batch := int64(t.opts.BatchSize)

	if err := out.write(p.TablePrologue(table)); err != nil {
		return st, err
	}

	var line strings.Builder
	var index int64
	for {
		if ctx.Err() != nil {
			return st, out.flush(context.Cause(ctx))
		}
		values, present, err := rows.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			if ctx.Err() != nil {
				err = context.Cause(ctx)
			}
			return st, out.flush(err)
		}

		line.Reset()
		pos := index % batch
		if index != 0 {
			if pos == 0 {
				line.WriteString(p.LineEndingLast)
			} else {
				line.WriteString(p.LineEnding)
			}
		}
		if index == 0 || pos == 0 {
			line.WriteString(p.BatchPrologue(table, rows.Fields()))
			st.Batches++
		}
		p.AppendRow(&line, values, present)
		if err := out.write(line.String()); err != nil {
			return st, err
		}
		index++
		st.Rows = index

		if t.opts.Progress != nil && index%t.opts.ProgressEvery == 0 {
			t.opts.Progress(index)
		}
	}

	if index > 0 {
		if err := out.write(p.LineEndingLast); err != nil {
			return st, err
		}
	}
	if err := out.write(p.TableEpilogue(table)); err != nil {
		return st, err
	}
	if t.opts.Progress != nil && index%t.opts.ProgressEvery != 0 {
		t.opts.Progress(index)
	}
	return st, out.flush(nil)
}

// statsWriter counts bytes handed to the buffered sink.
type statsWriter struct {
	w     *bufio.Writer
	stats *Stats
}

func (s *statsWriter) write(text string) error {
	if text == "" {
		return nil
	}
	n, err := s.w.WriteString(text)
	s.stats.Bytes += int64(n)
	if err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

// flush pushes buffered output and returns cause, or the flush error when
// cause is nil.
func (s *statsWriter) flush(cause error) error {
	if err := s.w.Flush(); err != nil && cause == nil {
		return fmt.Errorf("failed to flush output: %w", err)
	}
	return cause
}
