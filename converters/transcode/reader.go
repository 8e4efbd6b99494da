package transcode

import (
	"bytes"
	"encoding/xml"
	"errors"
	"io"
	"strings"
	"unicode"

	"github.com/darianmavgo/garsql/converters/common"
	"github.com/darianmavgo/garsql/converters/schema"
)

// RowReader is a forward-only cursor over the elements of a data file that
// carry one row each. Nothing but the current element is held in memory.
type RowReader struct {
	dec     *xml.Decoder
	table   string
	tag     string
	fields  []string
	index   map[string]int
	values  []string
	present []bool
	rows    int64

	depth      int
	rootSeen   bool
	rootClosed bool
}

var (
	errNoRoot      = errors.New("document has no root element")
	errAfterRoot   = errors.New("element after the root element")
	errOutsideRoot = errors.New("text outside the root element")
)

var _ common.RowSource = (*RowReader)(nil)

// NewRowReader prepares a cursor over r for the repeating tag and field order
// of s. Only opts.Charset is consulted.
func NewRowReader(r io.Reader, s *schema.TableSchema, opts Options) (*RowReader, error) {
	charset := charsetReader
	switch {
	case strings.TrimSpace(opts.Charset) == "":
	case isUTF8(opts.Charset):
		charset = passThrough
	default:
		fr, err := forceCharset(opts.Charset, r)
		if err != nil {
			return nil, err
		}
		r = fr
		charset = passThrough
	}

	dec := xml.NewDecoder(r)
	dec.Strict = true
	dec.CharsetReader = charset

	fields := s.FieldNames()
	index := make(map[string]int, len(fields))
	for i, name := range fields {
		index[name] = i
	}
	return &RowReader{
		dec:     dec,
		table:   s.Name,
		tag:     s.Tag,
		fields:  fields,
		index:   index,
		values:  make([]string, len(fields)),
		present: make([]bool, len(fields)),
	}, nil
}

// Fields returns the column order.
func (r *RowReader) Fields() []string { return r.fields }

// Rows returns the number of rows returned so far.
func (r *RowReader) Rows() int64 { return r.rows }

// Offset returns the input byte offset of the decoder.
func (r *RowReader) Offset() int64 { return r.dec.InputOffset() }

// Next advances to the next element named after the repeating tag. Attributes
// not in the schema are ignored; schema fields missing on the element are
// reported as not present. The returned slices are overwritten by the next
// call.
func (r *RowReader) Next() ([]string, []bool, error) {
	for {
		tok, err := r.dec.Token()
		if err == io.EOF {
			if !r.rootSeen {
				return nil, nil, r.malformed(errNoRoot)
			}
			return nil, nil, io.EOF
		}
		if err != nil {
			return nil, nil, r.malformed(err)
		}

		switch tok := tok.(type) {
		case xml.StartElement:
			if r.rootClosed {
				return nil, nil, r.malformed(errAfterRoot)
			}
			r.rootSeen = true
			r.depth++
			if tok.Name.Local == r.tag {
				return r.row(tok)
			}
		case xml.EndElement:
			r.depth--
			if r.depth == 0 {
				r.rootClosed = true
			}
		case xml.CharData:
			if r.depth == 0 && len(bytes.TrimFunc(tok, ignorable)) > 0 {
				return nil, nil, r.malformed(errOutsideRoot)
			}
		}
	}
}

// ignorable matches what may surround the root element: white space and a
// byte order mark.
func ignorable(c rune) bool {
	return unicode.IsSpace(c) || c == '\uFEFF'
}

func (r *RowReader) row(start xml.StartElement) ([]string, []bool, error) {
	clear(r.values)
	clear(r.present)
	for _, a := range start.Attr {
		if i, ok := r.index[a.Name.Local]; ok {
			r.values[i] = a.Value
			r.present[i] = true
		}
	}
	r.rows++
	return r.values, r.present, nil
}

func (r *RowReader) malformed(err error) error {
	return &common.DataFormatError{
		Table:  r.table,
		Offset: r.dec.InputOffset(),
		Row:    r.rows,
		Err:    err,
	}
}
