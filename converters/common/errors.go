package common

import (
	"errors"
	"fmt"
	"io/fs"
)

var (
	// ErrInterrupted is returned when a conversion is stopped by the user.
	ErrInterrupted = errors.New("operation interrupted by user")
	// ErrScanTimeout is returned when a row stream stops making progress.
	ErrScanTimeout = errors.New("scan timed out")
)

// SchemaError reports an XSD fragment that cannot yield a field list or a
// repeating tag. It is fatal for the table being processed only.
type SchemaError struct {
	Table  string
	Source string // file the fragment was read from, if known
	Msg    string
	Err    error
}

func (e *SchemaError) Error() string {
	where := e.Table
	if e.Source != "" {
		where = fmt.Sprintf("%s (%s)", e.Table, e.Source)
	}
	if e.Err != nil {
		return fmt.Sprintf("schema %s: %s: %v", where, e.Msg, e.Err)
	}
	return fmt.Sprintf("schema %s: %s", where, e.Msg)
}

func (e *SchemaError) Unwrap() error { return e.Err }

// DataFormatError reports a data stream that is not well-formed XML.
type DataFormatError struct {
	Table  string
	Offset int64 // input byte offset reported by the decoder
	Row    int64 // rows emitted before the failure
	Err    error
}

func (e *DataFormatError) Error() string {
	return fmt.Sprintf("data %s: malformed XML at offset %d after %d rows: %v", e.Table, e.Offset, e.Row, e.Err)
}

func (e *DataFormatError) Unwrap() error { return e.Err }

// ConfigurationError reports an unknown dialect, layout or other setting.
// It is raised before any table is touched.
type ConfigurationError struct {
	Setting string
	Value   string
	Msg     string
}

func (e *ConfigurationError) Error() string {
	if e.Value == "" {
		return fmt.Sprintf("config %s: %s", e.Setting, e.Msg)
	}
	return fmt.Sprintf("config %s=%q: %s", e.Setting, e.Value, e.Msg)
}

// IsTableScoped reports whether err only invalidates the current table, so
// the caller may move on to the next one. A missing input file counts too:
// not every region ships every table.
func IsTableScoped(err error) bool {
	var se *SchemaError
	var de *DataFormatError
	return errors.As(err, &se) || errors.As(err, &de) || errors.Is(err, fs.ErrNotExist)
}
