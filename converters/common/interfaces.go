package common

// RowSource yields one attribute bag per data element, in document order.
// The returned slices are reused by the next call and must not be retained.
type RowSource interface {
	// Fields returns the column order used for values and present.
	Fields() []string
	// Next returns the next row, or io.EOF when the stream is exhausted.
	Next() (values []string, present []bool, err error)
}
