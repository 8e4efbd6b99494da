package transcode

import (
	"fmt"
	"io"
	"strings"

	"golang.org/x/text/encoding/ianaindex"

	"github.com/darianmavgo/garsql/converters/common"
)

// charsetReader decodes a non-UTF-8 document into UTF-8. It is installed as
// xml.Decoder.CharsetReader and called with the label from the XML
// declaration.
func charsetReader(label string, input io.Reader) (io.Reader, error) {
	enc, err := ianaindex.IANA.Encoding(label)
	if err != nil {
		return nil, fmt.Errorf("unsupported charset %q: %w", label, err)
	}
	if enc == nil {
		return nil, fmt.Errorf("unsupported charset %q", label)
	}
	return enc.NewDecoder().Reader(input), nil
}

// passThrough is the CharsetReader used once the input was already decoded
// by a forced charset: the declaration still names the original encoding.
func passThrough(_ string, input io.Reader) (io.Reader, error) {
	return input, nil
}

func isUTF8(label string) bool {
	switch strings.ToLower(strings.TrimSpace(label)) {
	case "", "utf-8", "utf8", "utf8mb4":
		return true
	}
	return false
}

// forceCharset wraps r so that it yields UTF-8 regardless of what the XML
// declaration says.
func forceCharset(label string, r io.Reader) (io.Reader, error) {
	dr, err := charsetReader(label, r)
	if err != nil {
		return nil, &common.ConfigurationError{Setting: "charset", Value: label, Msg: err.Error()}
	}
	return dr, nil
}
