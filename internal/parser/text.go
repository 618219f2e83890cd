package parser

import (
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// DecodeText converts file bytes to a UTF-8 string. A UTF-8 or UTF-16 byte order
// mark selects that encoding and is stripped. Without a BOM, valid UTF-8 passes
// through and anything else is read as Windows-1252, which is what most bank
// export tools emit.
func DecodeText(b []byte) string {
	var fallback transform.Transformer = unicode.UTF8.NewDecoder()
	if !utf8.Valid(b) {
		fallback = charmap.Windows1252.NewDecoder()
	}

	out, _, err := transform.Bytes(unicode.BOMOverride(fallback), b)
	if err != nil {
		return string(b)
	}
	return string(out)
}
