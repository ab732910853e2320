package record

import (
	"fmt"
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/ianaindex"
	"golang.org/x/text/encoding/unicode"
)

// Encoding is a named text encoding used when writing an output.
// The zero value writes UTF-8 without a byte order mark.
type Encoding struct {
	name string
	enc  encoding.Encoding
}

// UTF8 is the default encoding.
var UTF8 = Encoding{name: "utf-8", enc: unicode.UTF8}

// aliases maps the names host IDEs use to encodings IANA does not name directly.
var aliases = map[string]Encoding{
	"utf-8":            UTF8,
	"utf8":             UTF8,
	"utf-8-bom":        {name: "utf-8-bom", enc: unicode.UTF8BOM},
	"utf-8 with bom":   {name: "utf-8-bom", enc: unicode.UTF8BOM},
	"utf8bom":          {name: "utf-8-bom", enc: unicode.UTF8BOM},
	"unicode":          {name: "utf-16le", enc: unicode.UTF16(unicode.LittleEndian, unicode.UseBOM)},
	"utf-16":           {name: "utf-16le", enc: unicode.UTF16(unicode.LittleEndian, unicode.UseBOM)},
	"utf-16le":         {name: "utf-16le", enc: unicode.UTF16(unicode.LittleEndian, unicode.UseBOM)},
	"bigendianunicode": {name: "utf-16be", enc: unicode.UTF16(unicode.BigEndian, unicode.UseBOM)},
	"utf-16be":         {name: "utf-16be", enc: unicode.UTF16(unicode.BigEndian, unicode.UseBOM)},
	"utf-16le-nobom":   {name: "utf-16le-nobom", enc: unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM)},
	"utf-16be-nobom":   {name: "utf-16be-nobom", enc: unicode.UTF16(unicode.BigEndian, unicode.IgnoreBOM)},
	"default":          UTF8,
	"":                 UTF8,
}

// LookupEncoding resolves an encoding by name. Besides the IDE-style aliases
// ("utf-8-bom", "unicode", "bigendianunicode") every IANA charset name that
// golang.org/x/text supports is accepted ("windows-1252", "iso-8859-1", ...).
func LookupEncoding(name string) (Encoding, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	if e, ok := aliases[key]; ok {
		return e, nil
	}

	enc, err := ianaindex.IANA.Encoding(key)
	if err != nil {
		return Encoding{}, fmt.Errorf("unknown encoding %q: %w", name, err)
	}
	if enc == nil {
		return Encoding{}, fmt.Errorf("encoding %q is registered but not supported", name)
	}

	canonical, err := ianaindex.IANA.Name(enc)
	if err != nil {
		canonical = key
	}
	return Encoding{name: strings.ToLower(canonical), enc: enc}, nil
}

// Name returns the canonical encoding name.
func (e Encoding) Name() string {
	if e.enc == nil {
		return UTF8.name
	}
	return e.name
}

// IsZero reports whether no encoding was chosen.
func (e Encoding) IsZero() bool {
	return e.enc == nil
}

// Encode converts UTF-8 text to the encoding's bytes, adding a byte order
// mark where the encoding calls for one.
func (e Encoding) Encode(s string) ([]byte, error) {
	if e.enc == nil {
		return []byte(s), nil
	}
	out, err := e.enc.NewEncoder().String(s)
	if err != nil {
		return nil, fmt.Errorf("encoding content as %s: %w", e.Name(), err)
	}
	return []byte(out), nil
}

// Decode converts bytes in this encoding back to UTF-8 text.
func (e Encoding) Decode(b []byte) (string, error) {
	if e.enc == nil {
		return string(b), nil
	}
	out, err := e.enc.NewDecoder().Bytes(b)
	if err != nil {
		return "", fmt.Errorf("decoding content as %s: %w", e.Name(), err)
	}
	return string(out), nil
}
