// Package envelope splits a save file into its sections: a magic prefix
// (EU4bin, HOI4txt), a SAV header with a metadata block, and zip archives
// holding the gamestate.
package envelope

import (
	"bytes"
	"errors"
	"io"

	"github.com/klauspost/compress/zip"
	"github.com/rotisserie/eris"
)

// Encoding tells whether section payloads are binary tokens or plaintext.
type Encoding uint8

// Encodings.
const (
	Text Encoding = iota
	Binary
)

func (e Encoding) String() string {
	if e == Binary {
		return "binary"
	}
	return "text"
}

// Known magic prefixes for games that mark their format in the first bytes.
var magics = []struct {
	prefix   string
	encoding Encoding
}{
	{"EU4bin", Binary},
	{"EU4txt", Text},
	{"HOI4bin", Binary},
	{"HOI4txt", Text},
}

var zipMagic = []byte("PK\x03\x04")

// ErrMissingSection is returned when a zip archive lacks the gamestate.
var ErrMissingSection = errors.New("envelope: missing gamestate section")

// Section is one independently decodable part of a save.
type Section struct {
	Name string
	open func() (io.ReadCloser, error)
}

// Open returns a fresh reader over the section payload.
func (s Section) Open() (io.ReadCloser, error) {
	return s.open()
}

// ReadAll reads the whole section.
func (s Section) ReadAll() ([]byte, error) {
	rc, err := s.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close() //nolint:errcheck
	b, err := io.ReadAll(rc)
	if err != nil {
		return nil, eris.Wrapf(err, "envelope: read section %s", s.Name)
	}
	return b, nil
}

func memSection(name string, b []byte) Section {
	return Section{Name: name, open: func() (io.ReadCloser, error) {
		return io.NopCloser(bytes.NewReader(b)), nil
	}}
}

// File is a parsed save container.
type File struct {
	Encoding Encoding
	// Magic is the prefix of magic-marked saves, empty otherwise.
	Magic string
	// Header is set for SAV saves.
	Header *Header
	// Meta holds the metadata block when the container has one.
	Meta *Section
	// Body lists the sections to convert, in output order.
	Body []Section
	// Zipped is set when the body came out of a zip archive.
	Zipped bool
}

// Parse inspects data and locates its sections. Zip entries are
// decompressed lazily when opened.
func Parse(data []byte) (*File, error) {
	switch {
	case bytes.HasPrefix(data, []byte("SAV")) && len(data) >= HeaderLen:
		if h, err := ParseHeader(data); err == nil {
			return parseSAV(h, data)
		}
	case bytes.HasPrefix(data, zipMagic):
		return parseZip(data)
	}
	for _, m := range magics {
		if bytes.HasPrefix(data, []byte(m.prefix)) {
			body := data[len(m.prefix):]
			return &File{
				Encoding: m.encoding,
				Magic:    m.prefix,
				Body:     []Section{memSection("gamestate", body)},
			}, nil
		}
	}
	return &File{Encoding: Text, Body: []Section{memSection("gamestate", data)}}, nil
}

func parseSAV(h Header, data []byte) (*File, error) {
	rest := data[HeaderLen:]
	if int64(h.MetaLen) > int64(len(rest)) {
		return nil, eris.Errorf("envelope: metadata length %d exceeds file size", h.MetaLen)
	}
	meta := memSection("meta", rest[:h.MetaLen])
	body := rest[h.MetaLen:]
	f := &File{Encoding: h.Kind.Encoding(), Header: &h, Meta: &meta}

	if h.Kind.Zipped() {
		zf, err := parseZip(body)
		if err != nil {
			return nil, err
		}
		f.Body = zf.Body
		f.Zipped = true
		return f, nil
	}
	f.Body = []Section{memSection("gamestate", body)}
	return f, nil
}

// parseZip reads EU4 style archives (meta, gamestate, ai entries each with a
// magic prefix) and SAV style archives (a bare gamestate entry).
func parseZip(data []byte) (*File, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, eris.Wrap(err, "envelope: open zip")
	}
	entries := make(map[string]*zip.File, len(zr.File))
	for _, zf := range zr.File {
		if !zf.FileInfo().IsDir() {
			entries[zf.Name] = zf
		}
	}
	gs, ok := entries["gamestate"]
	if !ok {
		return nil, ErrMissingSection
	}

	prefix, err := peek(gs, 7)
	if err != nil {
		return nil, err
	}
	f := &File{Encoding: Binary, Zipped: true}
	for _, m := range magics {
		if bytes.HasPrefix(prefix, []byte(m.prefix)) {
			f.Magic = m.prefix
			f.Encoding = m.encoding
			break
		}
	}

	skip := int64(len(f.Magic))
	if meta, ok := entries["meta"]; ok {
		s := zipSection("meta", meta, skip)
		f.Meta = &s
	}
	f.Body = append(f.Body, zipSection("gamestate", gs, skip))
	if ai, ok := entries["ai"]; ok {
		f.Body = append(f.Body, zipSection("ai", ai, skip))
	}
	return f, nil
}

func zipSection(name string, zf *zip.File, skip int64) Section {
	return Section{Name: name, open: func() (io.ReadCloser, error) {
		rc, err := zf.Open()
		if err != nil {
			return nil, eris.Wrapf(err, "envelope: open zip entry %s", zf.Name)
		}
		if skip > 0 {
			if _, err := io.CopyN(io.Discard, rc, skip); err != nil {
				rc.Close() //nolint:errcheck
				return nil, eris.Wrapf(err, "envelope: skip magic in %s", zf.Name)
			}
		}
		return rc, nil
	}}
}

func peek(zf *zip.File, n int) ([]byte, error) {
	rc, err := zf.Open()
	if err != nil {
		return nil, eris.Wrapf(err, "envelope: open zip entry %s", zf.Name)
	}
	defer rc.Close() //nolint:errcheck
	buf := make([]byte, n)
	m, err := io.ReadFull(rc, buf)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return nil, eris.Wrapf(err, "envelope: read zip entry %s", zf.Name)
	}
	return buf[:m], nil
}
