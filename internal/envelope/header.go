package envelope

import (
	"fmt"
	"strconv"

	"github.com/rotisserie/eris"
)

// HeaderLen is the size of a SAV header line including its newline.
const HeaderLen = 24

// SaveKind is the format declared by a SAV header.
type SaveKind uint8

// Save kinds.
const (
	KindText SaveKind = iota
	KindBinary
	KindUnifiedText
	KindUnifiedBinary
	KindSplitText
	KindSplitBinary
)

// Encoding returns whether the payload is binary.
func (k SaveKind) Encoding() Encoding {
	switch k {
	case KindBinary, KindUnifiedBinary, KindSplitBinary:
		return Binary
	}
	return Text
}

// Zipped reports whether the gamestate is stored in a zip archive.
func (k SaveKind) Zipped() bool {
	return k == KindUnifiedText || k == KindUnifiedBinary
}

// Header is the SAV line: SAV, version, kind, an opaque random field and
// the metadata length, all hex.
type Header struct {
	Version uint8
	Kind    SaveKind
	Random  string
	MetaLen uint32
}

// ParseHeader reads the first HeaderLen bytes of data.
func ParseHeader(data []byte) (Header, error) {
	if len(data) < HeaderLen || string(data[:3]) != "SAV" {
		return Header{}, eris.New("envelope: missing SAV header")
	}
	line := string(data[:HeaderLen-1])
	if data[HeaderLen-1] != '\n' && data[HeaderLen-1] != '\r' {
		return Header{}, eris.New("envelope: SAV header not terminated")
	}
	version, err := strconv.ParseUint(line[3:5], 16, 8)
	if err != nil {
		return Header{}, eris.Wrap(err, "envelope: header version")
	}
	kind, err := strconv.ParseUint(line[5:7], 16, 8)
	if err != nil || kind > uint64(KindSplitBinary) {
		return Header{}, eris.Errorf("envelope: unknown save kind %q", line[5:7])
	}
	if _, err := strconv.ParseUint(line[7:15], 16, 32); err != nil {
		return Header{}, eris.Wrap(err, "envelope: header random field")
	}
	meta, err := strconv.ParseUint(line[15:23], 16, 32)
	if err != nil {
		return Header{}, eris.Wrap(err, "envelope: header metadata length")
	}
	return Header{
		Version: uint8(version),
		Kind:    SaveKind(kind),
		Random:  line[7:15],
		MetaLen: uint32(meta),
	}, nil
}

// String renders the header without its newline.
func (h Header) String() string {
	random := h.Random
	if len(random) != 8 {
		random = "00000000"
	}
	return fmt.Sprintf("SAV%02x%02x%s%08x", h.Version, uint8(h.Kind), random, h.MetaLen)
}

// Plaintext returns the header rewritten for an uncompressed text save with
// the given metadata length.
func (h Header) Plaintext(metaLen int) Header {
	h.Kind = KindText
	h.MetaLen = uint32(metaLen)
	return h
}
