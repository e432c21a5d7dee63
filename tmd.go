package wiivol

import "encoding/binary"

// TMD header offsets, relative to the start of the TMD blob.
// See original_source/Source/Core/Core/IOS/ES/Formats.h (IOS::ES::TMDHeader, Content)
// and Xpl0itU-godecrypt/decrypt.go's title-ID/content-count reads, which this
// cross-checks (0x18C title ID, 0x1DE content count).
const (
	tmdTitleIDOffset      = 0x18C
	tmdTitleVersionOffset = 0x1DC
	tmdNumContentsOffset  = 0x1DE
	tmdContentTableOffset = tmdHeaderSize // 0x1E4, immediately after the header
	tmdContentRecordSize  = 0x24          // id(4) + index(2) + type(2) + size(8) + hash(20)
)

// TMDContent describes one entry of a TMD's content table. Consumed only by
// external callers, per spec.md §4.5 — the core itself only needs
// IsValidSize/IsValid/TitleID. Field types match the teacher's own
// TMDContent: ID/Index/Type and Hash hex-encode in JSON output, Size stays a
// plain integer.
type TMDContent struct {
	ID    Hex32
	Index Hex16
	Type  Hex16
	Size  uint64
	Hash  Hex
}

// TMD is a view over a variable-length TMD blob. It exposes validity, title
// ID, title version and the content table; RSA signature verification is
// out of scope.
type TMD struct {
	raw   []byte
	valid bool
}

// InvalidTMD is the process-lifetime sentinel returned for unknown partitions.
var InvalidTMD = TMD{}

// IsValidSize reports whether a buffer of the given length could hold a TMD:
// at least the fixed header, and no more than a conservative ceiling large
// enough for any plausible content table. The upper bound is not pinned down
// by the source (spec.md §9's Open Question); 4 MiB is used here.
func IsValidSize(length int) bool {
	return length >= tmdHeaderSize && length <= maxTMDSize
}

// NewTMD constructs a TMD view over buf. buf is not copied.
func NewTMD(buf []byte) TMD {
	if !IsValidSize(len(buf)) {
		return TMD{}
	}
	numContents := binary.BigEndian.Uint16(buf[tmdNumContentsOffset : tmdNumContentsOffset+2])
	if tmdContentTableOffset+int(numContents)*tmdContentRecordSize > len(buf) {
		return TMD{}
	}
	return TMD{raw: buf, valid: true}
}

// IsValid reports whether this TMD was built from a well-formed buffer.
func (t TMD) IsValid() bool {
	return t.valid
}

// TitleID returns the TMD's title ID. Only meaningful if IsValid.
func (t TMD) TitleID() uint64 {
	if !t.valid {
		return 0
	}
	return binary.BigEndian.Uint64(t.raw[tmdTitleIDOffset : tmdTitleIDOffset+8])
}

// TitleVersion returns the TMD's title version. Only meaningful if IsValid.
func (t TMD) TitleVersion() uint16 {
	if !t.valid {
		return 0
	}
	return binary.BigEndian.Uint16(t.raw[tmdTitleVersionOffset : tmdTitleVersionOffset+2])
}

// Contents returns the TMD's content table. Only meaningful if IsValid.
func (t TMD) Contents() []TMDContent {
	if !t.valid {
		return nil
	}
	numContents := binary.BigEndian.Uint16(t.raw[tmdNumContentsOffset : tmdNumContentsOffset+2])
	contents := make([]TMDContent, numContents)
	for i := range contents {
		rec := t.raw[tmdContentTableOffset+i*tmdContentRecordSize:]
		hash := make(Hex, sha1Size)
		copy(hash, rec[16:36])
		contents[i] = TMDContent{
			ID:    Hex32(binary.BigEndian.Uint32(rec[0:4])),
			Index: Hex16(binary.BigEndian.Uint16(rec[4:6])),
			Type:  Hex16(binary.BigEndian.Uint16(rec[6:8])),
			Size:  binary.BigEndian.Uint64(rec[8:16]),
			Hash:  hash,
		}
	}
	return contents
}
