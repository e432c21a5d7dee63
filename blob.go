package wiivol

import (
	"encoding/binary"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/vazrupe/endibuf"
)

// BlobType identifies the underlying disc image container. This module only
// implements Plain directly; compressed/container formats (WBFS, CISO, RVZ,
// ...) are the external block-device abstraction named in spec.md §1.
type BlobType int

const (
	BlobTypePlain BlobType = iota
	BlobTypeUnknown
)

func (t BlobType) String() string {
	switch t {
	case BlobTypePlain:
		return "plain"
	default:
		return "unknown"
	}
}

// BlobReader is the random-access contract a Volume reads its disc image
// through. Read must return true on full success and false on any shortfall
// or I/O error; it must not partially fill buf on failure.
type BlobReader interface {
	Read(offset, length uint64, buf []byte) bool
	DataSize() uint64
	RawSize() uint64
	BlobType() BlobType
}

// readBEU32 reads a big-endian uint32 at offset, reporting false on any
// read failure. Derived from BlobReader.Read per spec.md §6.
func readBEU32(r BlobReader, offset uint64) (uint32, bool) {
	var buf [4]byte
	if !r.Read(offset, 4, buf[:]) {
		return 0, false
	}
	return binary.BigEndian.Uint32(buf[:]), true
}

// readBEU8 reads a single byte at offset, reporting false on any read failure.
func readBEU8(r BlobReader, offset uint64) (uint8, bool) {
	var buf [1]byte
	if !r.Read(offset, 1, buf[:]) {
		return 0, false
	}
	return buf[0], true
}

// FileBlobReader is a BlobReader over a plain, uncompressed disc image file.
// It is the only concrete BlobReader this module ships; anything fancier
// (compressed or containerized images) is the caller's responsibility to
// implement against the BlobReader interface.
type FileBlobReader struct {
	file *os.File
	size uint64
}

var _ BlobReader = (*FileBlobReader)(nil)

// NewFileBlobReader opens path as a plain disc image.
func NewFileBlobReader(path string) (*FileBlobReader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("wiivol: failed to open disc image: %w", err)
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("wiivol: failed to stat disc image: %w", err)
	}

	if magic, err := probeWiiMagic(f); err == nil {
		slog.Debug("wiivol: probed disc magic", "path", path, "magic", magic)
	}

	return &FileBlobReader{file: f, size: uint64(info.Size())}, nil
}

// Close releases the underlying file.
func (r *FileBlobReader) Close() error {
	return r.file.Close()
}

// Read implements BlobReader.
func (r *FileBlobReader) Read(offset, length uint64, buf []byte) bool {
	if uint64(len(buf)) < length || offset+length > r.size {
		return false
	}
	_, err := r.file.ReadAt(buf[:length], int64(offset))
	return err == nil
}

// DataSize implements BlobReader.
func (r *FileBlobReader) DataSize() uint64 {
	return r.size
}

// RawSize implements BlobReader.
func (r *FileBlobReader) RawSize() uint64 {
	return r.size
}

// BlobType implements BlobReader.
func (r *FileBlobReader) BlobType() BlobType {
	return BlobTypePlain
}

// probeWiiMagic peeks the u32 at wiiMagicOffset so NewFileBlobReader can log
// it at open time, for diagnostic purposes only. Volume.Open performs its own
// independent read of the same field per the documented discovery protocol
// and does not trust this probe. Grounded on WJQSERVER-hca/hca_decode.go's
// endibuf.NewReader(f) + r.Endian = binary.BigEndian pattern for sequential
// big-endian scalar reads of a freshly-opened file.
func probeWiiMagic(f *os.File) (uint32, error) {
	if _, err := f.Seek(wiiMagicOffset, io.SeekStart); err != nil {
		return 0, err
	}
	r := endibuf.NewReader(f)
	r.Endian = binary.BigEndian
	magic, err := r.ReadUint32()
	if _, serr := f.Seek(0, io.SeekStart); serr != nil && err == nil {
		err = serr
	}
	return magic, err
}
