package wiivol

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"encoding/binary"
	"io"
	"log/slog"
	"math"

	"github.com/wii-tools/wiivol/ctrutil"
)

// Volume is a byte-addressable view over a Wii disc image: the partition
// table, per-partition ticket/TMD metadata, and the cluster decryption and
// caching scheme described in original_source/Source/Core/DiscIO/VolumeWii.cpp.
//
// A Volume is built once from a BlobReader and is immutable afterwards except
// for its one-slot decrypted-cluster cache. It is not safe for concurrent use;
// callers needing cross-goroutine access must provide their own locking.
type Volume struct {
	blob        BlobReader
	logger      *slog.Logger
	passthrough bool

	order      []Partition
	partitions map[Partition]*partitionRecord
	game       Partition

	lastClusterOffset uint64
	clusterPlain      [blockDataSize]byte
}

// noCluster is the cache sentinel meaning "nothing decrypted yet".
const noCluster = math.MaxUint64

// Option configures a Volume at construction time.
type Option func(*Volume)

// WithLogger overrides the logger used for discovery and read warnings.
// The default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(v *Volume) {
		v.logger = logger
	}
}

// Open builds a Volume over blob, running the partition discovery protocol.
// Per-partition failures are silently skipped rather than failing the whole
// volume; a malformed TMD size additionally logs a warning. Open never
// returns an error: a Volume is always constructible from any blob.
func Open(blob BlobReader, opts ...Option) *Volume {
	v := &Volume{
		blob:              blob,
		logger:            slog.Default(),
		partitions:        make(map[Partition]*partitionRecord),
		game:              NoPartition,
		lastClusterOffset: noCluster,
	}
	for _, opt := range opts {
		opt(v)
	}

	magic, ok := readBEU32(blob, wiiMagicOffset)
	if !ok || magic != 0 {
		v.passthrough = true
		return v
	}

	v.discoverPartitions()
	return v
}

func (v *Volume) discoverPartitions() {
	for group := uint64(0); group < numPartitionGroups; group++ {
		groupBase := partitionGroupTableOffset + 8*group

		count, ok := readBEU32(v.blob, groupBase)
		if !ok {
			continue
		}
		tablePtrRaw, ok := readBEU32(v.blob, groupBase+4)
		if !ok {
			continue
		}
		tableOffset := uint64(tablePtrRaw) << 2

		for i := uint64(0); i < uint64(count); i++ {
			v.discoverOnePartition(tableOffset + 8*i)
		}
	}
}

func (v *Volume) discoverOnePartition(entryOffset uint64) {
	partPtrRaw, ok := readBEU32(v.blob, entryOffset)
	if !ok {
		return
	}
	partitionOffset := uint64(partPtrRaw) << 2

	partType, ok := readBEU32(v.blob, entryOffset+4)
	if !ok {
		return
	}

	ticketBuf := make([]byte, ticketSize)
	if !v.blob.Read(partitionOffset, ticketSize, ticketBuf) {
		return
	}
	ticket := NewTicket(ticketBuf)
	if !ticket.IsValid() {
		return
	}

	tmdSize, ok := readBEU32(v.blob, partitionOffset+tmdSizeOffset)
	if !ok {
		return
	}
	tmdAddrRaw, ok := readBEU32(v.blob, partitionOffset+tmdAddrOffset)
	if !ok {
		return
	}
	if !IsValidSize(int(tmdSize)) {
		v.logger.Warn("wiivol: partition has invalid TMD size, skipping",
			"partition_offset", partitionOffset, "tmd_size", tmdSize)
		return
	}
	tmdOffset := uint64(tmdAddrRaw) << 2

	tmdBuf := make([]byte, tmdSize)
	if !v.blob.Read(partitionOffset+tmdOffset, uint64(tmdSize), tmdBuf) {
		return
	}
	tmd := NewTMD(tmdBuf)
	if !tmd.IsValid() {
		return
	}

	titleKey, err := ticket.TitleKey()
	if err != nil || len(titleKey) != titleKeySize {
		return
	}
	block, err := aes.NewCipher(titleKey)
	if err != nil {
		return
	}

	partition := NewPartition(partitionOffset)
	isGame := partType == 0 && v.game.IsNone()
	v.partitions[partition] = &partitionRecord{
		ticket:          ticket,
		tmd:             tmd,
		block:           block,
		isGamePartition: isGame,
	}
	v.order = append(v.order, partition)
	if isGame {
		v.game = partition
	}
}

// Partitions returns every discovered partition. Enumeration order is not
// specified beyond being stable across calls on the same Volume.
func (v *Volume) Partitions() []Partition {
	out := make([]Partition, len(v.order))
	copy(out, v.order)
	return out
}

// GamePartition returns the first type-0 partition discovered, or NoPartition
// if the disc has no partitions or no partition of type 0.
func (v *Volume) GamePartition() Partition {
	return v.game
}

// IsPassthrough reports whether the disc has no Wii partition table (the
// magic at wiiMagicOffset was non-zero), meaning every Read delegates
// straight to the underlying BlobReader with no decryption.
func (v *Volume) IsPassthrough() bool {
	return v.passthrough
}

// Ticket returns the ticket view for partition, or InvalidTicket if the
// volume has no record of it.
func (v *Volume) Ticket(partition Partition) Ticket {
	rec, ok := v.partitions[partition]
	if !ok {
		return InvalidTicket
	}
	return rec.ticket
}

// TMD returns the TMD view for partition, or InvalidTMD if the volume has no
// record of it.
func (v *Volume) TMD(partition Partition) TMD {
	rec, ok := v.partitions[partition]
	if !ok {
		return InvalidTMD
	}
	return rec.tmd
}

// TitleID returns the title ID recorded in partition's ticket.
func (v *Volume) TitleID(partition Partition) (uint64, bool) {
	rec, ok := v.partitions[partition]
	if !ok {
		return 0, false
	}
	return rec.ticket.TitleID(), true
}

// DataSize passes through to the underlying BlobReader.
func (v *Volume) DataSize() uint64 { return v.blob.DataSize() }

// RawSize passes through to the underlying BlobReader.
func (v *Volume) RawSize() uint64 { return v.blob.RawSize() }

// BlobType passes through to the underlying BlobReader.
func (v *Volume) BlobType() BlobType { return v.blob.BlobType() }

// RawOffset converts (partition, logical_offset) into an offset on the raw
// image, without performing any I/O or decryption. For NoPartition this is
// the identity. The result for a real partition points into ciphertext; it
// is meant for non-cryptographic tooling, not for reading plaintext.
func (v *Volume) RawOffset(partition Partition, offset uint64) uint64 {
	if partition.IsNone() {
		return offset
	}
	clusterIndex := offset / blockDataSize
	intra := offset % blockDataSize
	return partition.Offset() + partitionDataOffset + clusterIndex*blockTotalSize + intra
}

// Read serves a logical read of length bytes at offset within partition into
// out, which must be at least length bytes long. It returns false if
// partition is unknown or any underlying read fails; on false, out's
// contents are unspecified.
//
// For NoPartition, Read delegates straight to the underlying BlobReader with
// no decryption (passthrough mode, used for discs with no partition table).
func (v *Volume) Read(partition Partition, offset uint64, length int, out []byte) bool {
	if partition.IsNone() {
		return v.blob.Read(offset, uint64(length), out)
	}

	rec, ok := v.partitions[partition]
	if !ok {
		return false
	}

	for length > 0 {
		clusterIndex := offset / blockDataSize
		blockDiscOffset := partition.Offset() + partitionDataOffset + clusterIndex*blockTotalSize
		intraBlockOffset := offset % blockDataSize

		if blockDiscOffset != v.lastClusterOffset {
			if !v.loadCluster(rec, blockDiscOffset) {
				return false
			}
		}

		n := length
		if avail := int(blockDataSize - intraBlockOffset); n > avail {
			n = avail
		}
		copy(out[:n], v.clusterPlain[intraBlockOffset:intraBlockOffset+uint64(n)])

		out = out[n:]
		length -= n
		offset += uint64(n)
	}
	return true
}

// loadCluster decrypts the BLOCK_DATA_SIZE payload region of the cluster at
// blockDiscOffset into the one-slot cache, invalidating the cache on any
// failure.
func (v *Volume) loadCluster(rec *partitionRecord, blockDiscOffset uint64) bool {
	var scratch [blockTotalSize]byte
	if !v.blob.Read(blockDiscOffset, blockTotalSize, scratch[:]) {
		v.lastClusterOffset = noCluster
		v.logger.Warn("wiivol: failed to read cluster", "offset", blockDiscOffset)
		return false
	}

	iv := make([]byte, aes.BlockSize)
	copy(iv, scratch[clusterIVStart:clusterIVEnd])

	cbc := cipher.NewCBCDecrypter(rec.block, iv)
	r := ctrutil.NewCipherReader(bytes.NewReader(scratch[blockHeaderSize:blockTotalSize]), cbc)
	if _, err := io.ReadFull(r, v.clusterPlain[:]); err != nil {
		v.lastClusterOffset = noCluster
		v.logger.Warn("wiivol: failed to decrypt cluster", "offset", blockDiscOffset, "error", err)
		return false
	}

	v.lastClusterOffset = blockDiscOffset
	return true
}

// decryptMetadata decrypts the BLOCK_HEADER_SIZE metadata region of a cluster
// already read into cipherMeta, using an all-zero IV and partition's key
// schedule. Used by CheckIntegrity (see integrity.go).
func decryptMetadata(rec *partitionRecord, cipherMeta []byte) ([]byte, error) {
	iv := make([]byte, aes.BlockSize)
	cbc := cipher.NewCBCDecrypter(rec.block, iv)

	plain := make([]byte, blockHeaderSize)
	r := ctrutil.NewCipherReader(bytes.NewReader(cipherMeta), cbc)
	if _, err := io.ReadFull(r, plain); err != nil {
		return nil, err
	}
	return plain, nil
}

// ReadBEU32 reads a big-endian uint32 at offset within partition, composed
// on top of Read.
func (v *Volume) ReadBEU32(partition Partition, offset uint64) (uint32, bool) {
	var buf [4]byte
	if !v.Read(partition, offset, 4, buf[:]) {
		return 0, false
	}
	return binary.BigEndian.Uint32(buf[:]), true
}

// ReadBEU8 reads a single byte at offset within partition, composed on top
// of Read.
func (v *Volume) ReadBEU8(partition Partition, offset uint64) (uint8, bool) {
	var buf [1]byte
	if !v.Read(partition, offset, 1, buf[:]) {
		return 0, false
	}
	return buf[0], true
}
