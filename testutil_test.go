package wiivol

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/sha1"
	"encoding/binary"
)

// memBlob is an in-memory BlobReader over a byte slice, used to fabricate
// disc-image fixtures without touching the filesystem. Grounded on the
// in-memory fixture style used by olebeck-gopkg's package tests, adapted to
// this module's BlobReader contract rather than a raw io.Reader.
type memBlob struct {
	data []byte
}

var _ BlobReader = (*memBlob)(nil)

func newMemBlob(size int) *memBlob {
	return &memBlob{data: make([]byte, size)}
}

func (b *memBlob) Read(offset, length uint64, buf []byte) bool {
	if uint64(len(buf)) < length || offset+length > uint64(len(b.data)) {
		return false
	}
	copy(buf[:length], b.data[offset:offset+length])
	return true
}

func (b *memBlob) DataSize() uint64  { return uint64(len(b.data)) }
func (b *memBlob) RawSize() uint64   { return uint64(len(b.data)) }
func (b *memBlob) BlobType() BlobType { return BlobTypePlain }

func (b *memBlob) putU32(offset uint64, v uint32) {
	binary.BigEndian.PutUint32(b.data[offset:offset+4], v)
}

func (b *memBlob) putU64(offset uint64, v uint64) {
	binary.BigEndian.PutUint64(b.data[offset:offset+8], v)
}

func binaryPutU16(buf []byte, offset int, v uint16) {
	binary.BigEndian.PutUint16(buf[offset:offset+2], v)
}

func binaryPutU32(buf []byte, offset int, v uint32) {
	binary.BigEndian.PutUint32(buf[offset:offset+4], v)
}

func binaryPutU64(buf []byte, offset int, v uint64) {
	binary.BigEndian.PutUint64(buf[offset:offset+8], v)
}

func cbcEncrypt(key, iv, plaintext []byte) []byte {
	block, err := aes.NewCipher(key)
	if err != nil {
		panic(err)
	}
	out := make([]byte, len(plaintext))
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(out, plaintext)
	return out
}

func cbcDecrypt(key, iv, ciphertext []byte) []byte {
	block, err := aes.NewCipher(key)
	if err != nil {
		panic(err)
	}
	out := make([]byte, len(ciphertext))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(out, ciphertext)
	return out
}

// buildTicket returns a ticketSize-byte buffer for the given title ID and
// (plaintext) title key, encrypted under commonKeys[0] as the on-disc
// format requires.
func buildTicket(titleID uint64, titleKey []byte) []byte {
	buf := make([]byte, ticketSize)
	binary.BigEndian.PutUint64(buf[ticketTitleIDOffset:], titleID)
	buf[ticketCommonKeyIndexOffset] = 0

	iv := make([]byte, aes.BlockSize)
	binary.BigEndian.PutUint64(iv[:8], titleID)
	encrypted := cbcEncrypt(commonKeys[0], iv, titleKey)
	copy(buf[ticketTitleKeyOffset:ticketTitleKeyOffset+titleKeySize], encrypted)

	return buf
}

// buildTMD returns a minimal valid TMD buffer with no content-table entries.
func buildTMD(titleID uint64, titleVersion uint16) []byte {
	buf := make([]byte, tmdHeaderSize)
	binary.BigEndian.PutUint64(buf[tmdTitleIDOffset:], titleID)
	binary.BigEndian.PutUint16(buf[tmdTitleVersionOffset:], titleVersion)
	binary.BigEndian.PutUint16(buf[tmdNumContentsOffset:], 0)
	return buf
}

// clusterFixture holds the plaintext view of one cluster used to build and
// later mutate an on-disc ciphertext cluster.
type clusterFixture struct {
	payload []byte // blockDataSize bytes
	iv      []byte // 16 bytes, data-region IV
	hashes  []byte // hashTableSize bytes
	pad     []byte // padRegionEnd-padRegionStart bytes
}

// newPatternCluster builds a cluster whose payload is the repeating byte
// pattern 0x00, 0x01, 0x02, ... and whose hash table correctly covers it.
func newPatternCluster() *clusterFixture {
	payload := make([]byte, blockDataSize)
	for i := range payload {
		payload[i] = byte(i)
	}

	hashes := make([]byte, hashTableSize)
	for i := 0; i < hashesPerCluster; i++ {
		sum := sha1.Sum(payload[i*subBlockSize : (i+1)*subBlockSize])
		copy(hashes[i*sha1Size:(i+1)*sha1Size], sum[:])
	}

	iv := make([]byte, aes.BlockSize)
	for i := range iv {
		iv[i] = byte(0xA0 + i)
	}

	return &clusterFixture{
		payload: payload,
		iv:      iv,
		hashes:  hashes,
		pad:     make([]byte, padRegionEnd-padRegionStart),
	}
}

// encode produces the blockTotalSize on-disc ciphertext for this cluster
// under the given title key.
//
// The on-disc data IV is read by the volume's read path directly out of the
// RAW (still-encrypted) header bytes at clusterIVStart:clusterIVEnd — the
// real format never decrypts that slot to get the IV, so this helper writes
// c.iv straight into the encrypted header after encrypting the rest of the
// (fabricated) plaintext metadata. That overwrite lands on an AES block
// boundary and only corrupts the decrypted plaintext of the reserved region
// beyond the pad bytes, which nothing checks.
func (c *clusterFixture) encode(titleKey []byte) []byte {
	plainMeta := make([]byte, blockHeaderSize)
	copy(plainMeta[0:hashTableSize], c.hashes)
	copy(plainMeta[padRegionStart:padRegionEnd], c.pad)

	zeroIV := make([]byte, aes.BlockSize)
	cipherMeta := cbcEncrypt(titleKey, zeroIV, plainMeta)
	copy(cipherMeta[clusterIVStart:clusterIVEnd], c.iv)

	cipherData := cbcEncrypt(titleKey, c.iv, c.payload)

	out := make([]byte, blockTotalSize)
	copy(out[:blockHeaderSize], cipherMeta)
	copy(out[blockHeaderSize:], cipherData)
	return out
}

// singlePartitionFixture describes the knobs of the S2-style fixture image
// built by buildSinglePartitionImage.
type singlePartitionFixture struct {
	titleID      uint64
	titleKey     []byte
	partitionOff uint64
	tmdSize      uint32 // if zero, a valid minimal TMD size is used
	cluster      *clusterFixture
}

// buildSinglePartitionImage builds an in-memory image with exactly one
// partition, following the layout in spec section 4.1 and the S2/S3
// scenarios: magic zero at 0x60, group 0 declaring one partition, a ticket
// and TMD at the partition header, and (if cluster is set) one encrypted
// data cluster at the partition's data offset.
func buildSinglePartitionImage(f singlePartitionFixture) *memBlob {
	const (
		tableOffset = partitionGroupTableOffset + 8*numPartitionGroups
		tmdOffset   = 0x800
	)

	// Two clusters' worth of data space is reserved so reads that straddle
	// the boundary into the following (zeroed) cluster stay in bounds.
	size := f.partitionOff + partitionDataOffset + 2*blockTotalSize
	blob := newMemBlob(int(size))

	// magic: zero means "has a partition table"
	blob.putU32(wiiMagicOffset, 0)

	// group 0: one partition, table right after the four group slots
	blob.putU32(partitionGroupTableOffset, 1)
	blob.putU32(partitionGroupTableOffset+4, uint32(tableOffset>>2))
	// groups 1..3: zero partitions
	for g := uint64(1); g < numPartitionGroups; g++ {
		blob.putU32(partitionGroupTableOffset+8*g, 0)
		blob.putU32(partitionGroupTableOffset+8*g+4, 0)
	}

	// partition entry: pointer (>>2) and type 0 (game partition)
	blob.putU32(tableOffset, uint32(f.partitionOff>>2))
	blob.putU32(tableOffset+4, 0)

	// ticket
	ticket := buildTicket(f.titleID, f.titleKey)
	copy(blob.data[f.partitionOff:f.partitionOff+ticketSize], ticket)

	// TMD size/addr fields
	tmdSize := f.tmdSize
	var tmd []byte
	if tmdSize == 0 {
		tmd = buildTMD(f.titleID, 1)
		tmdSize = uint32(len(tmd))
	}
	blob.putU32(f.partitionOff+tmdSizeOffset, tmdSize)
	blob.putU32(f.partitionOff+tmdAddrOffset, uint32(tmdOffset>>2))
	if tmd != nil {
		copy(blob.data[f.partitionOff+tmdOffset:f.partitionOff+tmdOffset+uint64(len(tmd))], tmd)
	}

	// partition data size (for CheckIntegrity): one cluster's worth, if any
	if f.cluster != nil {
		blob.putU32(f.partitionOff+partitionDataSizeOffset, uint32(blockTotalSize/4))
		clusterBytes := f.cluster.encode(f.titleKey)
		dataOff := f.partitionOff + partitionDataOffset
		copy(blob.data[dataOff:dataOff+blockTotalSize], clusterBytes)
	}

	return blob
}

// partitionSpec describes one partition entry for buildMultiGroupImage: just
// enough of a partition header (ticket + minimal TMD) to exercise discovery,
// with no cluster data.
type partitionSpec struct {
	offset   uint64
	partType uint32
	titleID  uint64
	titleKey []byte
}

// buildMultiGroupImage builds an image with the given partitions laid out
// across the four partition-group slots (groups[g] lists group g's entries
// in index order), to exercise the (group, index)-major game-partition
// tie-break (spec.md §4.1's ordering rule / Testable Property 4).
func buildMultiGroupImage(groups [numPartitionGroups][]partitionSpec) *memBlob {
	const tmdOffset = 0x800

	var size uint64
	for _, group := range groups {
		for _, p := range group {
			if end := p.offset + partitionDataOffset; end > size {
				size = end
			}
		}
	}
	blob := newMemBlob(int(size))

	blob.putU32(wiiMagicOffset, 0)

	tableOffset := uint64(partitionGroupTableOffset + 8*numPartitionGroups)
	for g := 0; g < numPartitionGroups; g++ {
		group := groups[g]
		blob.putU32(partitionGroupTableOffset+8*uint64(g), uint32(len(group)))
		blob.putU32(partitionGroupTableOffset+8*uint64(g)+4, uint32(tableOffset>>2))

		for i, p := range group {
			entryOffset := tableOffset + 8*uint64(i)
			blob.putU32(entryOffset, uint32(p.offset>>2))
			blob.putU32(entryOffset+4, p.partType)

			ticket := buildTicket(p.titleID, p.titleKey)
			copy(blob.data[p.offset:p.offset+ticketSize], ticket)

			tmd := buildTMD(p.titleID, 1)
			blob.putU32(p.offset+tmdSizeOffset, uint32(len(tmd)))
			blob.putU32(p.offset+tmdAddrOffset, uint32(tmdOffset>>2))
			copy(blob.data[p.offset+tmdOffset:p.offset+tmdOffset+uint64(len(tmd))], tmd)
		}

		tableOffset += 8 * uint64(len(group))
	}

	return blob
}
