package wiivol

// On-disc geometry, byte-exact. See original_source/Source/Core/DiscIO/VolumeWii.cpp.
const (
	// blockHeaderSize is the encrypted metadata region of one cluster.
	blockHeaderSize = 0x400
	// blockDataSize is the encrypted payload region of one cluster.
	blockDataSize = 0x7C00
	// blockTotalSize is one on-disc cluster (header + data).
	blockTotalSize = 0x8000

	// partitionDataOffset is the fixed offset from a partition's start to its first cluster.
	partitionDataOffset = 0x20000

	// partitionGroupTableOffset is where the four partition-group slots live.
	partitionGroupTableOffset = 0x40000

	// wiiMagicOffset holds a non-zero value on discs with no Wii partition table.
	wiiMagicOffset = 0x60

	// ticketSize is the fixed size of a ticket blob.
	ticketSize = 0x2A4

	// Offsets of the TMD size/pointer fields, relative to a partition's start.
	tmdSizeOffset = ticketSize
	tmdAddrOffset = ticketSize + 0x4

	// partitionDataSizeOffset holds "partition data size / 4", relative to a partition's start.
	partitionDataSizeOffset = 0x2BC

	// Cluster metadata layout, relative to the start of the (decrypted) metadata region.
	hashTableSize  = 0x26C // 31 * 20-byte SHA-1 hashes
	padRegionStart = 0x26C
	padRegionEnd   = 0x280
	clusterIVStart = 0x3D0
	clusterIVEnd   = 0x3E0

	// hashesPerCluster is the number of 1024-byte sub-blocks hashed per cluster.
	hashesPerCluster = blockDataSize / blockHeaderSize // 31
	subBlockSize     = blockHeaderSize                 // 0x400
	sha1Size         = 20

	// tmdHeaderSize is the minimum valid TMD buffer length.
	tmdHeaderSize = 0x1E4
	// maxTMDSize is a conservative ceiling on plausible TMD size (Open Question, spec.md §9).
	maxTMDSize = 4 * 1024 * 1024

	// titleKeySize is the size of a ticket's decrypted AES-128 title key.
	titleKeySize = 16

	numPartitionGroups = 4
)
