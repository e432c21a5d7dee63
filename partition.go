package wiivol

import "crypto/cipher"

// Partition identifies a partition by its absolute byte offset on the disc
// image. The zero value is not a valid partition; use NoPartition for the
// "no partition / unencrypted passthrough" sentinel.
type Partition struct {
	offset uint64
	valid  bool
}

// NoPartition is the sentinel meaning "no partition / unencrypted passthrough".
var NoPartition = Partition{}

// NewPartition returns the partition descriptor for the given absolute
// byte offset.
func NewPartition(offset uint64) Partition {
	return Partition{offset: offset, valid: true}
}

// Offset returns the partition's absolute byte offset on the disc image.
func (p Partition) Offset() uint64 {
	return p.offset
}

// IsNone reports whether p is the NoPartition sentinel.
func (p Partition) IsNone() bool {
	return !p.valid
}

// partitionRecord is everything the volume owns for one discovered
// partition. Collapsing ticket/TMD/key-schedule into a single keyed record
// (spec.md §9's design note) avoids three separate lookups per read and the
// correctness hazard of only some of three parallel maps containing a given
// partition.
type partitionRecord struct {
	ticket          Ticket
	tmd             TMD
	block           cipher.Block
	isGamePartition bool
}
