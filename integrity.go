package wiivol

import (
	"crypto/sha1"
)

// CheckIntegrity walks every cluster of partition, decrypting each cluster's
// metadata region with an all-zero IV, skipping "hole" clusters via the
// padding heuristic, and comparing each of the 31 decrypted sub-blocks
// against its stored SHA-1 hash. It returns false on the first read failure
// or hash mismatch, logging a warning identifying the offending cluster (and
// sub-block, for a hash mismatch).
//
// Preserves the source behavior of trusting the on-disc "partition data
// size" field without cross-checking it against the image's actual size: an
// out-of-range value simply causes the cluster loop to fail on the first
// missing cluster.
func (v *Volume) CheckIntegrity(partition Partition) bool {
	rec, ok := v.partitions[partition]
	if !ok {
		return false
	}

	rawPartDataSize, ok := readBEU32(v.blob, partition.Offset()+partitionDataSizeOffset)
	if !ok {
		return false
	}
	partDataSize := uint64(rawPartDataSize) * 4
	numClusters := partDataSize / blockTotalSize

	for clusterID := uint64(0); clusterID < numClusters; clusterID++ {
		clusterOffset := partition.Offset() + partitionDataOffset + clusterID*blockTotalSize

		cipherMeta := make([]byte, blockHeaderSize)
		if !v.blob.Read(clusterOffset, blockHeaderSize, cipherMeta) {
			v.logger.Warn("wiivol: integrity check failed to read cluster metadata", "cluster_id", clusterID)
			return false
		}

		plainMeta, err := decryptMetadata(rec, cipherMeta)
		if err != nil {
			v.logger.Warn("wiivol: integrity check failed to decrypt cluster metadata", "cluster_id", clusterID, "error", err)
			return false
		}

		if isHole(plainMeta) {
			continue
		}

		payload := make([]byte, blockDataSize)
		if !v.Read(partition, clusterID*blockDataSize, blockDataSize, payload) {
			v.logger.Warn("wiivol: integrity check failed to read cluster payload", "cluster_id", clusterID)
			return false
		}

		for hashID := 0; hashID < hashesPerCluster; hashID++ {
			subBlock := payload[hashID*subBlockSize : (hashID+1)*subBlockSize]
			sum := sha1.Sum(subBlock)

			stored := plainMeta[hashID*sha1Size : (hashID+1)*sha1Size]
			if !hashesEqual(sum[:], stored) {
				v.logger.Warn("wiivol: integrity check hash mismatch", "cluster_id", clusterID, "hash_id", hashID)
				return false
			}
		}
	}

	return true
}

// isHole reports whether a decrypted cluster-metadata buffer's pad region
// (0x26C..0x280) contains a non-zero byte, meaning this cluster's hashes are
// deliberately meaningless and must not be checked. Preserve exactly: a
// known false-negative source, not to be tightened without a format-spec
// source.
func isHole(plainMeta []byte) bool {
	for _, b := range plainMeta[padRegionStart:padRegionEnd] {
		if b != 0 {
			return true
		}
	}
	return false
}

func hashesEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
