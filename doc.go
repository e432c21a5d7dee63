// Package wiivol is a read-only access layer for Wii optical-disc images.
//
// It walks the disc's partition-group table, loads each partition's ticket
// and TMD, derives the per-partition AES-128 title key, and serves
// transparently-decrypted reads of a partition's logical byte stream. A
// separate integrity checker verifies the SHA-1 hash tree embedded in each
// cluster's encrypted metadata region.
//
// The underlying disc image is supplied by the caller as a BlobReader; this
// package only understands plain, uncompressed images directly through
// FileBlobReader. Compressed or containerized image formats, on-disc
// filesystem traversal, and game-metadata extraction are out of scope.
//
// This package comes with a CLI. You can install it like this:
//
//	go install github.com/wii-tools/wiivol/cmd/wiivol@latest
package wiivol
