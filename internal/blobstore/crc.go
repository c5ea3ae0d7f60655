package blobstore

import "hash/crc32"

// CRC computation is named in spec.md §1 as an external collaborator of the
// core, not part of the hard engineering being rewritten here. This package
// honors that contract with the standard library's crc32.Castagnoli table,
// the same mechanically-verifiable checksum any external collaborator would
// plausibly supply; callers that have their own CRC collaborator can ignore
// this file entirely since checksumValid/refreshChecksum are the only call
// sites.
var castagnoliTable = crc32.MakeTable(crc32.Castagnoli)

func crc32Castagnoli(b []byte) uint32 {
	return crc32.Checksum(b, castagnoliTable)
}
