package fileio

import (
	"hash/crc32"
)

// ChecksumCRC32 returns big-endian CRC32 checksum of given data
func ChecksumCRC32(data []byte) []byte {
	hash := crc32.New(crc32.IEEETable)
	hash.Write(data)
	return hash.Sum(nil)
}

// progressiveChecksumCRC32 incrementally calculates CRC32 checksum
func progressiveChecksumCRC32(hash uint32, data []byte) uint32 {
	return crc32.Update(hash, crc32.IEEETable, data)
}
