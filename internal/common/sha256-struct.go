package common

import (
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"hash"
	"io"
	"os"
)

// SHA256 is a fixed-width sha256 digest kept as four big-endian uint64s rather
// than a [32]byte, so many dependency hashes can be folded together cheaply
// with XorWith when hashing a translation unit's whole dependency closure.
//
//goland:noinspection GoSnakeCaseUsage
type SHA256 struct {
	B0_7, B8_15, B16_23, B24_31 uint64
}

func (h *SHA256) IsEmpty() bool {
	return h.B0_7 == 0 && h.B8_15 == 0 && h.B16_23 == 0 && h.B24_31 == 0
}

func (h *SHA256) XorWith(other *SHA256) {
	h.B0_7 ^= other.B0_7
	h.B8_15 ^= other.B8_15
	h.B16_23 ^= other.B16_23
	h.B24_31 ^= other.B24_31
}

func (h SHA256) Equal(other SHA256) bool {
	return h.B0_7 == other.B0_7 && h.B8_15 == other.B8_15 && h.B16_23 == other.B16_23 && h.B24_31 == other.B24_31
}

// ToHexString renders the digest as the flat 64-char hex digest spec.md's
// ContentHash data model and §4.1 persistence format require.
func (h *SHA256) ToHexString() string {
	return fmt.Sprintf("%016x%016x%016x%016x", h.B0_7, h.B8_15, h.B16_23, h.B24_31)
}

// FromHexString parses a 64-char hex digest written by ToHexString.
// On a malformed string, h is reset to the zero value (IsEmpty() becomes true)
// and an error is returned so the caller can treat the record as CacheCorruption.
func (h *SHA256) FromHexString(hexStr string) error {
	if len(hexStr) != 64 {
		*h = SHA256{}
		return fmt.Errorf("invalid sha256 hex length %d", len(hexStr))
	}
	if n, _ := fmt.Sscanf(hexStr, "%016x%016x%016x%016x", &h.B0_7, &h.B8_15, &h.B16_23, &h.B24_31); n != 4 {
		*h = SHA256{}
		return fmt.Errorf("malformed sha256 hex string %q", hexStr)
	}
	return nil
}

func MakeSHA256Struct(hasher hash.Hash) SHA256 {
	b := hasher.Sum(nil) // len is 32
	return SHA256{
		B0_7:   binary.BigEndian.Uint64(b[0:8]),
		B8_15:  binary.BigEndian.Uint64(b[8:16]),
		B16_23: binary.BigEndian.Uint64(b[16:24]),
		B24_31: binary.BigEndian.Uint64(b[24:32]),
	}
}

// HashBytes hashes a buffer already read into memory.
func HashBytes(buf []byte) SHA256 {
	hasher := sha256.New()
	_, _ = hasher.Write(buf)
	return MakeSHA256Struct(hasher)
}

// HashFile reads and hashes fileName in full.
func HashFile(fileName string) (SHA256, error) {
	f, err := os.Open(fileName)
	if err != nil {
		return SHA256{}, err
	}
	defer f.Close()

	hasher := sha256.New()
	if _, err := io.Copy(hasher, f); err != nil {
		return SHA256{}, err
	}
	return MakeSHA256Struct(hasher), nil
}
