// Package digest provides the content hashing and proof of work helpers
// used by the blockchain.
package digest

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"
	"unicode/utf8"
)

// Canonical returns the compact json document that is hashed for a block.
// Keys are written in sorted order and must never change, every node has
// to produce the same bytes for the same block. Strings are escaped the
// minimal json way: quote, backslash and control characters only. All
// other characters, U+2028 and U+2029 included, are written raw.
func Canonical(id uint64, timestamp int64, previousHash string, data string, nonce uint64) []byte {
	buf := make([]byte, 0, 96+len(data)+len(previousHash))

	buf = append(buf, `{"data":`...)
	buf = appendString(buf, data)
	buf = append(buf, `,"id":`...)
	buf = strconv.AppendUint(buf, id, 10)
	buf = append(buf, `,"nonce":`...)
	buf = strconv.AppendUint(buf, nonce, 10)
	buf = append(buf, `,"previous_hash":`...)
	buf = appendString(buf, previousHash)
	buf = append(buf, `,"timestamp":`...)
	buf = strconv.AppendInt(buf, timestamp, 10)
	buf = append(buf, '}')

	return buf
}

// appendString writes s as a quoted json string. Every invalid utf8 byte
// is written as U+FFFD, the same value a json decoder hands back for it.
func appendString(buf []byte, s string) []byte {
	const hexDigits = "0123456789abcdef"

	buf = append(buf, '"')

	for _, r := range s {
		switch {
		case r == '"':
			buf = append(buf, '\\', '"')
		case r == '\\':
			buf = append(buf, '\\', '\\')
		case r == '\b':
			buf = append(buf, '\\', 'b')
		case r == '\t':
			buf = append(buf, '\\', 't')
		case r == '\n':
			buf = append(buf, '\\', 'n')
		case r == '\f':
			buf = append(buf, '\\', 'f')
		case r == '\r':
			buf = append(buf, '\\', 'r')
		case r < 0x20:
			buf = append(buf, '\\', 'u', '0', '0', hexDigits[r>>4], hexDigits[r&0xf])
		default:
			buf = utf8.AppendRune(buf, r)
		}
	}

	return append(buf, '"')
}

// Sum returns the sha256 digest of the canonical form of a block.
func Sum(id uint64, timestamp int64, previousHash string, data string, nonce uint64) []byte {
	hash := sha256.Sum256(Canonical(id, timestamp, previousHash, data, nonce))
	return hash[:]
}

// Hex returns the lowercase hex encoding of the block digest.
func Hex(id uint64, timestamp int64, previousHash string, data string, nonce uint64) string {
	return hex.EncodeToString(Sum(id, timestamp, previousHash, data, nonce))
}

// Binary renders every byte of the hash as eight binary digits.
func Binary(hash []byte) string {
	var b strings.Builder
	b.Grow(len(hash) * 8)

	for _, c := range hash {
		for i := 7; i >= 0; i-- {
			if c&(1<<i) != 0 {
				b.WriteByte('1')
				continue
			}
			b.WriteByte('0')
		}
	}

	return b.String()
}

// HasPrefix reports whether the hex encoded hash has a binary representation
// starting with the specified prefix. A hash that is not valid hex never
// has the prefix.
func HasPrefix(hexHash string, prefix string) bool {
	hash, err := hex.DecodeString(hexHash)
	if err != nil {
		return false
	}

	return IsSolved(hash, prefix)
}

// IsSolved checks the raw hash against the proof of work prefix.
func IsSolved(hash []byte, prefix string) bool {

	// Only the leading bytes matter, no need to render the whole hash.
	n := (len(prefix) + 7) / 8
	if n > len(hash) {
		return false
	}

	return strings.HasPrefix(Binary(hash[:n]), prefix)
}
