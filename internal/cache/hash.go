package cache

import (
	"encoding/binary"
	"fmt"
	"hash/fnv"
	"strings"
)

// edgeBytes is how much of each end of an image buffer feeds the fingerprint.
const edgeBytes = 16

// HashImage computes a cheap content fingerprint from the buffer length plus
// the first and last 16 bytes. It detects "same upload retried" without
// hashing the whole payload. NOT collision-resistant: two same-sized images
// sharing edge bytes collide. That tradeoff is deliberate (speed over
// security; cache poisoning risk is low here) and swapping in a full
// cryptographic hash would change cache cost characteristics.
func HashImage(b []byte) string {
	h := fnv.New64a()
	var sz [8]byte
	binary.LittleEndian.PutUint64(sz[:], uint64(len(b)))
	h.Write(sz[:])

	head := b
	if len(head) > edgeBytes {
		head = head[:edgeBytes]
	}
	h.Write(head)
	if len(b) > edgeBytes {
		tail := b[len(b)-edgeBytes:]
		h.Write(tail)
	}
	return fmt.Sprintf("%016x", h.Sum64())
}

// HashQuery hashes case-folded, trimmed query text so equivalent queries
// share one retrieval entry.
func HashQuery(q string) string {
	norm := strings.ToLower(strings.TrimSpace(q))
	h := fnv.New64a()
	h.Write([]byte(norm))
	return fmt.Sprintf("%016x", h.Sum64())
}
