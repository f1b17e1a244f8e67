package webbundle

import (
	"io"
	"sort"
)

// magic is the 8-byte Web Bundle format identifier, the first bytes of
// every encoded bundle (spec §8 seed test: 85 48 F0 9F 8C 90 F0 9F 93 A6...).
var magic = [8]byte{0xF0, 0x9F, 0x8C, 0x90, 0xF0, 0x9F, 0x93, 0xA6}

// maxSectionLengthsBytes bounds the section-lengths CBOR blob; a decoder
// must refuse to allocate based on an attacker-controlled length before
// reading this much of the stream (spec §6).
const maxSectionLengthsBytes = 8192

// Section names, spec §4. legacyManifestSection and legacySignaturesSection
// are no longer written but a decoder must still recognize and skip them
// (with a warning) rather than treating them as critical-unknown.
const (
	primarySection   = "primary"
	indexSection     = "index"
	responsesSection = "responses"
	criticalSection  = "critical"

	legacyManifestSection   = "manifest"
	legacySignaturesSection = "signatures"
)

// countingWriter wraps an io.Writer and tracks the number of bytes written
// through it, standing in for the offset bookkeeping the original encoder
// did with an unsafe pointer cast around its underlying buffer (spec §9);
// here the count is just a field.
type countingWriter struct {
	w io.Writer
	n int64
}

func newCountingWriter(w io.Writer) *countingWriter {
	return &countingWriter{w: w}
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}

// Len reports the number of bytes written so far.
func (c *countingWriter) Len() int64 {
	return c.n
}

// canonicalPair is one (key, value) entry of a CBOR map pending canonical
// sort, each side already serialized to its final bytes.
type canonicalPair struct {
	key   []byte
	value []byte
}

// sortCanonicalPairs orders pairs by their serialized key bytes per RFC
// 7049 §3.9: shorter keys sort first, ties broken byte-by-byte. This is the
// Go equivalent of the original encoder's BTreeMap<Vec<u8>, Vec<u8>> (spec
// §9's design note: "serialize each key to its own buffer and sort").
func sortCanonicalPairs(pairs []canonicalPair) {
	sort.Slice(pairs, func(i, j int) bool {
		a, b := pairs[i].key, pairs[j].key
		if len(a) != len(b) {
			return len(a) < len(b)
		}
		for k := range a {
			if a[k] != b[k] {
				return a[k] < b[k]
			}
		}
		return false
	})
}
