package webbundle

import (
	"bytes"
	"testing"

	"github.com/dtn7/cboring"
)

// buildRawBundle assembles a minimal well-formed bundle from raw section
// payloads, bypassing Bundle/Encode entirely, so tests can craft malformed
// sections that the public Builder API would refuse to construct.
func buildRawBundle(t *testing.T, names []string, raws [][]byte) []byte {
	t.Helper()

	lengthsBytes, err := encodeSectionLengths(names, raws)
	if err != nil {
		t.Fatalf("encodeSectionLengths: %v", err)
	}

	var buf bytes.Buffer
	if err := cboring.WriteArrayLength(5, &buf); err != nil {
		t.Fatal(err)
	}
	if err := cboring.WriteByteString(magic[:], &buf); err != nil {
		t.Fatal(err)
	}
	versionBytes := VersionB2.Bytes()
	if err := cboring.WriteByteString(versionBytes[:], &buf); err != nil {
		t.Fatal(err)
	}
	if err := cboring.WriteByteString(lengthsBytes, &buf); err != nil {
		t.Fatal(err)
	}
	if err := cboring.WriteArrayLength(uint64(len(names)), &buf); err != nil {
		t.Fatal(err)
	}
	for _, raw := range raws {
		if _, err := buf.Write(raw); err != nil {
			t.Fatal(err)
		}
	}

	var trailer [8]byte
	total := uint64(buf.Len()) + 9
	putUint64BE(trailer[:], total)
	if err := cboring.WriteByteString(trailer[:], &buf); err != nil {
		t.Fatal(err)
	}

	return buf.Bytes()
}

func putUint64BE(b []byte, v uint64) {
	for i := 7; i >= 0; i-- {
		b[i] = byte(v)
		v >>= 8
	}
}

// rawResponseItem builds a [headers, body] response pair directly from a
// pre-built canonical header map, so malformed headers can be exercised.
func rawResponseItem(t *testing.T, headerMap []byte, body []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := cboring.WriteArrayLength(2, &buf); err != nil {
		t.Fatal(err)
	}
	if _, err := buf.Write(headerMap); err != nil {
		t.Fatal(err)
	}
	if err := cboring.WriteByteString(body, &buf); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func rawHeaderMap(t *testing.T, pairs [][2][]byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := cboring.WriteMapPairLength(uint64(len(pairs)), &buf); err != nil {
		t.Fatal(err)
	}
	for _, p := range pairs {
		if err := cboring.WriteByteString(p[0], &buf); err != nil {
			t.Fatal(err)
		}
		if err := cboring.WriteByteString(p[1], &buf); err != nil {
			t.Fatal(err)
		}
	}
	return buf.Bytes()
}

func rawResponsesSection(t *testing.T, items [][]byte) ([]byte, []indexEntry) {
	t.Helper()
	var buf bytes.Buffer
	if err := cboring.WriteArrayLength(uint64(len(items)), &buf); err != nil {
		t.Fatal(err)
	}
	entries := make([]indexEntry, 0, len(items))
	for i, item := range items {
		offset := uint64(buf.Len())
		if _, err := buf.Write(item); err != nil {
			t.Fatal(err)
		}
		entries = append(entries, indexEntry{
			url:    "https://example.com/" + string(rune('a'+i)),
			offset: offset,
			length: uint64(buf.Len()) - offset,
		})
	}
	return buf.Bytes(), entries
}

// TestParseRejectsMissingResponsesLast covers the spec §8 seed scenario: a
// bundle whose last section is "index" rather than "responses".
func TestParseRejectsMissingResponsesLast(t *testing.T) {
	indexBytes, err := encodeIndexSection(nil)
	if err != nil {
		t.Fatal(err)
	}

	data := buildRawBundle(t,
		[]string{responsesSection, indexSection},
		[][]byte{{0x80}, indexBytes},
	)

	_, err = Parse(data)
	if err == nil {
		t.Fatal("expected an error when the last section is not \"responses\"")
	}
	if kind, ok := KindOf(err); !ok || kind != KindMissingResponses {
		t.Fatalf("expected KindMissingResponses, got %v (ok=%v)", kind, ok)
	}
}

// TestParseRejectsMixedCaseHeaderName covers the spec §8 seed scenario: a
// response headers map containing "Content-Type" (mixed case).
func TestParseRejectsMixedCaseHeaderName(t *testing.T) {
	headerMap := rawHeaderMap(t, [][2][]byte{
		{[]byte(":status"), []byte("200")},
		{[]byte("Content-Type"), []byte("text/plain")},
	})
	item := rawResponseItem(t, headerMap, nil)
	responsesBytes, entries := rawResponsesSection(t, [][]byte{item})

	indexBytes, err := encodeIndexSection(entries)
	if err != nil {
		t.Fatal(err)
	}

	data := buildRawBundle(t,
		[]string{indexSection, responsesSection},
		[][]byte{indexBytes, responsesBytes},
	)

	_, err = Parse(data)
	if err == nil {
		t.Fatal("expected an error decoding a mixed-case header name")
	}
	if kind, ok := KindOf(err); !ok || kind != KindBadHeader {
		t.Fatalf("expected KindBadHeader, got %v (ok=%v)", kind, ok)
	}
}

// TestParseRejectsMissingStatus covers the spec §8 seed scenario: a response
// whose headers map omits the mandatory :status pseudo-header.
func TestParseRejectsMissingStatus(t *testing.T) {
	headerMap := rawHeaderMap(t, [][2][]byte{
		{[]byte("content-type"), []byte("text/plain")},
	})
	item := rawResponseItem(t, headerMap, nil)
	responsesBytes, entries := rawResponsesSection(t, [][]byte{item})

	indexBytes, err := encodeIndexSection(entries)
	if err != nil {
		t.Fatal(err)
	}

	data := buildRawBundle(t,
		[]string{indexSection, responsesSection},
		[][]byte{indexBytes, responsesBytes},
	)

	_, err = Parse(data)
	if err == nil {
		t.Fatal("expected an error decoding a response missing :status")
	}
	if kind, ok := KindOf(err); !ok || kind != KindBadHeader {
		t.Fatalf("expected KindBadHeader, got %v (ok=%v)", kind, ok)
	}
}

// TestParseRejectsDuplicateStatus ensures a second :status entry is rejected
// rather than silently overwriting the first.
func TestParseRejectsDuplicateStatus(t *testing.T) {
	headerMap := rawHeaderMap(t, [][2][]byte{
		{[]byte(":status"), []byte("200")},
		{[]byte(":status"), []byte("404")},
	})
	item := rawResponseItem(t, headerMap, nil)
	responsesBytes, entries := rawResponsesSection(t, [][]byte{item})

	indexBytes, err := encodeIndexSection(entries)
	if err != nil {
		t.Fatal(err)
	}

	data := buildRawBundle(t,
		[]string{indexSection, responsesSection},
		[][]byte{indexBytes, responsesBytes},
	)

	_, err = Parse(data)
	if err == nil {
		t.Fatal("expected an error decoding a response with duplicate :status")
	}
	if kind, ok := KindOf(err); !ok || kind != KindBadHeader {
		t.Fatalf("expected KindBadHeader, got %v (ok=%v)", kind, ok)
	}
}

// TestParseRejectsOversizedSectionLengths covers the spec §8 boundary: a
// section-lengths blob at or above 8192 bytes must be rejected (this
// fixture's blob is 12414 bytes).
func TestParseRejectsOversizedSectionLengths(t *testing.T) {
	// Pad the section-lengths array with enough bogus long names that its
	// encoded byte-string payload reaches the 8192-byte rejection bound.
	var names []string
	var raws [][]byte
	for i := 0; len(names) < 400; i++ {
		names = append(names, fillerSectionName(i))
		raws = append(raws, nil)
	}
	names = append(names, responsesSection)
	raws = append(raws, []byte{0x80})

	lengthsBytes, err := encodeSectionLengths(names, raws)
	if err != nil {
		t.Fatal(err)
	}
	if len(lengthsBytes) < maxSectionLengthsBytes {
		t.Fatalf("test fixture section-lengths blob is only %d bytes, want >= %d", len(lengthsBytes), maxSectionLengthsBytes)
	}

	var buf bytes.Buffer
	if err := cboring.WriteArrayLength(5, &buf); err != nil {
		t.Fatal(err)
	}
	if err := cboring.WriteByteString(magic[:], &buf); err != nil {
		t.Fatal(err)
	}
	versionBytes := VersionB2.Bytes()
	if err := cboring.WriteByteString(versionBytes[:], &buf); err != nil {
		t.Fatal(err)
	}
	if err := cboring.WriteByteString(lengthsBytes, &buf); err != nil {
		t.Fatal(err)
	}

	_, err = Parse(buf.Bytes())
	if err == nil {
		t.Fatal("expected an error decoding an oversized section-lengths blob")
	}
	if kind, ok := KindOf(err); !ok || kind != KindSectionTableTooLarge {
		t.Fatalf("expected KindSectionTableTooLarge, got %v (ok=%v)", kind, ok)
	}
}

func fillerSectionName(i int) string {
	const pad = "xxxxxxxxxxxxxxxxxx"
	return "filler-" + pad + "-" + string(rune('a'+i%26)) + string(rune('a'+(i/26)%26))
}
