package webbundle

import (
	"bytes"
	"encoding/binary"
	"io"
	"strconv"

	"github.com/dtn7/cboring"
)

// indexEntry is one resolved (url -> offset, length) mapping into the
// responses section payload, built while that section is encoded.
type indexEntry struct {
	url    string
	offset uint64
	length uint64
}

// Encode serializes b into canonical CBOR per spec §4-§5 and returns the
// full bundle bytes.
func (b Bundle) Encode() ([]byte, error) {
	var buf bytes.Buffer
	if err := b.WriteTo(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// WriteTo writes the encoded bundle to w: a 5-element CBOR array of magic,
// version, section-lengths, sections and a trailing raw-byte length,
// mirroring spec §8's seed bytes (85 48 F0 9F 8C 90 F0 9F 93 A6 ...).
func (b Bundle) WriteTo(w io.Writer) error {
	responsesBytes, index, err := b.encodeResponses()
	if err != nil {
		return wrapPath("responses", err)
	}

	indexBytes, err := encodeIndexSection(index)
	if err != nil {
		return wrapPath("index", err)
	}

	var names []string
	var raws [][]byte
	if b.hasPrimary {
		names = append(names, primarySection)
		raws = append(raws, encodePrimarySection(b.primaryURL))
	}
	names = append(names, indexSection)
	raws = append(raws, indexBytes)
	names = append(names, responsesSection)
	raws = append(raws, responsesBytes)

	lengthsBytes, err := encodeSectionLengths(names, raws)
	if err != nil {
		return wrapPath("section-lengths", err)
	}
	if len(lengthsBytes) >= maxSectionLengthsBytes {
		return newCodecError(KindSectionTableTooLarge, "section-lengths", nil)
	}

	cw := newCountingWriter(w)

	if err := cboring.WriteArrayLength(5, cw); err != nil {
		return newCodecError(KindMalformedCbor, "header", err)
	}
	if err := cboring.WriteByteString(magic[:], cw); err != nil {
		return newCodecError(KindMalformedCbor, "magic", err)
	}
	versionBytes := b.version.Bytes()
	if err := cboring.WriteByteString(versionBytes[:], cw); err != nil {
		return newCodecError(KindMalformedCbor, "version", err)
	}
	if err := cboring.WriteByteString(lengthsBytes, cw); err != nil {
		return newCodecError(KindMalformedCbor, "section-lengths", err)
	}

	if err := cboring.WriteArrayLength(uint64(len(names)), cw); err != nil {
		return newCodecError(KindMalformedCbor, "sections", err)
	}
	for i, raw := range raws {
		if _, err := cw.Write(raw); err != nil {
			return newCodecError(KindMalformedCbor, "sections["+names[i]+"]", err)
		}
	}

	var trailer [8]byte
	binary.BigEndian.PutUint64(trailer[:], uint64(cw.Len())+9)
	if err := cboring.WriteByteString(trailer[:], cw); err != nil {
		return newCodecError(KindMalformedCbor, "length", err)
	}

	return nil
}

// encodeResponses writes every exchange's response as a [headers, body]
// pair into the responses section array, recording each one's byte offset
// and length relative to the start of that section's own CBOR item (the
// bytes beginning at its array-length header).
func (b Bundle) encodeResponses() ([]byte, []indexEntry, error) {
	var buf bytes.Buffer
	if err := cboring.WriteArrayLength(uint64(len(b.exchanges)), &buf); err != nil {
		return nil, nil, newCodecError(KindMalformedCbor, "header", err)
	}

	index := make([]indexEntry, 0, len(b.exchanges))
	for _, ex := range b.exchanges {
		offset := uint64(buf.Len())

		item, err := encodeResponseItem(ex.Response)
		if err != nil {
			return nil, nil, wrapPath(ex.Request.URL, err)
		}
		if _, err := buf.Write(item); err != nil {
			return nil, nil, newCodecError(KindMalformedCbor, ex.Request.URL, err)
		}

		index = append(index, indexEntry{
			url:    ex.Request.URL,
			offset: offset,
			length: uint64(buf.Len()) - offset,
		})
	}

	return buf.Bytes(), index, nil
}

// encodeResponseItem encodes a single response as a 2-element CBOR array:
// a canonical header map, then the body as a byte string.
func encodeResponseItem(resp Response) ([]byte, error) {
	headerBytes, err := encodeResponseHeaders(resp)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := cboring.WriteArrayLength(2, &buf); err != nil {
		return nil, newCodecError(KindMalformedCbor, "header", err)
	}
	if _, err := buf.Write(headerBytes); err != nil {
		return nil, newCodecError(KindMalformedCbor, "headers", err)
	}
	if err := cboring.WriteByteString(resp.Body, &buf); err != nil {
		return nil, newCodecError(KindMalformedCbor, "body", err)
	}
	return buf.Bytes(), nil
}

// encodeResponseHeaders builds the canonical CBOR map for a response's
// headers plus its :status pseudo-header, both keys and values stored as
// byte strings per spec §4.
func encodeResponseHeaders(resp Response) ([]byte, error) {
	pairs := make([]canonicalPair, 0, resp.Headers.Len()+1)

	statusPair, err := encodeHeaderPair(statusPseudoHeader, []byte(strconv.Itoa(resp.Status)))
	if err != nil {
		return nil, wrapPath(statusPseudoHeader, err)
	}
	pairs = append(pairs, statusPair)

	for _, h := range resp.Headers.All() {
		pair, err := encodeHeaderPair(h.Name, h.Value)
		if err != nil {
			return nil, wrapPath(h.Name, err)
		}
		pairs = append(pairs, pair)
	}

	sortCanonicalPairs(pairs)

	var buf bytes.Buffer
	if err := cboring.WriteMapPairLength(uint64(len(pairs)), &buf); err != nil {
		return nil, newCodecError(KindMalformedCbor, "headers", err)
	}
	for _, p := range pairs {
		if _, err := buf.Write(p.key); err != nil {
			return nil, newCodecError(KindMalformedCbor, "headers", err)
		}
		if _, err := buf.Write(p.value); err != nil {
			return nil, newCodecError(KindMalformedCbor, "headers", err)
		}
	}
	return buf.Bytes(), nil
}

func encodeHeaderPair(name string, value []byte) (canonicalPair, error) {
	var keyBuf, valBuf bytes.Buffer
	if err := cboring.WriteByteString([]byte(name), &keyBuf); err != nil {
		return canonicalPair{}, newCodecError(KindMalformedCbor, "", err)
	}
	if err := cboring.WriteByteString(value, &valBuf); err != nil {
		return canonicalPair{}, newCodecError(KindMalformedCbor, "", err)
	}
	return canonicalPair{key: keyBuf.Bytes(), value: valBuf.Bytes()}, nil
}

// encodeIndexSection builds the canonical CBOR map from URL (text string)
// to a 2-element [offset, length] array.
func encodeIndexSection(index []indexEntry) ([]byte, error) {
	pairs := make([]canonicalPair, 0, len(index))
	for _, entry := range index {
		var keyBuf, valBuf bytes.Buffer
		if err := cboring.WriteTextString(entry.url, &keyBuf); err != nil {
			return nil, newCodecError(KindMalformedCbor, entry.url, err)
		}
		if err := cboring.WriteArrayLength(2, &valBuf); err != nil {
			return nil, newCodecError(KindMalformedCbor, entry.url, err)
		}
		if err := cboring.WriteUInt(entry.offset, &valBuf); err != nil {
			return nil, newCodecError(KindMalformedCbor, entry.url, err)
		}
		if err := cboring.WriteUInt(entry.length, &valBuf); err != nil {
			return nil, newCodecError(KindMalformedCbor, entry.url, err)
		}
		pairs = append(pairs, canonicalPair{key: keyBuf.Bytes(), value: valBuf.Bytes()})
	}

	sortCanonicalPairs(pairs)

	var buf bytes.Buffer
	if err := cboring.WriteMapPairLength(uint64(len(pairs)), &buf); err != nil {
		return nil, newCodecError(KindMalformedCbor, "", err)
	}
	for _, p := range pairs {
		buf.Write(p.key)
		buf.Write(p.value)
	}
	return buf.Bytes(), nil
}

func encodePrimarySection(url string) []byte {
	var buf bytes.Buffer
	cboring.WriteTextString(url, &buf)
	return buf.Bytes()
}

// encodeSectionLengths builds the byte-string payload for the
// section-lengths array element: a flat CBOR array alternating section
// name and byte length, [name0, length0, name1, length1, ...].
func encodeSectionLengths(names []string, raws [][]byte) ([]byte, error) {
	var buf bytes.Buffer
	if err := cboring.WriteArrayLength(uint64(2*len(names)), &buf); err != nil {
		return nil, newCodecError(KindMalformedCbor, "", err)
	}
	for i, name := range names {
		if err := cboring.WriteTextString(name, &buf); err != nil {
			return nil, newCodecError(KindMalformedCbor, name, err)
		}
		if err := cboring.WriteUInt(uint64(len(raws[i])), &buf); err != nil {
			return nil, newCodecError(KindMalformedCbor, name, err)
		}
	}
	return buf.Bytes(), nil
}
