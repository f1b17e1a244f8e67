package webbundle

import (
	"bytes"
	"fmt"
	"io"
	"sort"
	"strconv"

	"github.com/dtn7/cboring"
	log "github.com/sirupsen/logrus"
)

// Parse decodes a full Web Bundle from data. It never retains a reference
// to data's backing array past the call: all returned byte slices are
// copies.
func Parse(data []byte) (Bundle, error) {
	r := bytes.NewReader(data)

	topLen, err := cboring.ReadArrayLength(r)
	if err != nil {
		return Bundle{}, newCodecError(KindMalformedCbor, "header", err)
	}
	if topLen != 5 {
		return Bundle{}, newCodecError(KindMalformedCbor, "header",
			fmt.Errorf("top-level array has length %d, want 5", topLen))
	}

	magicBytes, err := cboring.ReadByteString(r)
	if err != nil {
		return Bundle{}, newCodecError(KindMalformedCbor, "magic", err)
	}
	if !bytes.Equal(magicBytes, magic[:]) {
		return Bundle{}, newCodecError(KindBadMagic, "magic",
			fmt.Errorf("got % x", magicBytes))
	}

	versionBytes, err := cboring.ReadByteString(r)
	if err != nil {
		return Bundle{}, newCodecError(KindMalformedCbor, "version", err)
	}
	if len(versionBytes) != 4 {
		return Bundle{}, newCodecError(KindBadVersion, "version",
			fmt.Errorf("version byte string has length %d, want 4", len(versionBytes)))
	}
	var versionArr [4]byte
	copy(versionArr[:], versionBytes)
	version := classifyVersion(versionArr)
	if version.IsUnknown() {
		log.WithField("version", version.String()).Warn("webbundle: unrecognized bundle version")
	}

	lengthsMajor, lengthsLen, err := cboring.ReadMajors(r)
	if err != nil {
		return Bundle{}, newCodecError(KindMalformedCbor, "section-lengths", err)
	}
	if lengthsMajor != cboring.ByteString {
		return Bundle{}, newCodecError(KindMalformedCbor, "section-lengths",
			fmt.Errorf("unexpected major type 0x%X for section-lengths", lengthsMajor))
	}
	if lengthsLen >= maxSectionLengthsBytes {
		return Bundle{}, newCodecError(KindSectionTableTooLarge, "section-lengths", nil)
	}
	lengthsBytes, err := cboring.ReadRawBytes(lengthsLen, r)
	if err != nil {
		return Bundle{}, newCodecError(KindMalformedCbor, "section-lengths", err)
	}

	names, lens, err := decodeSectionLengths(lengthsBytes)
	if err != nil {
		return Bundle{}, wrapPath("section-lengths", err)
	}
	if len(names) == 0 || names[len(names)-1] != responsesSection {
		return Bundle{}, newCodecError(KindMissingResponses, "section-lengths", nil)
	}
	seenNames := make(map[string]bool, len(names))
	for _, name := range names {
		if seenNames[name] {
			return Bundle{}, newCodecError(KindDuplicateSection, name, nil)
		}
		seenNames[name] = true
	}

	sectionsArrLen, err := cboring.ReadArrayLength(r)
	if err != nil {
		return Bundle{}, newCodecError(KindMalformedCbor, "sections", err)
	}
	if sectionsArrLen != uint64(len(names)) {
		return Bundle{}, newCodecError(KindSectionCountMismatch, "sections",
			fmt.Errorf("sections array has %d entries, section-lengths names %d", sectionsArrLen, len(names)))
	}

	raws := make([][]byte, len(names))
	for i, length := range lens {
		buf := make([]byte, length)
		if _, err := io.ReadFull(r, buf); err != nil {
			return Bundle{}, newCodecError(KindMalformedCbor, "sections["+names[i]+"]", err)
		}
		raws[i] = buf
	}

	var (
		primaryURL    string
		hasPrimary    bool
		indexEntries  []indexEntry
		responsesRaw  []byte
		criticalNames []string
		haveCritical  bool
	)

	for i, name := range names {
		switch name {
		case primarySection:
			u, err := decodePrimarySection(raws[i])
			if err != nil {
				return Bundle{}, wrapPath(primarySection, err)
			}
			primaryURL, hasPrimary = u, true

		case indexSection:
			entries, err := decodeIndexSection(raws[i])
			if err != nil {
				return Bundle{}, wrapPath(indexSection, err)
			}
			indexEntries = entries

		case responsesSection:
			responsesRaw = raws[i]

		case criticalSection:
			cn, err := decodeCriticalSection(raws[i])
			if err != nil {
				return Bundle{}, wrapPath(criticalSection, err)
			}
			criticalNames, haveCritical = cn, true

		case legacyManifestSection, legacySignaturesSection:
			log.WithField("section", name).Warn("webbundle: skipping legacy section")

		default:
			log.WithField("section", name).Warn("webbundle: skipping unrecognized section")
		}
	}

	if haveCritical {
		for _, required := range criticalNames {
			switch required {
			case primarySection, indexSection, responsesSection, criticalSection:
				if !seenNames[required] {
					return Bundle{}, newCodecError(KindCriticalUnknown, required, nil)
				}
			default:
				return Bundle{}, newCodecError(KindCriticalUnknown, required, nil)
			}
		}
	}

	// The index section is a canonical CBOR map, so indexEntries arrives
	// sorted by canonical key bytes, not by insertion order. encodeResponses
	// (encoder.go) writes responses strictly in insertion order with
	// strictly increasing offsets, so sorting by offset ascending recovers
	// the original exchange order (spec §5: "Exchange insertion order is
	// preserved exactly through builder -> encode -> decode -> bundle").
	sort.Slice(indexEntries, func(i, j int) bool {
		return indexEntries[i].offset < indexEntries[j].offset
	})

	exchanges := make([]Exchange, 0, len(indexEntries))
	for _, entry := range indexEntries {
		if entry.offset > uint64(len(responsesRaw)) || entry.length > uint64(len(responsesRaw))-entry.offset {
			return Bundle{}, newCodecError(KindBadIndex, entry.url,
				fmt.Errorf("offset %d length %d exceed responses section of %d bytes",
					entry.offset, entry.length, len(responsesRaw)))
		}

		item := responsesRaw[entry.offset : entry.offset+entry.length]
		resp, err := decodeResponseItem(item)
		if err != nil {
			return Bundle{}, wrapPath(entry.url, err)
		}
		exchanges = append(exchanges, Exchange{Request: NewRequest(entry.url), Response: resp})
	}

	if err := decodeTrailer(r); err != nil {
		return Bundle{}, err
	}

	b := Bundle{version: version, primaryURL: primaryURL, hasPrimary: hasPrimary, exchanges: exchanges}
	if err := b.checkValid(); err != nil {
		return Bundle{}, wrapPath("bundle", err)
	}
	return b, nil
}

// decodeTrailer reads the final trailing-length field, which must be an
// 8-byte raw big-endian value, not a CBOR unsigned integer (spec §9's
// legacy encoders wrote it the other way).
func decodeTrailer(r io.Reader) error {
	m, n, err := cboring.ReadMajors(r)
	if err != nil {
		return newCodecError(KindMalformedCbor, "length", err)
	}

	switch m {
	case cboring.ByteString:
		data, err := cboring.ReadRawBytes(n, r)
		if err != nil {
			return newCodecError(KindMalformedCbor, "length", err)
		}
		if len(data) != 8 {
			return newCodecError(KindMalformedCbor, "length",
				fmt.Errorf("trailing length is %d bytes, want 8", len(data)))
		}
		return nil

	case cboring.UInt:
		return newCodecError(KindLegacyTrailingLength, "length",
			fmt.Errorf("trailing length encoded as CBOR uint (%d) instead of 8 raw bytes", n))

	default:
		return newCodecError(KindMalformedCbor, "length",
			fmt.Errorf("unexpected major type 0x%X for trailing length", m))
	}
}

// decodeSectionLengths parses the section-lengths blob: a flat CBOR array
// alternating section name and byte length.
func decodeSectionLengths(raw []byte) ([]string, []uint64, error) {
	r := bytes.NewReader(raw)

	n, err := cboring.ReadArrayLength(r)
	if err != nil {
		return nil, nil, newCodecError(KindMalformedCbor, "", err)
	}
	if n%2 != 0 {
		return nil, nil, newCodecError(KindMalformedCbor, "",
			fmt.Errorf("section-lengths array has odd length %d", n))
	}

	count := n / 2
	names := make([]string, count)
	lens := make([]uint64, count)
	for i := uint64(0); i < count; i++ {
		name, err := cboring.ReadTextString(r)
		if err != nil {
			return nil, nil, newCodecError(KindMalformedCbor, "", err)
		}
		length, err := cboring.ReadUInt(r)
		if err != nil {
			return nil, nil, newCodecError(KindMalformedCbor, name, err)
		}
		names[i] = name
		lens[i] = length
	}
	return names, lens, nil
}

func decodePrimarySection(raw []byte) (string, error) {
	r := bytes.NewReader(raw)
	url, err := cboring.ReadTextString(r)
	if err != nil {
		return "", newCodecError(KindMalformedCbor, "", err)
	}
	return url, nil
}

func decodeCriticalSection(raw []byte) ([]string, error) {
	r := bytes.NewReader(raw)
	n, err := cboring.ReadArrayLength(r)
	if err != nil {
		return nil, newCodecError(KindMalformedCbor, "", err)
	}
	names := make([]string, n)
	for i := uint64(0); i < n; i++ {
		name, err := cboring.ReadTextString(r)
		if err != nil {
			return nil, newCodecError(KindMalformedCbor, "", err)
		}
		names[i] = name
	}
	return names, nil
}

func decodeIndexSection(raw []byte) ([]indexEntry, error) {
	r := bytes.NewReader(raw)

	n, err := cboring.ReadMapPairLength(r)
	if err != nil {
		return nil, newCodecError(KindMalformedCbor, "", err)
	}

	entries := make([]indexEntry, 0, n)
	for i := uint64(0); i < n; i++ {
		url, err := cboring.ReadTextString(r)
		if err != nil {
			return nil, newCodecError(KindMalformedCbor, "", err)
		}

		valLen, err := cboring.ReadArrayLength(r)
		if err != nil {
			return nil, newCodecError(KindBadIndex, url, err)
		}
		if valLen != 2 {
			return nil, newCodecError(KindBadIndex, url,
				fmt.Errorf("index value array has length %d, want 2", valLen))
		}

		offset, err := cboring.ReadUInt(r)
		if err != nil {
			return nil, newCodecError(KindBadIndex, url, err)
		}
		length, err := cboring.ReadUInt(r)
		if err != nil {
			return nil, newCodecError(KindBadIndex, url, err)
		}

		entries = append(entries, indexEntry{url: url, offset: offset, length: length})
	}
	return entries, nil
}

// decodeResponseItem decodes a single [headers, body] response pair.
func decodeResponseItem(raw []byte) (Response, error) {
	r := bytes.NewReader(raw)

	n, err := cboring.ReadArrayLength(r)
	if err != nil {
		return Response{}, newCodecError(KindMalformedCbor, "", err)
	}
	if n != 2 {
		return Response{}, newCodecError(KindMalformedCbor, "",
			fmt.Errorf("response array has length %d, want 2", n))
	}

	status, headers, err := decodeResponseHeaders(r)
	if err != nil {
		return Response{}, err
	}

	body, err := cboring.ReadByteString(r)
	if err != nil {
		return Response{}, newCodecError(KindMalformedCbor, "body", err)
	}

	resp := NewResponse(status, headers, body)
	if err := resp.CheckValid(); err != nil {
		return Response{}, newCodecError(KindBadHeader, "", err)
	}
	return resp, nil
}

// decodeResponseHeaders decodes a response's canonical header map, peeling
// out the mandatory :status pseudo-header.
func decodeResponseHeaders(r io.Reader) (int, Headers, error) {
	n, err := cboring.ReadMapPairLength(r)
	if err != nil {
		return 0, Headers{}, newCodecError(KindMalformedCbor, "headers", err)
	}

	headers := NewHeaders()
	status := 0
	statusSeen := false

	for i := uint64(0); i < n; i++ {
		nameBytes, err := cboring.ReadByteString(r)
		if err != nil {
			return 0, Headers{}, newCodecError(KindMalformedCbor, "headers", err)
		}
		valueBytes, err := cboring.ReadByteString(r)
		if err != nil {
			return 0, Headers{}, newCodecError(KindMalformedCbor, "headers", err)
		}
		name := string(nameBytes)

		if name == statusPseudoHeader {
			if statusSeen {
				return 0, Headers{}, newCodecError(KindBadHeader, statusPseudoHeader,
					fmt.Errorf("duplicate :status pseudo-header"))
			}
			statusVal, convErr := strconv.Atoi(string(valueBytes))
			if convErr != nil {
				return 0, Headers{}, newCodecError(KindBadHeader, statusPseudoHeader, convErr)
			}
			status, statusSeen = statusVal, true
			continue
		}

		if !isLowercaseASCIIHeaderName(name) {
			return 0, Headers{}, newCodecError(KindBadHeader, name,
				fmt.Errorf("header name is not lowercase ASCII"))
		}
		headers.Set(name, valueBytes)
	}

	if !statusSeen {
		return 0, Headers{}, newCodecError(KindBadHeader, statusPseudoHeader,
			fmt.Errorf("missing required :status pseudo-header"))
	}

	return status, headers, nil
}
