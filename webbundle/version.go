package webbundle

import "fmt"

// Version identifies the wire layout generation of a Bundle by its 4-byte
// tag. VersionB2 and Version1 are the recognized tags; any other tag decodes
// as an Unknown version, which is logged as a warning rather than rejected.
// The encoder writes the same section layout for every Version; only the
// tag differs.
type Version struct {
	name  string
	bytes [4]byte
}

// VersionB2 is the current, supported wire layout ("b2").
var VersionB2 = Version{name: "b2", bytes: [4]byte{0x62, 0x32, 0x00, 0x00}}

// Version1 is a historical layout ("1"), recognized for round-trip. Builder
// accepts it like any other Version.
var Version1 = Version{name: "1", bytes: [4]byte{0x31, 0x00, 0x00, 0x00}}

// NewUnknownVersion wraps an unrecognized 4-byte version identifier. Decoding
// an Unknown version is not an error; it is merely flagged.
func NewUnknownVersion(b [4]byte) Version {
	return Version{name: "", bytes: b}
}

// ParseVersionName resolves a configuration-friendly version name ("b2" or
// "1") to its Version value.
func ParseVersionName(name string) (Version, bool) {
	switch name {
	case "b2":
		return VersionB2, true
	case "1":
		return Version1, true
	default:
		return Version{}, false
	}
}

// classifyVersion maps a raw 4-byte identifier to VersionB2, Version1, or an
// Unknown version carrying the original bytes.
func classifyVersion(b [4]byte) Version {
	switch b {
	case VersionB2.bytes:
		return VersionB2
	case Version1.bytes:
		return Version1
	default:
		return NewUnknownVersion(b)
	}
}

// Bytes returns this Version's 4-byte wire identifier.
func (v Version) Bytes() [4]byte {
	return v.bytes
}

// IsUnknown reports whether this Version is neither VersionB2 nor Version1.
func (v Version) IsUnknown() bool {
	return v != VersionB2 && v != Version1
}

func (v Version) String() string {
	if v.name != "" {
		return v.name
	}
	return fmt.Sprintf("unknown(% x)", v.bytes)
}
