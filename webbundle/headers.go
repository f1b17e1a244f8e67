package webbundle

// Header is a single lowercase-ASCII header name paired with its raw value
// bytes.
type Header struct {
	Name  string
	Value []byte
}

// Headers is an ordered mapping from lowercase ASCII header name to header
// value bytes. Insertion order is whatever the caller (or the decoder, which
// always yields canonical CBOR key order) produced it in; it is NOT
// preserved across an encode/decode round-trip, since encoding re-sorts by
// canonical CBOR key order (spec §5).
type Headers struct {
	entries []Header
}

// NewHeaders returns an empty Headers.
func NewHeaders() Headers {
	return Headers{}
}

// Set appends or replaces a header. name is stored as given, without case
// folding; Response.CheckValid rejects names that are not lowercase ASCII.
func (h *Headers) Set(name string, value []byte) {
	for i := range h.entries {
		if h.entries[i].Name == name {
			h.entries[i].Value = value
			return
		}
	}
	h.entries = append(h.entries, Header{Name: name, Value: value})
}

// Get returns the value for name and whether it was present.
func (h Headers) Get(name string) ([]byte, bool) {
	for _, e := range h.entries {
		if e.Name == name {
			return e.Value, true
		}
	}
	return nil, false
}

// Len returns the number of headers.
func (h Headers) Len() int {
	return len(h.entries)
}

// All returns the headers in their current order. The returned slice must
// not be mutated.
func (h Headers) All() []Header {
	return h.entries
}

// Equal reports whether h and other contain the same set of header
// name/value pairs, disregarding order (used by round-trip tests, since
// header order is not a wire guarantee).
func (h Headers) Equal(other Headers) bool {
	if len(h.entries) != len(other.entries) {
		return false
	}
	for _, e := range h.entries {
		v, ok := other.Get(e.Name)
		if !ok || string(v) != string(e.Value) {
			return false
		}
	}
	return true
}
