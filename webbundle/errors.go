package webbundle

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorKind classifies a CodecError. Check it with KindOf, or with errors.Is
// against a *CodecError carrying only that Kind, not by inspecting the
// message text.
type ErrorKind int

const (
	// KindMalformedCbor indicates a wrong major type, an indefinite-length
	// container where a definite one was required, or truncated input. It is
	// also the kind given to write errors from the sink, to file system
	// errors in Builder.ExchangesFromDir, and to any error that is not a
	// CodecError when wrapPath wraps it.
	KindMalformedCbor ErrorKind = iota
	// KindBadMagic indicates the 8-byte header magic did not match.
	KindBadMagic
	// KindBadVersion indicates the version byte-string length was not 4.
	KindBadVersion
	// KindSectionTableTooLarge indicates the section-lengths blob was >= 8192 bytes.
	KindSectionTableTooLarge
	// KindDuplicateSection indicates two section-lengths entries shared a name.
	KindDuplicateSection
	// KindMissingResponses indicates the last section was not "responses".
	KindMissingResponses
	// KindSectionCountMismatch indicates the sections array length did not
	// match the number of section-lengths entries.
	KindSectionCountMismatch
	// KindBadIndex indicates an index value array was not length 2, or its
	// offset/length fell outside the responses section.
	KindBadIndex
	// KindBadHeader indicates a non-ASCII or uppercase header name, an
	// unknown pseudo-header, or a missing/duplicate :status.
	KindBadHeader
	// KindUnsupportedVariants indicates a non-empty content-negotiation
	// variant key, which this package never produces and cannot read.
	KindUnsupportedVariants
	// KindCriticalUnknown indicates the critical section demanded a section
	// this package does not implement.
	KindCriticalUnknown
	// KindLegacyTrailingLength indicates the trailing length was encoded as
	// a CBOR unsigned integer instead of raw big-endian bytes.
	KindLegacyTrailingLength
	// KindMissingVersion is returned by Builder.Build when no version was set.
	KindMissingVersion
	// KindHeaderEncoding indicates a header value could not be rendered as
	// ISO-8859-1 bytes.
	KindHeaderEncoding
)

func (k ErrorKind) String() string {
	switch k {
	case KindMalformedCbor:
		return "MalformedCbor"
	case KindBadMagic:
		return "BadMagic"
	case KindBadVersion:
		return "BadVersion"
	case KindSectionTableTooLarge:
		return "SectionTableTooLarge"
	case KindDuplicateSection:
		return "DuplicateSection"
	case KindMissingResponses:
		return "MissingResponses"
	case KindSectionCountMismatch:
		return "SectionCountMismatch"
	case KindBadIndex:
		return "BadIndex"
	case KindBadHeader:
		return "BadHeader"
	case KindUnsupportedVariants:
		return "UnsupportedVariants"
	case KindCriticalUnknown:
		return "CriticalUnknown"
	case KindLegacyTrailingLength:
		return "LegacyTrailingLength"
	case KindMissingVersion:
		return "MissingVersion"
	case KindHeaderEncoding:
		return "HeaderEncoding"
	default:
		return "Unknown"
	}
}

// CodecError is the single error type returned by every fallible operation
// in this package. It carries a Kind for programmatic dispatch (check via
// KindOf, or errors.Is against a *CodecError carrying only the Kind) and a
// breadcrumb Path describing where in the bundle structure the failure
// occurred, e.g. "index > https://example.com/" for a bad index entry.
type CodecError struct {
	Kind ErrorKind
	Path []string
	Err  error
}

func (e *CodecError) Error() string {
	var b strings.Builder
	b.WriteString(e.Kind.String())
	if len(e.Path) > 0 {
		b.WriteString(" at ")
		b.WriteString(strings.Join(e.Path, " > "))
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

func (e *CodecError) Unwrap() error {
	return e.Err
}

// Is allows errors.Is(err, someCodecErrorWithOnlyKindSet) to match by Kind,
// which is how callers are expected to check for a specific failure mode.
func (e *CodecError) Is(target error) bool {
	other, ok := target.(*CodecError)
	if !ok {
		return false
	}
	return other.Kind == e.Kind
}

func newCodecError(kind ErrorKind, breadcrumb string, err error) *CodecError {
	return &CodecError{Kind: kind, Path: []string{breadcrumb}, Err: err}
}

// wrapPath prepends a breadcrumb segment to an existing CodecError, or
// creates a new one if err is not already a CodecError.
func wrapPath(breadcrumb string, err error) error {
	if err == nil {
		return nil
	}

	var ce *CodecError
	if errors.As(err, &ce) {
		wrapped := &CodecError{Kind: ce.Kind, Err: ce.Err}
		wrapped.Path = append([]string{breadcrumb}, ce.Path...)
		return wrapped
	}

	return newCodecError(KindMalformedCbor, breadcrumb, err)
}

// KindOf reports the ErrorKind of err, if err is (or wraps) a *CodecError.
func KindOf(err error) (ErrorKind, bool) {
	var ce *CodecError
	if errors.As(err, &ce) {
		return ce.Kind, true
	}
	return 0, false
}
