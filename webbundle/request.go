package webbundle

import "fmt"

// Request is the request half of an Exchange: a URL and an ordered set of
// headers. Stored bundles typically leave Headers empty, since the wire
// format only persists the URL as the index map key.
type Request struct {
	URL     string
	Headers Headers
}

// NewRequest creates a Request for the given URL with no headers.
func NewRequest(url string) Request {
	return Request{URL: url, Headers: NewHeaders()}
}

func (r Request) String() string {
	return fmt.Sprintf("Request{URL: %q}", r.URL)
}
