package webbundle

import (
	"mime"
	"path/filepath"
	"strings"
)

// NewExchange creates a 200 OK exchange for url with body, guessing its
// Content-Type from the URL's file extension and falling back to
// application/octet-stream.
func NewExchange(url string, body []byte) Exchange {
	return NewExchangeWithContentType(url, body, guessContentType(url))
}

// NewExchangeWithContentType creates a 200 OK exchange for url with body
// and an explicit Content-Type header.
func NewExchangeWithContentType(url string, body []byte, contentType string) Exchange {
	headers := NewHeaders()
	if contentType != "" {
		headers.Set("content-type", []byte(contentType))
	}
	return Exchange{
		Request:  NewRequest(url),
		Response: NewResponse(200, headers, body),
	}
}

// NewRedirectExchange creates a 301 Moved Permanently exchange redirecting
// url to location, with an empty body.
func NewRedirectExchange(url, location string) Exchange {
	headers := NewHeaders()
	headers.Set("location", []byte(location))
	return Exchange{
		Request:  NewRequest(url),
		Response: NewResponse(301, headers, nil),
	}
}

// guessContentType infers a MIME type from name's file extension, used for
// both URL paths and filesystem paths. The ecosystem's original packager
// used a dedicated MIME-sniffing crate; no Go equivalent turned up among
// the retrieved dependencies, so this falls back to the standard library.
func guessContentType(name string) string {
	ext := filepath.Ext(name)
	if ct := mime.TypeByExtension(ext); ct != "" {
		return strings.SplitN(ct, ";", 2)[0]
	}
	return "application/octet-stream"
}
