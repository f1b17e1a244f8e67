// Package webbundle provides a library for encoding and decoding Web
// Bundles, a single-file CBOR packaging of a set of HTTP exchanges intended
// to be served as one resource and unpacked by a user agent.
//
// The easiest way to create a new Bundle is to use the Builder.
//
//	bndl, err := webbundle.NewBuilder().
//	  Version(webbundle.VersionB2).
//	  PrimaryURL("https://example.com/index.html").
//	  Exchange(webbundle.NewExchange("https://example.com/index.html", nil)).
//	  Build()
//
// Both encoding and decoding a Bundle into canonical CBOR is supported.
//
//	data, err := bndl.Encode()
//	bndl2, err := webbundle.Parse(data)
package webbundle
