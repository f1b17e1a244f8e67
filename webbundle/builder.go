package webbundle

import (
	"context"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"runtime"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// Builder assembles a Bundle by method chaining.
//
//	bndl, err := webbundle.NewBuilder().
//	  Version(webbundle.VersionB2).
//	  PrimaryURL("https://example.com/index.html").
//	  Exchange(webbundle.NewExchange("https://example.com/index.html", nil)).
//	  Build()
type Builder struct {
	err error

	version    Version
	hasVersion bool
	primaryURL string
	hasPrimary bool
	exchanges  []Exchange
}

// NewBuilder creates a new, empty Builder.
func NewBuilder() *Builder {
	return &Builder{}
}

// Error returns the Builder's error, if one is present.
func (bldr *Builder) Error() error {
	return bldr.err
}

// Version sets the wire version the Bundle is encoded with. Required.
func (bldr *Builder) Version(v Version) *Builder {
	if bldr.err == nil {
		bldr.version = v
		bldr.hasVersion = true
	}
	return bldr
}

// PrimaryURL sets the bundle's optional primary URL.
func (bldr *Builder) PrimaryURL(url string) *Builder {
	if bldr.err == nil {
		bldr.primaryURL = url
		bldr.hasPrimary = true
	}
	return bldr
}

// Exchange appends a single exchange.
func (bldr *Builder) Exchange(ex Exchange) *Builder {
	if bldr.err == nil {
		bldr.exchanges = append(bldr.exchanges, ex)
	}
	return bldr
}

// Exchanges appends multiple exchanges.
func (bldr *Builder) Exchanges(exs ...Exchange) *Builder {
	if bldr.err == nil {
		bldr.exchanges = append(bldr.exchanges, exs...)
	}
	return bldr
}

// Build creates the Bundle, or returns the first error encountered while
// chaining, or a KindMissingVersion error if Version was never called.
func (bldr *Builder) Build() (Bundle, error) {
	if bldr.err != nil {
		return Bundle{}, bldr.err
	}
	if !bldr.hasVersion {
		return Bundle{}, newCodecError(KindMissingVersion, "build", nil)
	}

	b := Bundle{
		version:    bldr.version,
		primaryURL: bldr.primaryURL,
		hasPrimary: bldr.hasPrimary,
		exchanges:  bldr.exchanges,
	}
	if err := b.checkValid(); err != nil {
		return Bundle{}, wrapPath("build", err)
	}
	return b, nil
}

// ExchangesFromDir walks dir and appends one exchange per regular file,
// reading file contents concurrently. index.html receives the same
// treatment as the original packager: the parent directory URL serves its
// contents, and index.html's own URL redirects to "./" (301). Symlinks are
// skipped with a warning rather than followed.
func (bldr *Builder) ExchangesFromDir(ctx context.Context, dir string) *Builder {
	if bldr.err != nil {
		return bldr
	}

	type found struct {
		url      string
		fullPath string
		isIndex  bool
	}

	var entries []found
	walkErr := filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.Type()&fs.ModeSymlink != 0 {
			log.WithField("path", p).Warn("webbundle: skipping symlink")
			return nil
		}
		if d.IsDir() {
			return nil
		}

		rel, relErr := filepath.Rel(dir, p)
		if relErr != nil {
			return relErr
		}
		rel = filepath.ToSlash(rel)

		if path.Base(rel) == "index.html" {
			parent := path.Dir(rel)
			if parent == "." {
				parent = ""
			}
			entries = append(entries, found{url: parent, fullPath: p, isIndex: true})
			entries = append(entries, found{url: rel, isIndex: false, fullPath: ""})
		} else {
			entries = append(entries, found{url: rel, fullPath: p})
		}
		return nil
	})
	if walkErr != nil {
		bldr.err = newCodecError(KindMalformedCbor, "exchanges-from-dir", walkErr)
		return bldr
	}

	bodies := make([][]byte, len(entries))
	g, gctx := errgroup.WithContext(ctx)
	slots := make(chan struct{}, runtime.GOMAXPROCS(0))
	for i, e := range entries {
		if e.fullPath == "" {
			continue
		}
		i, e := i, e
		g.Go(func() error {
			slots <- struct{}{}
			defer func() { <-slots }()
			select {
			case <-gctx.Done():
				return gctx.Err()
			default:
			}
			body, err := os.ReadFile(e.fullPath)
			if err != nil {
				return err
			}
			bodies[i] = body
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		bldr.err = newCodecError(KindMalformedCbor, "exchanges-from-dir", err)
		return bldr
	}

	for i, e := range entries {
		if e.isIndex {
			ct := guessContentType(e.fullPath)
			bldr.exchanges = append(bldr.exchanges, NewExchangeWithContentType(e.url, bodies[i], ct))
			continue
		}
		if e.fullPath == "" {
			bldr.exchanges = append(bldr.exchanges, NewRedirectExchange(e.url, "./"))
			continue
		}
		ct := guessContentType(e.fullPath)
		bldr.exchanges = append(bldr.exchanges, NewExchangeWithContentType(e.url, bodies[i], ct))
	}

	return bldr
}
