package webbundle

import (
	"fmt"

	"github.com/hashicorp/go-multierror"
)

// Bundle is the top-level, immutable aggregate produced by Builder.Build and
// consumed by Encode, or produced by Parse.
type Bundle struct {
	version    Version
	primaryURL string
	hasPrimary bool
	exchanges  []Exchange
}

// Version returns this Bundle's wire version.
func (b Bundle) Version() Version {
	return b.version
}

// PrimaryURL returns the primary URL and whether one was set.
func (b Bundle) PrimaryURL() (string, bool) {
	return b.primaryURL, b.hasPrimary
}

// Exchanges returns this Bundle's exchanges in their original insertion
// order. The returned slice must not be mutated.
func (b Bundle) Exchanges() []Exchange {
	return b.exchanges
}

// checkValid enforces the Bundle-level invariants from spec §3: unique
// exchange URLs (the index is keyed by URL) and valid per-response header
// names/status.
func (b Bundle) checkValid() (errs error) {
	seen := make(map[string]bool, len(b.exchanges))

	for i, ex := range b.exchanges {
		if err := ex.Response.CheckValid(); err != nil {
			errs = multierror.Append(errs, fmt.Errorf("exchange[%d] (%s): %w", i, ex.Request.URL, err))
		}

		if seen[ex.Request.URL] {
			errs = multierror.Append(errs, fmt.Errorf(
				"exchange[%d]: duplicate URL %q would collide in the index section", i, ex.Request.URL))
		}
		seen[ex.Request.URL] = true
	}

	return
}

func (b Bundle) String() string {
	if b.hasPrimary {
		return fmt.Sprintf("Bundle{version: %v, primary: %q, exchanges: %d}", b.version, b.primaryURL, len(b.exchanges))
	}
	return fmt.Sprintf("Bundle{version: %v, exchanges: %d}", b.version, len(b.exchanges))
}
