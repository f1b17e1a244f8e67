package main

import (
	"fmt"
	"io"
	"os"

	"github.com/dtn7/go-webbundle/webbundle"
)

// readBundleInput reads a bundle from stdin (-) or the given filename.
func readBundleInput(name string) ([]byte, error) {
	if name == "-" {
		return io.ReadAll(os.Stdin)
	}
	return os.ReadFile(name)
}

// listBundle for the "list" CLI option.
func listBundle(args []string) {
	if len(args) != 1 {
		printUsage()
	}

	data, err := readBundleInput(args[0])
	if err != nil {
		printFatal(err, "Reading input errored")
	}

	bndl, err := webbundle.Parse(data)
	if err != nil {
		printFatal(err, "Parsing Bundle errored")
	}

	if url, ok := bndl.PrimaryURL(); ok {
		fmt.Printf("primary: %s\n", url)
	}
	for _, ex := range bndl.Exchanges() {
		fmt.Printf("%d %s (%d bytes)\n", ex.Response.Status, ex.Request.URL, len(ex.Response.Body))
	}
}

// extractBundle for the "extract" CLI option.
func extractBundle(args []string) {
	if len(args) != 2 {
		printUsage()
	}

	data, err := readBundleInput(args[0])
	if err != nil {
		printFatal(err, "Reading input errored")
	}

	bndl, err := webbundle.Parse(data)
	if err != nil {
		printFatal(err, "Parsing Bundle errored")
	}

	url := args[1]
	for _, ex := range bndl.Exchanges() {
		if ex.Request.URL == url {
			if _, err := os.Stdout.Write(ex.Response.Body); err != nil {
				printFatal(err, "Writing body errored")
			}
			return
		}
	}

	printFatal(fmt.Errorf("no such exchange"), "Extracting "+url)
}
