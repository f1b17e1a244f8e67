package main

import (
	"context"
	"os"

	"github.com/dtn7/go-webbundle/webbundle"
)

// createBundle for the "create" CLI option.
func createBundle(args []string) {
	if len(args) != 2 {
		printUsage()
	}

	var (
		sourceDir = args[0]
		outName   = args[1]

		err error
		f   *os.File
	)

	bndl, err := webbundle.NewBuilder().
		Version(webbundle.VersionB2).
		ExchangesFromDir(context.Background(), sourceDir).
		Build()
	if err != nil {
		printFatal(err, "Building Bundle errored")
	}

	if outName == "-" {
		f = os.Stdout
	} else if f, err = os.Create(outName); err != nil {
		printFatal(err, "Creating file errored")
	}

	if err = bndl.WriteTo(f); err != nil {
		printFatal(err, "Writing Bundle errored")
	}
	if f != os.Stdout {
		if err = f.Close(); err != nil {
			printFatal(err, "Closing file errored")
		}
	}
}
