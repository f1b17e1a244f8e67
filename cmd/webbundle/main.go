package main

import (
	"fmt"
	"os"
)

// printUsage of webbundle and exit with an error code afterwards.
func printUsage() {
	_, _ = fmt.Fprintf(os.Stderr, "Usage of %s create|list|extract:\n\n", os.Args[0])

	_, _ = fmt.Fprintf(os.Stderr, "%s create directory -|filename\n", os.Args[0])
	_, _ = fmt.Fprintf(os.Stderr, "  Packages directory as a Web Bundle, writing it to stdout (-) or filename.\n\n")

	_, _ = fmt.Fprintf(os.Stderr, "%s list -|filename\n", os.Args[0])
	_, _ = fmt.Fprintf(os.Stderr, "  Lists the exchange URLs contained in a bundle read from stdin (-) or filename.\n\n")

	_, _ = fmt.Fprintf(os.Stderr, "%s extract -|filename url\n", os.Args[0])
	_, _ = fmt.Fprintf(os.Stderr, "  Writes the response body for url to stdout.\n\n")

	os.Exit(1)
}

// printFatal of an error with a short context description and exits afterwards.
func printFatal(err error, msg string) {
	_, _ = fmt.Fprintf(os.Stderr, "%s errored: %s: %v\n", os.Args[0], msg, err)
	os.Exit(1)
}

func main() {
	if len(os.Args) < 2 {
		printUsage()
	}

	switch os.Args[1] {
	case "create":
		createBundle(os.Args[2:])

	case "list":
		listBundle(os.Args[2:])

	case "extract":
		extractBundle(os.Args[2:])

	default:
		printUsage()
	}
}
