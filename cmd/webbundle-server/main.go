package main

import (
	"flag"
	"fmt"
	"net/http"

	log "github.com/sirupsen/logrus"

	"github.com/dtn7/go-webbundle/internal/config"
	"github.com/dtn7/go-webbundle/internal/server"
	"github.com/dtn7/go-webbundle/webbundle"
)

func main() {
	configFile := flag.String("config", "", "path to a TOML configuration file")
	verbose := flag.Bool("verbose", false, "raise the log level to debug")
	flag.Parse()

	conf := config.Default()
	if *configFile != "" {
		loaded, err := config.Load(*configFile)
		if err != nil {
			printFatal(err, "Loading configuration errored")
		}
		conf = loaded
	}

	if *verbose || conf.Logging.Level == "debug" {
		log.SetLevel(log.DebugLevel)
	}
	log.SetReportCaller(conf.Logging.ReportCaller)

	version, ok := webbundle.ParseVersionName(conf.Server.Version)
	if !ok {
		printFatal(fmt.Errorf("unknown version %q", conf.Server.Version), "Starting server errored")
	}

	srv, err := server.New(conf.Server.SourceDir, version, conf.Server.CacheDir)
	if err != nil {
		printFatal(err, "Starting server errored")
	}
	defer srv.Close()

	log.WithFields(log.Fields{
		"address": conf.Server.Address,
		"source":  conf.Server.SourceDir,
	}).Info("webbundle-server: listening")

	if err := http.ListenAndServe(conf.Server.Address, srv.Handler()); err != nil {
		printFatal(err, "Serving HTTP errored")
	}
}

func printFatal(err error, msg string) {
	log.WithError(err).Fatal(msg)
}
