package main

import (
	"flag"
	"fmt"
	"net/http"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dd0wney/beaconforge/pkg/config"
	"github.com/dd0wney/beaconforge/pkg/logging"
	"github.com/dd0wney/beaconforge/pkg/metrics"
	"github.com/dd0wney/beaconforge/pkg/pipeline"
)

func main() {
	configPath := flag.String("config", "", "path to run config YAML")
	day := flag.String("day", "", "override the configured run day (YYYY-MM-DD)")
	metricsAddr := flag.String("metrics-addr", "", "optional address to expose /metrics on during the run")
	flag.Parse()

	if *configPath == "" {
		fmt.Fprintln(os.Stderr, "usage: beaconforge -config run.yaml [-day YYYY-MM-DD]")
		os.Exit(2)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "beaconforge: %v\n", err)
		os.Exit(1)
	}
	if *day != "" {
		cfg.Day = *day
		if err := cfg.Validate(); err != nil {
			fmt.Fprintf(os.Stderr, "beaconforge: %v\n", err)
			os.Exit(1)
		}
	}

	logger := logging.NewJSONLogger(os.Stdout, logging.ParseLevel(cfg.LogLevel))

	registry := prometheus.NewRegistry()
	reg := metrics.NewRegistry(registry)

	if *metricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
		go func() {
			if err := http.ListenAndServe(*metricsAddr, mux); err != nil {
				logger.Warn("metrics listener stopped", logging.Error(err))
			}
		}()
	}

	p := pipeline.New(cfg, logger, reg)
	if err := p.Run(); err != nil {
		os.Exit(1)
	}
}
