// Command healthcheck probes the MolDetect health endpoint.
//
// Default mode performs a single probe and exits 0/1, for container
// HEALTHCHECK wiring (the container runtime supplies interval, start
// period and retry budget). With -wait it polls with the full
// interval / grace / failure-threshold semantics and exits once the
// service is healthy, or non-zero when the failure budget is spent —
// the launcher uses this to block until the service is ready.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	log "github.com/sirupsen/logrus"

	"moldetect-service/internal/config"
	"moldetect-service/internal/probe"
)

func main() {
	wait := flag.Bool("wait", false, "poll until healthy instead of probing once")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})

	if !*wait {
		if err := probe.Probe(context.Background(), cfg.Probe.URL, cfg.Probe.Timeout); err != nil {
			fmt.Fprintf(os.Stderr, "unhealthy: %v\n", err)
			os.Exit(1)
		}
		fmt.Println("healthy")
		return
	}

	if err := waitHealthy(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
	fmt.Println("healthy")
}

func waitHealthy(cfg *config.Config) error {
	supervisor := probe.NewSupervisor(cfg.Probe.URL, probe.Config{
		Interval:         cfg.Probe.Interval,
		Timeout:          cfg.Probe.Timeout,
		StartPeriod:      cfg.Probe.StartPeriod,
		FailureThreshold: cfg.Probe.Retries,
	}, nil)

	// Budget: the grace window plus one probe per retry.
	budget := cfg.Probe.StartPeriod + cfg.Probe.Interval*time.Duration(cfg.Probe.Retries+1)
	ctx, cancel := context.WithTimeout(context.Background(), budget)
	defer cancel()

	go supervisor.Run(ctx)

	if err := supervisor.WaitHealthy(ctx); err != nil {
		return fmt.Errorf("service did not become healthy within %s: %w", budget, err)
	}
	return nil
}
