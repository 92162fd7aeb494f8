// Command tftpd is a read-only TFTP (RFC 1350) server. See spec.md /
// SPEC_FULL.md for the protocol engine this wires together; this file
// is everything spec.md §1 calls out as external: argument parsing,
// signal handling, log formatting, and the metrics HTTP listener.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/golang/glog"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"

	"github.com/wjholden/tftpd/internal/metrics"
	"github.com/wjholden/tftpd/internal/tftp"
)

var (
	metricsAddr   = pflag.String("metrics-addr", "", "address to serve Prometheus metrics on (disabled if empty)")
	maxResends    = pflag.Int("max-resends", tftp.MaxResends, "consecutive retransmissions allowed before a session is evicted")
	clientTimeout = pflag.Duration("client-timeout", tftp.ClientTimeout, "idle time before a session is evicted")
	idleTimer     = pflag.Duration("idle-timer", tftp.InactiveTimer, "dispatcher's blocking-wait timeout between packets")
)

func main() {
	// Merge glog's stdlib-flag registrations (-logtostderr, -v, ...)
	// into pflag so both flag styles are parsed from one CLI, the way
	// a program wiring glog alongside pflag usually does.
	pflag.CommandLine.AddGoFlagSet(flag.CommandLine)
	pflag.Parse()

	if pflag.NArg() < 2 {
		fmt.Fprintln(os.Stderr, "usage: tftpd [flags] <port> <root-dir>")
		os.Exit(1)
	}

	port, err := strconv.Atoi(pflag.Arg(0))
	if err != nil || port < 1 || port > 65535 {
		fmt.Fprintf(os.Stderr, "invalid port %q: must be an integer in [1, 65535]\n", pflag.Arg(0))
		os.Exit(1)
	}
	root := pflag.Arg(1)

	if err := run(port, root); err != nil {
		glog.Exit(err)
	}
}

func run(port int, root string) error {
	endpoint, err := tftp.NewUDPEndpoint(port)
	if err != nil {
		return fmt.Errorf("binding UDP port %d: %w", port, err)
	}
	defer endpoint.Close()
	fmt.Printf("Started TFTP server on %s, serving %s\n", endpoint.LocalAddr(), root)

	collector := metrics.NewCollector()

	server := tftp.NewServer(root, endpoint, tftp.NewOSFileSource(), collector)
	server.MaxResends = *maxResends
	server.ClientTimeout = *clientTimeout
	server.IdleTimer = *idleTimer

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	group, ctx := errgroup.WithContext(ctx)

	group.Go(func() error {
		return server.Serve()
	})

	if *metricsAddr != "" {
		registry := prometheus.NewRegistry()
		registry.MustRegister(collector)
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
		httpServer := &http.Server{Addr: *metricsAddr, Handler: mux}

		group.Go(func() error {
			fmt.Printf("Serving metrics on http://%s/metrics\n", *metricsAddr)
			if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		group.Go(func() error {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return httpServer.Shutdown(shutdownCtx)
		})
	}

	group.Go(func() error {
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
		select {
		case <-sig:
			fmt.Println("Shutting down TFTP server...")
			server.Stop()
			cancel()
			return nil
		case <-ctx.Done():
			server.Stop()
			return nil
		}
	})

	return group.Wait()
}
