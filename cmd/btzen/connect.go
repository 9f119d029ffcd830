package main

import (
	"net/http"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/wrobell/btzen"
	"github.com/wrobell/btzen/internal/config"
)

func newConnectCmd() *cobra.Command {
	var (
		metricsAddr string
		verbose     bool
	)

	cmd := &cobra.Command{
		Use:   "connect <manifest.yaml>",
		Short: "Open a session for every device in a manifest and idle until interrupted",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			log := logrus.StandardLogger()
			if verbose {
				log.SetLevel(logrus.DebugLevel)
			}

			manifest, err := config.Load(args[0])
			if err != nil {
				return err
			}
			devices, err := manifest.Descriptors()
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			session, err := btzen.Connect(ctx, devices, manifest.Adapter, log)
			if err != nil {
				return err
			}
			defer session.Close()

			if metricsAddr != "" {
				mux := http.NewServeMux()
				mux.Handle("/metrics", promhttp.Handler())
				server := &http.Server{Addr: metricsAddr, Handler: mux}
				go func() {
					if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
						log.WithError(err).Warn("btzen: metrics server stopped")
					}
				}()
				defer server.Close()
				log.Infof("btzen: serving metrics on %s", metricsAddr)
			}

			log.Infof("btzen: session open on %s with %d device(s), ctrl-c to stop", manifest.Adapter, len(devices))
			<-ctx.Done()
			return nil
		},
	}

	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "address to serve /metrics on (disabled if empty)")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	return cmd
}
