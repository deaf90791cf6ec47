package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/tristanseifert/lichtenstein-client/internal/backend"
	"github.com/tristanseifert/lichtenstein-client/internal/config"
	"github.com/tristanseifert/lichtenstein-client/internal/metrics"
	"github.com/tristanseifert/lichtenstein-client/internal/node"
	"github.com/tristanseifert/lichtenstein-client/internal/output"
	"github.com/tristanseifert/lichtenstein-client/internal/protocol"
)

// softwareVersion and hardwareVersion are reported in NODE_ANNOUNCEMENT
// payloads. Both are fixed at 1 in this source.
var (
	softwareVersion uint32 = 1
	hardwareVersion uint32 = 1
)

const metricsAddr = ":9420"

func main() {
	configPath := flag.String("config", "/etc/lichtenstein/client.ini", "path to the client's INI config file")
	flag.Parse()

	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.WithError(err).Fatal("failed to load configuration")
	}

	ident, err := node.DiscoverIdentity(cfg.Client.AdvertiseAddress, cfg.Client.Listen)
	if err != nil {
		log.WithError(err).Fatal("failed to discover host identity")
	}

	state := node.New()
	entry := log.WithField("instance", state.InstanceID.String())
	entry.WithFields(logrus.Fields{
		"mac":      ident.MAC.String(),
		"ip":       ident.IPv4.String(),
		"hostname": ident.Hostname,
	}).Info("host identity discovered")

	hw, err := backend.DefaultRegistry.Build(cfg.Output.Backend)
	if err != nil {
		entry.WithError(err).Fatal("failed to build output backend")
	}

	sendConn, err := protocol.OpenSendSocket()
	if err != nil {
		entry.WithError(err).Fatal("failed to open egress socket")
	}
	sink := protocol.NewAckSink(sendConn, state, entry)

	worker := output.New(cfg.Output.FbSize, hw, sink, 64, entry)
	go worker.Run()

	handler, err := protocol.New(cfg, protocol.Config{
		SoftwareVersion:     softwareVersion,
		HardwareVersion:     hardwareVersion,
		AnnouncementInitial: cfg.Client.AnnouncementIntervalInitial,
		AnnouncementSteady:  cfg.Client.AnnouncementInterval,
	}, ident, state, worker, sendConn, entry)
	if err != nil {
		entry.WithError(err).Fatal("failed to start protocol handler")
	}
	go handler.Run()

	collector := metrics.New(state, worker, prometheus.Labels{"hostname": ident.Hostname})
	prometheus.MustRegister(collector)
	http.Handle("/metrics", promhttp.Handler())
	metricsServer := &http.Server{Addr: metricsAddr}
	go func() {
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			entry.WithError(err).Warn("metrics server stopped unexpectedly")
		}
	}()

	entry.WithField("port", cfg.Client.Port).Info("lichtenstein-client running")

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	entry.Info("shutting down")
	handler.Shutdown()
	worker.Shutdown()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = metricsServer.Shutdown(shutdownCtx)

	entry.Info("shutdown complete")
}
