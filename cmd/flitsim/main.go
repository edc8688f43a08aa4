// Command flitsim runs a cycle-accurate interconnection-network
// simulation from a JSON configuration file.
package main

import (
	"fmt"
	"net/http"
	"os"
	"os/signal"

	"github.com/apex/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/bassosimone/flitsim"
)

func main() {
	log.SetLevel(log.InfoLevel)
	if err := newRootCommand().Execute(); err != nil {
		log.WithError(err).Fatal("flitsim")
	}
}

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "flitsim",
		Short: "Cycle-accurate interconnection-network simulator",
	}
	root.AddCommand(newRunCommand())
	root.AddCommand(newValidateCommand())
	return root
}

func newValidateCommand() *cobra.Command {
	var configPath string
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Decode and sanity-check a configuration file without running it",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			topology, err := cfg.NewTopology()
			if err != nil {
				return err
			}
			if _, err := cfg.BuildNetworkSettings(topology, cfg.Simulator.RandomSeed); err != nil {
				return err
			}
			if _, err := cfg.ScriptedApplications(); err != nil {
				return err
			}
			fmt.Println("config OK")
			return nil
		},
	}
	cmd.Flags().StringVar(&configPath, "config", "", "path to the JSON configuration file")
	cobra.CheckErr(cmd.MarkFlagRequired("config"))
	return cmd
}

func newRunCommand() *cobra.Command {
	var configPath string
	var metricsAddr string
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a simulation described by a configuration file",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSimulation(configPath, metricsAddr)
		},
	}
	cmd.Flags().StringVar(&configPath, "config", "", "path to the JSON configuration file")
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "optional host:port to serve Prometheus metrics on after the run completes")
	cobra.CheckErr(cmd.MarkFlagRequired("config"))
	return cmd
}

func loadConfig(path string) (*flitsim.Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening config: %w", err)
	}
	defer f.Close()
	return flitsim.DecodeConfig(f)
}

// apexLogger adapts github.com/apex/log's package-level logger to
// flitsim.Logger, the only place a concrete logging library meets the
// simulator core (flitsim's logger.go: "the core never depends on a
// concrete logging library; cmd/flitsim wires a real one at the
// edges").
type apexLogger struct{}

func (apexLogger) Debugf(format string, v ...any) { log.Debugf(format, v...) }
func (apexLogger) Debug(message string)           { log.Debug(message) }
func (apexLogger) Infof(format string, v ...any)  { log.Infof(format, v...) }
func (apexLogger) Info(message string)            { log.Info(message) }
func (apexLogger) Warnf(format string, v ...any)  { log.Warnf(format, v...) }
func (apexLogger) Warn(message string)            { log.Warn(message) }

var _ flitsim.Logger = apexLogger{}

// runSimulation builds and drives one simulation end to end: decode
// config, assemble the network and workload, run the kernel to
// completion, write the CSV output artifacts spec.md §6 names, and
// optionally serve their final snapshot as Prometheus gauges.
func runSimulation(configPath, metricsAddr string) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}

	clocks := cfg.NewClocksFromConfig()
	kernel := flitsim.NewKernel(clocks)
	reg := cfg.DebugRegistry()
	reg.SetLogger(apexLogger{})

	topology, err := cfg.NewTopology()
	if err != nil {
		return err
	}
	settings, err := cfg.BuildNetworkSettings(topology, cfg.Simulator.RandomSeed)
	if err != nil {
		return err
	}
	net := flitsim.NewNetwork(kernel, reg, "Network", nil, topology, settings)

	messageLog, err := flitsim.NewMessageLog(cfg.Workload.MessageLog.File)
	if err != nil {
		return err
	}
	defer messageLog.Close()
	rateLog, err := flitsim.NewRateLog(cfg.Workload.RateLog.File)
	if err != nil {
		return err
	}
	defer rateLog.Close()
	channelLog, err := flitsim.NewChannelLog(cfg.Workload.ChannelLog.File, cfg.Network.NumVcs)
	if err != nil {
		return err
	}
	defer channelLog.Close()

	apps, err := cfg.ScriptedApplications()
	if err != nil {
		return err
	}
	sink := &flitsim.LoggingSink{Log: messageLog}
	for id := uint32(0); id < net.NumInterfaces(); id++ {
		net.Interface(id).SetMessageReceiver(sink)
	}
	for _, app := range apps {
		app.NewScriptedSource(kernel).Attach(net.Interface(app.Terminal))
	}

	for _, ch := range net.Channels() {
		ch.StartMonitoring()
	}
	for id := uint32(0); id < net.NumInterfaces(); id++ {
		net.Interface(id).StartMonitoring()
	}

	if cfg.Simulator.PrintProgress {
		log.Info("flitsim: running")
	}
	kernel.Run()
	log.Infof("flitsim: run complete at tick %d", kernel.Now().Tick)

	for _, ch := range net.Channels() {
		ch.EndMonitoring()
		channelLog.LogChannel(ch)
	}
	for id := uint32(0); id < net.NumInterfaces(); id++ {
		ifc := net.Interface(id)
		ifc.EndMonitoring()
		supply, injection, delivered, ejection := ifc.Rates()
		rateLog.LogRates(id, ifc.FullName(), supply, injection, delivered, ejection)
	}

	if metricsAddr != "" {
		return serveMetrics(metricsAddr, net)
	}
	return nil
}

// serveMetrics publishes the finished run's per-channel utilization
// and per-terminal rates as Prometheus gauges and blocks serving them
// on metricsAddr until interrupted. A discrete-event batch run has no
// meaningful mid-run progress to export without instrumenting the
// kernel's single-threaded dispatch loop for concurrent reads, so this
// snapshots the completed run rather than updating live.
func serveMetrics(metricsAddr string, net *flitsim.Network) error {
	registry := prometheus.NewRegistry()

	channelUtilization := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "flitsim_channel_utilization",
		Help: "Fraction of channel cycles carrying a flit, by channel and vc (vc=\"all\" for aggregate)",
	}, []string{"channel", "vc"})
	registry.MustRegister(channelUtilization)
	for _, ch := range net.Channels() {
		channelUtilization.WithLabelValues(ch.FullName(), "all").Set(ch.Utilization(flitsim.NoneVC))
	}

	terminalRate := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "flitsim_terminal_flit_rate",
		Help: "Flits per Interface cycle, by terminal and kind (supply|injection|delivered|ejection)",
	}, []string{"terminal", "kind"})
	registry.MustRegister(terminalRate)
	for id := uint32(0); id < net.NumInterfaces(); id++ {
		ifc := net.Interface(id)
		supply, injection, delivered, ejection := ifc.Rates()
		terminalRate.WithLabelValues(ifc.FullName(), "supply").Set(supply)
		terminalRate.WithLabelValues(ifc.FullName(), "injection").Set(injection)
		terminalRate.WithLabelValues(ifc.FullName(), "delivered").Set(delivered)
		terminalRate.WithLabelValues(ifc.FullName(), "ejection").Set(ejection)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	server := &http.Server{Addr: metricsAddr, Handler: mux}

	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt)
	go func() {
		<-done
		_ = server.Close()
	}()

	log.Infof("flitsim: serving metrics on %s until interrupted", metricsAddr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}
