package cmd

import (
	"fmt"
	"net"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/CraigKelly/grais/sampler"
)

type monitor struct {
	addr     string
	registry *prometheus.Registry
	stopped  chan struct{}
	server   *http.Server
	listener net.Listener

	BatchSize     prometheus.Gauge
	Intermediate  prometheus.Gauge
	Window        prometheus.Gauge
	MaxPasses     prometheus.Gauge
	RunTime       prometheus.Gauge
	TotalSamples  prometheus.Counter
	Passes        prometheus.Counter
	LogZ          prometheus.Gauge
	ESS           prometheus.Gauge
	FiniteSamples prometheus.Gauge
	Drift         prometheus.Gauge
	Accept        *prometheus.GaugeVec
	StepSize      *prometheus.GaugeVec
}

func newMonitor(addr string, runID string) *monitor {
	reg := prometheus.NewRegistry()
	factory := promauto.With(prometheus.WrapRegistererWith(prometheus.Labels{"run": runID}, reg))

	gauge := func(name, help string) prometheus.Gauge {
		return factory.NewGauge(prometheus.GaugeOpts{Namespace: "grais", Name: name, Help: help})
	}
	counter := func(name, help string) prometheus.Counter {
		return factory.NewCounter(prometheus.CounterOpts{Namespace: "grais", Name: name, Help: help})
	}

	return &monitor{
		addr:     addr,
		registry: reg,

		BatchSize:     gauge("batch_size", "Particles per annealing pass"),
		Intermediate:  gauge("intermediate_distributions", "Intermediate distributions in the schedule"),
		Window:        gauge("convergence_window", "Passes in the convergence window"),
		MaxPasses:     gauge("max_passes", "Maximum recorded passes"),
		RunTime:       gauge("run_time_seconds", "Seconds since sampling started"),
		TotalSamples:  counter("samples_total", "Weighted samples produced"),
		Passes:        counter("passes_total", "Recorded annealing passes"),
		LogZ:          gauge("log_z", "Last log normalizer estimate"),
		ESS:           gauge("ess", "Last normalized effective sample size"),
		FiniteSamples: gauge("finite_samples", "Samples with a finite weight in the last pass"),
		Drift:         gauge("log_z_drift", "Standardized drift between halves of the log_z window"),
		Accept: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "grais", Name: "accept_rate", Help: "Last acceptance rate per intermediate distribution",
		}, []string{"dist"}),
		StepSize: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "grais", Name: "step_size", Help: "Mean step size used per intermediate distribution",
		}, []string{"dist"}),
	}
}

// Record updates the gauges from a pass
func (m *monitor) Record(res sampler.Result, drift float64, batchSize int, nInter int) {
	m.Passes.Inc()
	m.TotalSamples.Add(float64(batchSize))
	m.LogZ.Set(res.Diag["log_z"])
	m.ESS.Set(res.Diag["ess_ais"])
	m.FiniteSamples.Set(res.Diag["n_finite_ais_samples"])
	m.Drift.Set(drift)
	for k := 1; k <= nInter; k++ {
		dist := strconv.Itoa(k)
		m.Accept.WithLabelValues(dist).Set(res.Diag[sampler.DistKey(k, "accept")])
		m.StepSize.WithLabelValues(dist).Set(res.Diag[sampler.DistKey(k, "step_size")])
	}
}

// Handler serves the registry in the Prometheus text format
func (m *monitor) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Start begins the monitor
func (m *monitor) Start() error {
	if m.server != nil {
		return errors.Errorf("BUG: You may only start the process monitor once")
	}

	ln, err := net.Listen("tcp", m.addr)
	if err != nil {
		return errors.Wrapf(err, "Could not listen on %s", m.addr)
	}
	m.listener = ln

	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/metrics", http.StatusTemporaryRedirect)
	})

	m.stopped = make(chan struct{})
	m.server = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	// Actual server that will close the stopped channel on exit
	go func() {
		defer close(m.stopped)
		m.server.Serve(ln)
	}()

	fmt.Fprintf(os.Stderr, "HTTP now available at %v (see /metrics)\n", ln.Addr())
	return nil
}

// Stop shuts the HTTP server down
func (m *monitor) Stop() {
	if m.server == nil {
		return
	}

	m.server.Close()

	select {
	case <-m.stopped:
		fmt.Fprintf(os.Stderr, "HTTP Info Stopped\n")
	case <-time.After(2 * time.Second):
		fmt.Fprintf(os.Stderr, "HTTP would NOT stop: just continuing on\n")
	}
}
