// Package metrics expone métricas Prometheus del gateway: HTTP y decisiones
// del callback router.
package metrics

import (
	"errors"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics agrupa los collectors. Implementa bridge.Observer.
type Metrics struct {
	gatherer prometheus.Gatherer

	authPrefix    string
	knownProvider func(id string) bool

	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	httpInflight        *prometheus.GaugeVec

	callbacksTotal      *prometheus.CounterVec
	failureReportsTotal *prometheus.CounterVec
}

// Config agrupa dependencias para registrar y exponer las métricas.
type Config struct {
	Registerer prometheus.Registerer
	Gatherer   prometheus.Gatherer

	// AuthPrefix y KnownProvider acotan el label path bajo las rutas de login:
	// un id que KnownProvider no reconoce se reporta como :param. Sin prefijo
	// (vacío o "/") no se colapsa nada.
	AuthPrefix    string
	KnownProvider func(id string) bool
}

// New registra los collectors. Si ya estaban registrados reutiliza los existentes.
func New(cfg Config) (*Metrics, error) {
	reg := cfg.Registerer
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := cfg.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}

	m := &Metrics{gatherer: gatherer, knownProvider: cfg.KnownProvider}
	if cfg.AuthPrefix != "" {
		m.authPrefix = strings.TrimSuffix(normalizePath(cfg.AuthPrefix), "/")
	}
	var err error

	if m.httpRequestsTotal, err = registerCollector(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Número total de requests procesadas",
	}, []string{"method", "path", "status"})); err != nil {
		return nil, err
	}

	if m.httpRequestDuration, err = registerCollector(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Latencia de los requests HTTP",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path"})); err != nil {
		return nil, err
	}

	if m.httpInflight, err = registerCollector(reg, prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "http_inflight_requests",
		Help: "Requests en vuelo por método y ruta",
	}, []string{"method", "path"})); err != nil {
		return nil, err
	}

	if m.callbacksTotal, err = registerCollector(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "socialgate_callbacks_total",
		Help: "Callbacks de providers por resultado",
	}, []string{"provider", "outcome"})); err != nil { // outcome: success|redirect|unknown_handler|bad_session|error
		return nil, err
	}

	if m.failureReportsTotal, err = registerCollector(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "socialgate_failure_reports_total",
		Help: "Fallos reportados por el framework delegado",
	}, []string{"provider"})); err != nil {
		return nil, err
	}

	return m, nil
}

// Handler sirve /metrics desde el gatherer configurado.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

func (m *Metrics) ObserveCallback(provider, outcome string) {
	m.callbacksTotal.WithLabelValues(provider, outcome).Inc()
}

func (m *Metrics) ObserveFailureReport(provider string) {
	m.failureReportsTotal.WithLabelValues(provider).Inc()
}

// Middleware instrumenta requests HTTP (contadores, latencia, inflight).
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		method := strings.ToUpper(r.Method)
		pathLabel := m.pathLabel(r.URL.Path)

		m.httpInflight.WithLabelValues(method, pathLabel).Inc()
		start := time.Now()

		rec := &statusRecorder{ResponseWriter: w}
		defer func() {
			m.httpInflight.WithLabelValues(method, pathLabel).Dec()
			m.httpRequestDuration.WithLabelValues(method, pathLabel).Observe(time.Since(start).Seconds())

			status := rec.status
			if status == 0 {
				status = http.StatusOK
			}
			m.httpRequestsTotal.WithLabelValues(method, pathLabel, strconv.Itoa(status)).Inc()
		}()

		next.ServeHTTP(rec, r)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	if s.status == 0 {
		s.status = code
	}
	s.ResponseWriter.WriteHeader(code)
}

func (s *statusRecorder) Write(b []byte) (int, error) {
	if s.status == 0 {
		s.status = http.StatusOK
	}
	return s.ResponseWriter.Write(b)
}

func (s *statusRecorder) Unwrap() http.ResponseWriter { return s.ResponseWriter }

// registerCollector registra c; si ya existe uno igual devuelve el existente.
func registerCollector[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		return c, err
	}
	return c, nil
}

var (
	uuidSegmentRE  = regexp.MustCompile(`^[0-9a-fA-F]{8}-[0-9a-fA-F-]{4}-[0-9a-fA-F-]{4,}$`)
	hexSegmentRE   = regexp.MustCompile(`^[0-9a-fA-F]{16,}$`)
	tokenSegmentRE = regexp.MustCompile(`^[A-Za-z0-9_-]{24,}$`)
)

// normalizePath reemplaza segmentos dinámicos por :param para acotar la cardinalidad.
func normalizePath(p string) string {
	clean := strings.SplitN(p, "?", 2)[0]
	if clean == "" {
		return "/"
	}

	var out []string
	for _, seg := range strings.Split(clean, "/") {
		if seg == "" {
			continue
		}
		if isDynamicSegment(seg) {
			out = append(out, ":param")
		} else {
			out = append(out, strings.ToLower(seg))
		}
	}
	if len(out) == 0 {
		return "/"
	}
	return "/" + strings.Join(out, "/")
}

// pathLabel normaliza p y, bajo AuthPrefix, colapsa ids de provider desconocidos
// y cualquier sufijo distinto de "callback".
func (m *Metrics) pathLabel(p string) string {
	label := normalizePath(p)
	if m.knownProvider == nil || m.authPrefix == "" {
		return label
	}
	rest, ok := strings.CutPrefix(label, m.authPrefix+"/")
	if !ok || rest == "" {
		return label
	}
	id, tail, hasTail := strings.Cut(rest, "/")
	if id != "failure" && id != ":param" && !m.knownProvider(id) {
		id = ":param"
	}
	if hasTail && tail != "callback" {
		tail = ":param"
	}
	out := m.authPrefix + "/" + id
	if hasTail {
		out += "/" + tail
	}
	return out
}

func isDynamicSegment(seg string) bool {
	if len(seg) > 48 {
		return true
	}
	if uuidSegmentRE.MatchString(seg) || hexSegmentRE.MatchString(seg) || tokenSegmentRE.MatchString(seg) {
		return true
	}
	_, err := strconv.Atoi(seg)
	return err == nil
}
