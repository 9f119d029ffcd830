// Package metrics exposes the connection manager's and serial
// transport's counters and gauges, in the shape
// adnanabbasy-ComX-Bridge/pkg/metrics registers its gateway metrics:
// package-level promauto collectors, one small setter function per
// metric so callers never touch a *prometheus.CounterVec directly.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ReconnectAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "btzen_reconnect_attempts_total",
		Help: "Connect attempts made by the connection manager, per MAC.",
	}, []string{"mac"})

	ConnectFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "btzen_connect_failures_total",
		Help: "Connect attempts that did not result in a connected device.",
	}, []string{"mac"})

	EnableFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "btzen_enable_failures_total",
		Help: "enable() calls that returned an error, per MAC.",
	}, []string{"mac"})

	EnableRetries = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "btzen_enable_retries_total",
		Help: "Times the connection manager retried enabling a MAC's devices after a failure.",
	}, []string{"mac"})

	DevicesConnected = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "btzen_devices_connected",
		Help: "1 while a MAC is connected and enabled, 0 otherwise.",
	}, []string{"mac"})

	SerialCreditStarvation = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "btzen_serial_credit_starvation_total",
		Help: "Times the serial transport had to block awaiting a TX credit before it could write.",
	}, []string{"mac"})
)

// IncReconnectAttempt records one connect attempt for mac.
func IncReconnectAttempt(mac string) { ReconnectAttempts.WithLabelValues(mac).Inc() }

// IncConnectFailure records one failed connect attempt for mac.
func IncConnectFailure(mac string) { ConnectFailures.WithLabelValues(mac).Inc() }

// IncEnableFailure records one failed enableDevices call for mac.
func IncEnableFailure(mac string) { EnableFailures.WithLabelValues(mac).Inc() }

// IncEnableRetry records one enableDevices retry for mac.
func IncEnableRetry(mac string) { EnableRetries.WithLabelValues(mac).Inc() }

// SetConnected records mac's connected gate: 1 when set, 0 when cleared.
func SetConnected(mac string, connected bool) {
	v := 0.0
	if connected {
		v = 1.0
	}
	DevicesConnected.WithLabelValues(mac).Set(v)
}

// IncSerialCreditStarvation records one TX-credit wait on mac's serial transport.
func IncSerialCreditStarvation(mac string) { SerialCreditStarvation.WithLabelValues(mac).Inc() }
