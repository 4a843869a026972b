package metrics

import (
	"errors"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Métricas de auth, chat y HTTP. Viven en un paquete propio para que auth,
// events y http las usen sin importarse entre sí.

var (
	HTTPRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "chatpal_http_requests_total",
		Help: "Requests HTTP por ruta, método y status",
	}, []string{"method", "route", "status"})

	HTTPLatency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "chatpal_http_request_duration_seconds",
		Help:    "Latencia de requests HTTP",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route"})

	SignIns = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "chatpal_auth_signins_total",
		Help: "Intentos de login por provider y resultado",
	}, []string{"provider", "outcome"})

	AuthEvents = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "chatpal_auth_events_total",
		Help: "Eventos publicados en el bus de sesión",
	}, []string{"event"})

	AuthState = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "chatpal_auth_state",
		Help: "Estado actual del orquestador (1 = activo)",
	}, []string{"state"})

	ChatReplies = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "chatpal_chat_replies_total",
		Help: "Respuestas del chat por resultado (ok, fallback, mock)",
	}, []string{"outcome"})

	ChatLatency = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "chatpal_chat_reply_duration_seconds",
		Help:    "Latencia de generación de respuestas",
		Buckets: prometheus.ExponentialBuckets(0.05, 2, 10),
	})
)

func collectors() []prometheus.Collector {
	return []prometheus.Collector{
		HTTPRequests, HTTPLatency, SignIns, AuthEvents, AuthState, ChatReplies, ChatLatency,
	}
}

// Register registers every collector on reg (or the default registerer if nil).
func Register(reg prometheus.Registerer) error {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	for _, c := range collectors() {
		if err := reg.Register(c); err != nil {
			var are prometheus.AlreadyRegisteredError
			if !errors.As(err, &are) {
				return err
			}
		}
	}
	return nil
}

// ObserveHTTP records one finished request.
func ObserveHTTP(method, route string, status int, took time.Duration) {
	HTTPRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	HTTPLatency.WithLabelValues(method, route).Observe(took.Seconds())
}

// SetAuthState marks state as the only active one among states.
func SetAuthState(state string, states ...string) {
	for _, s := range states {
		v := 0.0
		if s == state {
			v = 1
		}
		AuthState.WithLabelValues(s).Set(v)
	}
}

// ObserveChat records one chat reply.
func ObserveChat(outcome string, took time.Duration) {
	ChatReplies.WithLabelValues(outcome).Inc()
	ChatLatency.Observe(took.Seconds())
}
