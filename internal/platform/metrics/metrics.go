package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus counters for the registry.
type Metrics struct {
	UsersCreated   prometheus.Counter
	CarsRegistered prometheus.Counter
	Transfers      *prometheus.CounterVec
}

// New creates and registers all Prometheus metrics.
func New() *Metrics {
	return &Metrics{
		UsersCreated: promauto.NewCounter(prometheus.CounterOpts{
			Name: "renavam_users_created_total",
			Help: "Total number of users registered",
		}),
		CarsRegistered: promauto.NewCounter(prometheus.CounterOpts{
			Name: "renavam_cars_registered_total",
			Help: "Total number of cars registered",
		}),
		Transfers: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "renavam_transfers_total",
			Help: "Ownership transfer operations by outcome",
		}, []string{"outcome"}), // initiated | completed | rejected
	}
}

func (m *Metrics) IncUsersCreated() {
	if m != nil {
		m.UsersCreated.Inc()
	}
}

func (m *Metrics) IncCarsRegistered() {
	if m != nil {
		m.CarsRegistered.Inc()
	}
}

func (m *Metrics) IncTransfer(outcome string) {
	if m != nil {
		m.Transfers.WithLabelValues(outcome).Inc()
	}
}
