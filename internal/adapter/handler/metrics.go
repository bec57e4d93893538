package handler

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/opencirc/circulation/internal/core/service"
)

var operationsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "circulation_operations_total",
		Help: "Business operations by outcome.",
	},
	[]string{"op", "outcome"},
)

func observe(op string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = kindLabel(service.KindOf(err))
	}
	operationsTotal.WithLabelValues(op, outcome).Inc()
}
