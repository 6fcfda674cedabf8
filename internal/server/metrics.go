package server

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

const namespace = "alertdesk"

type metrics struct {
	requests  *prometheus.CounterVec
	mutations *prometheus.CounterVec
	testSends *prometheus.CounterVec
	instances prometheus.Gauge
}

func newMetrics(reg prometheus.Registerer) *metrics {
	m := &metrics{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests by route, method and status code.",
		}, []string{"route", "method", "code"}),
		mutations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "mutations_total",
			Help:      "Alert instance mutations by action and result.",
		}, []string{"action", "result"}),
		testSends: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "test_sends_total",
			Help:      "Test messages by alert instance type and result.",
		}, []string{"type", "result"}),
		instances: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "instances",
			Help:      "Number of alert instances returned by the last listing.",
		}),
	}
	reg.MustRegister(m.requests, m.mutations, m.testSends, m.instances)
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	return m
}

func result(err error) string {
	if err != nil {
		return "failure"
	}
	return "success"
}
