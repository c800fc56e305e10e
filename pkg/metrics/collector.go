package metrics

import "github.com/prometheus/client_golang/prometheus"

// SessionStats is the slice of the session a collector scrapes.
// Implemented by the session manager.
type SessionStats interface {
	Stats() (workflows, nodes, links int)
}

// SessionCollector exports point-in-time gauges for one session manager.
// Gauges are computed at scrape time, so there is nothing to keep in sync
// during mutations.
type SessionCollector struct {
	stats     SessionStats
	workflows *prometheus.Desc
	nodes     *prometheus.Desc
	links     *prometheus.Desc
}

// NewSessionCollector builds a collector over stats. Register it with
// prometheus.MustRegister.
func NewSessionCollector(stats SessionStats) *SessionCollector {
	return &SessionCollector{
		stats:     stats,
		workflows: prometheus.NewDesc("loom_workflows", "Number of workflows in the session", nil, nil),
		nodes:     prometheus.NewDesc("loom_nodes", "Total nodes across all workflows", nil, nil),
		links:     prometheus.NewDesc("loom_links", "Total links across all workflows", nil, nil),
	}
}

// Describe implements prometheus.Collector.
func (c *SessionCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.workflows
	ch <- c.nodes
	ch <- c.links
}

// Collect implements prometheus.Collector.
func (c *SessionCollector) Collect(ch chan<- prometheus.Metric) {
	workflows, nodes, links := c.stats.Stats()
	ch <- prometheus.MustNewConstMetric(c.workflows, prometheus.GaugeValue, float64(workflows))
	ch <- prometheus.MustNewConstMetric(c.nodes, prometheus.GaugeValue, float64(nodes))
	ch <- prometheus.MustNewConstMetric(c.links, prometheus.GaugeValue, float64(links))
}
