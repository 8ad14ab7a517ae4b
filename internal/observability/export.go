package observability

import (
	"context"
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
)

// Exporter hands the metrics of a finished run to Prometheus. A cron job
// exits before any scrape, so metrics are pushed to a Pushgateway and/or
// written to a node_exporter textfile.
type Exporter struct {
	Gatherer prometheus.Gatherer
	// Job is the Pushgateway job label, e.g. "wrf_watcher".
	Job      string
	PushURL  string
	Textfile string
}

// Enabled reports whether any export target is configured.
func (e Exporter) Enabled() bool { return e.PushURL != "" || e.Textfile != "" }

// Export writes to every configured target and joins their errors.
func (e Exporter) Export(ctx context.Context) error {
	var errs []error
	if e.PushURL != "" {
		err := push.New(e.PushURL, e.Job).Gatherer(e.Gatherer).PushContext(ctx)
		if err != nil {
			errs = append(errs, fmt.Errorf("push metrics: %w", err))
		}
	}
	if e.Textfile != "" {
		if err := prometheus.WriteToTextfile(e.Textfile, e.Gatherer); err != nil {
			errs = append(errs, fmt.Errorf("write metrics textfile: %w", err))
		}
	}
	return errors.Join(errs...)
}
