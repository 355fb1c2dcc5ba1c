package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"go.uber.org/zap"
)

var (
	// Fetch metrics
	FetchAttempts = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "upwork_fetch_attempts_total",
		Help: "Total number of HTTP attempts against the Upwork API, by result",
	}, []string{"result"})
	FetchRetries = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "upwork_fetch_retries_total",
		Help: "Total number of retryable failures that triggered a backoff sleep",
	})
	FetchExhausted = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "upwork_fetch_exhausted_total",
		Help: "Total number of fetches that ran out of retry attempts",
	})

	// Mail metrics
	MailSendSuccess = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "upwork_mail_send_success_total",
		Help: "Total number of successful mail sends",
	}, []string{"host"})
	MailSendFailure = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "upwork_mail_send_failure_total",
		Help: "Total number of failed mail sends",
	}, []string{"host"})
)

func init() {
	prometheus.MustRegister(FetchAttempts)
	prometheus.MustRegister(FetchRetries)
	prometheus.MustRegister(FetchExhausted)
	prometheus.MustRegister(MailSendSuccess)
	prometheus.MustRegister(MailSendFailure)
}

// LogSummary gathers the default registry and logs every non-zero counter.
// The process is single-shot and serves no scrape endpoint, so the final
// counts are emitted as a log line instead.
func LogSummary(log *zap.SugaredLogger) {
	families, err := prometheus.DefaultGatherer.Gather()
	if err != nil {
		log.Warnw("Failed to gather metrics", "error", err)
		return
	}

	fields := []interface{}{}
	for _, mf := range families {
		if mf.GetType() != dto.MetricType_COUNTER {
			continue
		}
		for _, m := range mf.GetMetric() {
			value := m.GetCounter().GetValue()
			if value == 0 {
				continue
			}
			name := mf.GetName()
			for _, lp := range m.GetLabel() {
				name += "{" + lp.GetName() + "=" + lp.GetValue() + "}"
			}
			fields = append(fields, name, value)
		}
	}
	if len(fields) > 0 {
		log.Infow("Run metrics", fields...)
	}
}
