package metrics

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/smallbiznis/rotation/internal/config"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Config configures the metrics provider.
type Config struct {
	Enabled          bool
	ExporterEndpoint string
	ExporterProtocol string
	ServiceName      string
}

func ConfigFrom(cfg config.Config) Config {
	return Config{
		Enabled:          cfg.OtelEnabled,
		ExporterEndpoint: cfg.OtelExporterEndpoint,
		ExporterProtocol: cfg.OtelExporterProtocol,
		ServiceName:      cfg.AppName,
	}
}

// Metrics exposes rotation engine instruments. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	ledgerTransactions metric.Int64Counter
	lockInOutcomes     metric.Int64Counter
	operatorAlerts     metric.Int64Counter
	rateLimitDenied    metric.Int64Counter
	jobTerminal        metric.Int64Counter
}

// NewProvider configures and registers the meter provider.
func NewProvider(lc fx.Lifecycle, cfg Config, log *zap.Logger) (metric.MeterProvider, error) {
	if !cfg.Enabled {
		provider := noop.NewMeterProvider()
		otel.SetMeterProvider(provider)
		return provider, nil
	}

	exporter, err := newExporter(cfg.ExporterProtocol, cfg.ExporterEndpoint)
	if err != nil {
		return nil, err
	}

	reader := sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(10*time.Second))
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	otel.SetMeterProvider(provider)

	if lc != nil {
		lc.Append(fx.Hook{
			OnStop: func(ctx context.Context) error {
				log.Info("shutting down meter provider")
				return provider.Shutdown(ctx)
			},
		})
	}

	log.Info("metrics initialized",
		zap.String("endpoint", cfg.ExporterEndpoint),
		zap.String("protocol", cfg.ExporterProtocol),
	)

	return provider, nil
}

// New configures the domain metrics instruments.
func New(cfg Config, provider metric.MeterProvider) (*Metrics, error) {
	name := strings.TrimSpace(cfg.ServiceName)
	if name == "" {
		name = "rotation"
	}
	meter := provider.Meter(name)

	ledgerTransactions, err := meter.Int64Counter("rotation_ledger_transactions_total")
	if err != nil {
		return nil, err
	}
	lockInOutcomes, err := meter.Int64Counter("rotation_lockin_outcomes_total")
	if err != nil {
		return nil, err
	}
	operatorAlerts, err := meter.Int64Counter("rotation_operator_alerts_total")
	if err != nil {
		return nil, err
	}
	rateLimitDenied, err := meter.Int64Counter("rotation_rate_limit_denied_total")
	if err != nil {
		return nil, err
	}
	jobTerminal, err := meter.Int64Counter("rotation_job_terminal_total")
	if err != nil {
		return nil, err
	}

	return &Metrics{
		ledgerTransactions: ledgerTransactions,
		lockInOutcomes:     lockInOutcomes,
		operatorAlerts:     operatorAlerts,
		rateLimitDenied:    rateLimitDenied,
		jobTerminal:        jobTerminal,
	}, nil
}

// RecordLedgerTransaction counts appended credit transactions by type.
func (m *Metrics) RecordLedgerTransaction(ctx context.Context, txType string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.String("type", strings.TrimSpace(txType)))
	m.ledgerTransactions.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordLockIn counts lock-in decisions by outcome.
func (m *Metrics) RecordLockIn(ctx context.Context, outcome string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.String("outcome", strings.TrimSpace(outcome)))
	m.lockInOutcomes.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordOperatorAlert counts raised operator alerts.
func (m *Metrics) RecordOperatorAlert(ctx context.Context, alertType string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.String("alert_type", strings.TrimSpace(alertType)))
	m.operatorAlerts.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordRateLimitDenied counts refused submissions.
func (m *Metrics) RecordRateLimitDenied(ctx context.Context, reason string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.String("reason", strings.TrimSpace(reason)))
	m.rateLimitDenied.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordJobTerminal counts jobs reaching a terminal status.
func (m *Metrics) RecordJobTerminal(ctx context.Context, status, serviceID string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(
		attribute.String("status", strings.TrimSpace(status)),
		attribute.String("service_id", strings.TrimSpace(serviceID)),
	)
	m.jobTerminal.Add(ctx, 1, metric.WithAttributes(attrs...))
}

func newExporter(protocol, endpoint string) (sdkmetric.Exporter, error) {
	protocol = strings.ToLower(strings.TrimSpace(protocol))
	switch protocol {
	case "http", "http/protobuf":
		opts := []otlpmetrichttp.Option{}
		if endpoint != "" {
			opts = append(opts, otlpmetrichttp.WithEndpoint(endpoint))
		}
		return otlpmetrichttp.New(context.Background(), opts...)
	case "grpc", "grpc/protobuf", "":
		opts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithInsecure()}
		if endpoint != "" {
			opts = append(opts, otlpmetricgrpc.WithEndpoint(endpoint))
		}
		return otlpmetricgrpc.New(context.Background(), opts...)
	default:
		return nil, fmt.Errorf("unsupported OTLP protocol %q", protocol)
	}
}

// user ids never become labels.
var allowedLabelKeys = map[attribute.Key]struct{}{
	"type":       {},
	"outcome":    {},
	"alert_type": {},
	"reason":     {},
	"status":     {},
	"service_id": {},
}

// FilterAttributes strips disallowed labels to keep metrics low-cardinality.
func FilterAttributes(attrs ...attribute.KeyValue) []attribute.KeyValue {
	filtered := make([]attribute.KeyValue, 0, len(attrs))
	for _, attr := range attrs {
		if _, ok := allowedLabelKeys[attr.Key]; !ok {
			continue
		}
		filtered = append(filtered, attr)
	}
	return filtered
}

var Module = fx.Module("metrics",
	fx.Provide(
		ConfigFrom,
		NewProvider,
		New,
	),
)
