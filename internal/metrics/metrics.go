// Package metrics exposes pipeline counters through OpenTelemetry instruments.
// A no-op meter provider keeps all call sites safe when no exporter is wired.
package metrics

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var (
	meter = otel.Meter("github.com/kavach-labs/kavach")

	fragmentsProcessed metric.Int64Counter
	threatsDetected    metric.Int64Counter
	personaTurns       metric.Int64Counter
	packagesAssembled  metric.Int64Counter
	classifierFailures metric.Int64Counter
)

func init() {
	fragmentsProcessed, _ = meter.Int64Counter("kavach.fragments.processed",
		metric.WithDescription("Transcript fragments folded into session scores"))
	threatsDetected, _ = meter.Int64Counter("kavach.threats.detected",
		metric.WithDescription("Edge-triggered ThreatDetected transitions"))
	personaTurns, _ = meter.Int64Counter("kavach.persona.turns",
		metric.WithDescription("Persona replies produced during hand-off"))
	packagesAssembled, _ = meter.Int64Counter("kavach.evidence.packages",
		metric.WithDescription("Evidence packages assembled and signed"))
	classifierFailures, _ = meter.Int64Counter("kavach.classifier.failures",
		metric.WithDescription("External classifier calls that timed out or failed"))
}

// FragmentProcessed counts one scored fragment.
func FragmentProcessed(ctx context.Context) {
	fragmentsProcessed.Add(ctx, 1)
}

// ThreatDetected counts one ThreatDetected transition at the given level.
func ThreatDetected(ctx context.Context, level string) {
	threatsDetected.Add(ctx, 1, metric.WithAttributes(attribute.String("level", level)))
}

// PersonaTurn counts one persona reply for the given persona.
func PersonaTurn(ctx context.Context, personaID string) {
	personaTurns.Add(ctx, 1, metric.WithAttributes(attribute.String("persona", personaID)))
}

// PackageAssembled counts one signed evidence package.
func PackageAssembled(ctx context.Context) {
	packagesAssembled.Add(ctx, 1)
}

// ClassifierFailure counts one degraded classifier call.
func ClassifierFailure(ctx context.Context) {
	classifierFailures.Add(ctx, 1)
}
