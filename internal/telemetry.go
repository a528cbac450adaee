package internal

import (
	"context"
	"sync"
)

// telemetry.go
// Hook layer for build metrics. Service wiring may register an emitter
// (an OpenTelemetry meter or a test stub) with RegisterTelemetryEmitter.
// The default emitter drops every measurement.

// TelemetryEmitter receives one named measurement.
type TelemetryEmitter func(ctx context.Context, name string, labels map[string]string, value any)

var (
	teleMu   sync.Mutex
	teleImpl TelemetryEmitter = func(ctx context.Context, name string, labels map[string]string, value any) {}
)

// RegisterTelemetryEmitter installs fn. A nil fn restores the no-op emitter.
func RegisterTelemetryEmitter(fn TelemetryEmitter) {
	teleMu.Lock()
	defer teleMu.Unlock()
	if fn == nil {
		teleImpl = func(ctx context.Context, name string, labels map[string]string, value any) {}
		return
	}
	teleImpl = fn
}

func emitter() TelemetryEmitter {
	teleMu.Lock()
	defer teleMu.Unlock()
	return teleImpl
}

// EmitBuildLatency records build latency in milliseconds.
// name: "appforge_build_latency_ms" with label {"outcome": "success"|"failure"|"rejected"}
func EmitBuildLatency(ctx context.Context, outcome string, ms int64) {
	emitter()(ctx, "appforge_build_latency_ms", map[string]string{"outcome": outcome}, ms)
}

// EmitFragmentCount records how many references were rendered in one build.
// name: "appforge_build_fragments"
func EmitFragmentCount(ctx context.Context, fragments int) {
	emitter()(ctx, "appforge_build_fragments", map[string]string{}, int64(fragments))
}

// EmitRenderFailure counts render failures per pattern.
// name: "appforge_render_failures" with label {"pattern": "<id>"}
func EmitRenderFailure(ctx context.Context, patternID string) {
	emitter()(ctx, "appforge_render_failures", map[string]string{"pattern": patternID}, int64(1))
}
