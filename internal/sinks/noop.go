package sinks

import "lusotown-monitoring/pkg/types"

// NoopCrashSink descarta capturas; usado quando o crash sink está
// desabilitado na configuração
type NoopCrashSink struct{}

// CaptureException descarta a captura
func (NoopCrashSink) CaptureException(err error, opts types.EventOptions) {}

// AddBreadcrumb descarta o breadcrumb
func (NoopCrashSink) AddBreadcrumb(crumb types.Breadcrumb) {}

// NoopAnalyticsSink descarta eventos; usado quando analytics está
// desabilitado na configuração
type NoopAnalyticsSink struct{}

// TrackEvent descarta o evento
func (NoopAnalyticsSink) TrackEvent(name string, props types.Context) {}
