package services

import (
	"context"
	"time"

	"github.com/yungbote/skillforge-backend/internal/clients/rabbitmq"
	domainanalytics "github.com/yungbote/skillforge-backend/internal/domain/analytics"
	"github.com/yungbote/skillforge-backend/internal/observability"
)

// InstrumentProgressTracker counts every outcome and completion of next.
// A nil metrics registry returns next unchanged.
func InstrumentProgressTracker(next ProgressTracker, m *observability.Metrics) ProgressTracker {
	if next == nil || m == nil {
		return next
	}
	return &instrumentedTracker{next: next, metrics: m}
}

type instrumentedTracker struct {
	next    ProgressTracker
	metrics *observability.Metrics
}

func (t *instrumentedTracker) Apply(ctx context.Context, trig ProgressTrigger) ProgressOutcome {
	out := t.next.Apply(ctx, trig)
	t.metrics.IncProgressOutcome(string(trig.Source), string(out.Status), out.Reason())
	if out.CourseCompleted {
		t.metrics.IncCourseCompleted(string(trig.Source))
	}
	return out
}

// InstrumentSink observes chat stream events on their way to next.
func InstrumentSink(next AnalyticsSink, m *observability.Metrics) AnalyticsSink {
	if next == nil || m == nil {
		return next
	}
	return &instrumentedSink{next: next, metrics: m}
}

type instrumentedSink struct {
	next    AnalyticsSink
	metrics *observability.Metrics
}

func (s *instrumentedSink) Track(ctx context.Context, ev TrackEvent) error {
	if ev.EventType == domainanalytics.EventTypeChat {
		status := ""
		switch ev.EventName {
		case eventChatStreamCompleted:
			status = "complete"
		case eventChatStreamFailed:
			status = "failed"
		}
		if status != "" {
			var ms int64
			if v, ok := ev.Properties["durationMs"].(int64); ok {
				ms = v
			}
			s.metrics.ObserveChatStream(status, time.Duration(ms)*time.Millisecond)
		}
	}
	return s.next.Track(ctx, ev)
}

// InstrumentExporter counts export results of next.
func InstrumentExporter(next EventExporter, m *observability.Metrics) EventExporter {
	if next == nil || m == nil {
		return next
	}
	return &instrumentedExporter{next: next, metrics: m}
}

type instrumentedExporter struct {
	next    EventExporter
	metrics *observability.Metrics
}

func (e *instrumentedExporter) PublishEvent(ctx context.Context, msg rabbitmq.EventMessage) error {
	err := e.next.PublishEvent(ctx, msg)
	if err != nil {
		e.metrics.IncAnalyticsExport("error")
		return err
	}
	e.metrics.IncAnalyticsExport("ok")
	return nil
}
