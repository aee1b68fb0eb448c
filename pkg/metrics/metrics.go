package metrics

import (
	"context"
)

// RecordEvent records a custom event when ctx carries an application
func RecordEvent(ctx context.Context, eventName string, kvPairs map[string]interface{}) {
	if app, ok := FromContext(ctx); ok {
		app.RecordCustomEvent(eventName, kvPairs)
	}
}

// RecordCount records a custom metric when ctx carries an application
func RecordCount(ctx context.Context, metricName string, count uint64) {
	if app, ok := FromContext(ctx); ok {
		app.RecordCustomMetric(metricName, float64(count))
	}
}
