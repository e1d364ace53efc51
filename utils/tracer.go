package utils

import (
	. "github.com/Luismorlan/picfeed/utils/flag"
	. "github.com/Luismorlan/picfeed/utils/log"
	"gopkg.in/DataDog/dd-trace-go.v1/ddtrace/tracer"
)

func environmentTag() string {
	if !IsDevelopment {
		return "production"
	}
	return "development"
}

// StartTracer starts the Datadog tracer. Spans are created by the gin middleware, and by
// the traced gorm and redis clients for calls made with the request context.
func StartTracer() {
	tracer.Start(
		tracer.WithService(ServiceName),
		tracer.WithEnv(environmentTag()),
	)
	Log.Info("tracer initialized")
}

// Stop tracer, OK to be closed multiple times
func CloseTracer() {
	tracer.Stop()
}
