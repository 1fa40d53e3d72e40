package otelhelper

import (
	"errors"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

func SetError(span trace.Span, err error, attrs ...attribute.KeyValue) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	span.AddEvent("error_occurred", trace.WithAttributes(
		attrs...,
	))
}

// RecordRunStatus stamps the terminal run status on a workflow span; failed
// runs are marked as span errors.
func RecordRunStatus(span trace.Span, status, errMessage string) {
	span.SetAttributes(attribute.String("cockpit.run.status", status))

	if errMessage != "" {
		SetError(span, errors.New(errMessage))

		return
	}

	span.SetStatus(codes.Ok, status)
}
