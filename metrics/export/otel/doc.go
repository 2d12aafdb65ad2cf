// Package otel exports sessionkit metrics through an OpenTelemetry meter as
// observable instruments read from the Manager's snapshot on each collection.
package otel
