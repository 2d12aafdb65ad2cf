// Package internaldefs holds the shared metric definitions used by the otel
// and prometheus exporters. It is internal wiring; applications import the
// exporter packages, not this one.
package internaldefs
