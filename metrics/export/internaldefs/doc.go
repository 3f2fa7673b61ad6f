// Package internaldefs exposes the stable metric name and bucket definitions
// shared by exporter implementations.
//
// Counter and histogram definitions live here so that the Prometheus and
// OTel exporters emit identical metric names and bucket boundaries. A change
// here affects every exporter at once.
package internaldefs
