// Package config loads the pakit configuration file.
//
// The file is YAML. Every key is optional; absent keys keep the values of
// Default. Unknown keys are an error so a typo never silently falls back to
// a default.
//
//	logging:
//	  level: debug
//	  format: json
//	tracing:
//	  enabled: true
//	  exporter: otlp
//	  endpoint: localhost:4317
//	metrics:
//	  textfile: /var/lib/node_exporter/pakit.prom
//	pack:
//	  ignore_missing_data_sources: true
//	validate:
//	  strict: true
//	  debounce: 250ms
//
// Struct tags are checked with go-playground/validator after decoding.
package config
