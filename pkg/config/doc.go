// Package config loads the server configuration.
//
// # Overview
//
// Values are layered: DefaultConfig, then an optional YAML file, then
// environment variables. Validate runs last and reports every problem at once.
//
// Server settings:
//
//	REWIND_HOST="0.0.0.0"
//	REWIND_PORT="8080"
//	REWIND_READ_TIMEOUT="15s"
//	REWIND_WRITE_TIMEOUT="15s"
//	REWIND_SHUTDOWN_TIMEOUT="30s"
//	REWIND_MAX_BODY_BYTES="1048576"
//	REWIND_CORS_ORIGINS="https://app.example.com,https://admin.example.com"
//
// Versioning settings:
//
//	REWIND_VERSION_HEADER="X-API-Version"
//	REWIND_PLAN_CACHE_SIZE="1024"  # 0 disables the migration plan cache
//	REWIND_PLAN_CACHE_TTL="10m"
//
// Observability settings:
//
//	REWIND_LOG_LEVEL="info"  # debug, info, warn, error
//	REWIND_METRICS_ENABLED="true"
//	REWIND_OTEL_ENABLED="true"
//	REWIND_OTEL_ENDPOINT="otel-collector:4317"
//	REWIND_OTEL_SAMPLE_RATIO="0.25"
//
// The same settings in a file named by REWIND_CONFIG_FILE:
//
//	server:
//	  port: "9000"
//	versioning:
//	  header: X-Version
//	observability:
//	  otel:
//	    enabled: true
//	    endpoint: otel-collector:4317
package config
