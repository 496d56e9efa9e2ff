// Package api serves every version of a versioned API from a single HTTP listener.
//
// # Overview
//
// Server wraps the routers produced by the routing package. Each request is served by
// the router of the version its client asked for, chosen from a request header:
//
//	server := api.NewServer(versioned, bundle,
//		api.WithVersionHeader("X-API-Version"),
//		api.WithChangelog(cl),
//	)
//	http.ListenAndServe(":8080", server)
//
// # Version Selection
//
// A request without the header is served by the head router. A header holding a
// YYYY-MM-DD date is resolved to the newest declared version that is not after it,
// and that version's date is echoed back in the same response header. Malformed
// dates and dates before the first version are rejected with 400.
//
// # Service Endpoints
//
//   - GET /_rewind/versions: declared versions and the changes they carry;
//     ?hidden=true also lists changes hidden from the changelog
//   - GET /_rewind/changelog?format=json|yaml|markdown: the published changelog
//   - GET /_rewind/openapi.json, /_rewind/openapi.yaml and /_rewind/docs, when WithDocs is set
//   - GET /healthz and GET /readyz: liveness and readiness
//   - GET /metrics: Prometheus metrics, when WithMetrics is set
//
// # Middleware
//
// Requests pass through request ID, logging, panic recovery, optional CORS and
// body size limits. WithTracing wraps the whole server in otelhttp.
package api
