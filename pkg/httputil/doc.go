// Package httputil provides the JSON response helpers, request decoding and
// middleware shared by the versioned routers and the admin endpoints.
//
// # Responses
//
// Every error body uses the same envelope:
//
//	httputil.WriteDetail(w, http.StatusConflict, "user already exists")
//	// {"detail":"user already exists"}
//
// WriteBody writes a pre-encoded payload and derives Content-Length from it,
// which keeps the header correct after a response body was migrated.
//
// # Middleware
//
//	handler := httputil.Chain(router,
//		httputil.RequestIDMiddleware,
//		httputil.LoggingMiddleware(logger),
//		httputil.RecoveryMiddleware(logger),
//	)
package httputil
