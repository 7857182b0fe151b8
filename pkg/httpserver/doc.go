// Package httpserver runs the notifier's HTTP listener with graceful
// shutdown and serves liveness and readiness endpoints.
//
//	srv := httpserver.New(cfg, router,
//		httpserver.WithLogger(log),
//		httpserver.WithShutdownHook(gateway.Shutdown),
//	)
//	if err := srv.Run(ctx); err != nil { ... }
package httpserver
