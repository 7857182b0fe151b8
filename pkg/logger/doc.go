// Package logger builds *slog.Logger instances with functional options and
// provides attribute helpers so that key names stay consistent across the
// notification store, the realtime gateway and the HTTP surface.
//
// New wraps the chosen text or JSON handler with LogHandlerDecorator, which
// runs every registered ContextExtractor (request id, environment) before a
// record is written.
//
//	log := logger.New(
//	    logger.WithEnvironment(environment.Production, "campus-notifier"),
//	    logger.WithContextExtractors(requestid.LoggerExtractor()),
//	)
//	log.InfoContext(ctx, "notification created",
//	    logger.UserID(n.UserID),
//	    logger.NotificationID(n.ID),
//	)
//
// Helpers such as Error, UserID and ConnectionID return an empty attribute
// for zero values, so callers do not need nil checks.
package logger
