// Package notifier exposes the notification core over HTTP: the per-user
// REST API, admin announcements, the realtime WebSocket endpoint and the
// operational endpoints.
//
// Every /api route requires a bearer token. Responses use one envelope:
//
//	{"data": ..., "meta": {...}, "error": {"code": "not_found", "message": "..."}}
//
// Domain errors map to statuses as follows: not found 404, foreign
// ownership 403, invalid input 422, bad credentials 401, throttled 429.
package notifier
