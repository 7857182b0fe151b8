// Package requestid tags every HTTP request with a correlation identifier
// and exposes it to handlers and structured logs.
package requestid
