// Package ratelimiter implements a token bucket limiter with pluggable state
// storage. MemoryStore serves a single process; RedisStore runs the refill and
// consume step as one Lua script so several notifier instances can share a
// budget.
//
// The REST surface limits requests per authenticated user through
// Middleware, and the realtime gateway limits client-initiated socket frames
// per connection by calling Bucket.Allow directly.
package ratelimiter
