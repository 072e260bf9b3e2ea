// Package rate provides the Redis-backed fixed-window limiter and the login
// throttle used by the authentication and OTP flows.
//
// # Window semantics
//
// Fixed-window counters: a capped INCR (Lua) or INCR + conditional EXPIRE on
// the first hit. Key prefixes:
//   - rl: — generic limiter (OTP issuance, per email and per address)
//   - lt: — login throttle (per account identifier and per address)
//
// Counters self-expire at window end; the next attempt starts a fresh window
// at 1. A denied check never pushes a counter past its limit.
//
// # What this package must NOT do
//
//   - Fall back to in-process counting when Redis is unreachable. Limiting
//     fails closed; the caller decides how to surface the outage.
//   - Implement endpoint policy (limits and windows are passed in by callers).
package rate
