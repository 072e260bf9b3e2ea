// Package otp issues and verifies the one-time codes used by email
// verification and the OTP login flow.
//
// Codes are 6-digit numeric strings drawn uniformly from 100000–999999,
// stored in Redis with a fixed 10-minute TTL. At most one live code exists
// per email: issuing a new code overwrites the previous one. Verification is
// single-use and atomic (Lua GET → compare → DEL in one round trip).
//
// A failed verification never reveals whether a code was issued at all:
// wrong code, absent code, and expired code all produce the same result.
package otp
