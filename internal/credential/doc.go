// Package credential compares submitted passwords against stored
// credentials that may be legacy plaintext or the encrypted
// "ivHex:ciphertextHex" form, migrating plaintext lazily on first
// successful match.
//
// The cipher is AES-256-CTR keyed by the SHA-256 of the configured server
// secret with a random per-call IV. The format is fixed by data already in
// the record store; it is reversible on purpose, which is why no one-way
// hash can serve here.
//
// Re-encryption is a fire-and-forget side effect: it runs on a background
// worker and its failure never fails the login that triggered it.
package credential
