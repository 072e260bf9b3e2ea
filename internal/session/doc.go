// Package session issues, validates, and revokes the signed session cookie
// that gates every admin operation.
//
// Claims are self-contained: the permission matrix is snapshotted at login
// and never re-read from the record store during validation, so permission
// edits only take effect at the next login. Because the cookie is
// client-held, validation is strict and fails closed — a payload missing the
// numeric id, username, email, or any of the six permission categories is
// treated as unauthenticated, signature notwithstanding.
package session
