// Package permission defines the per-user capability matrix consulted by
// every admin-facing operation.
//
// The wire form is the nested boolean object the admin UI edits
// ({"user":{"addUser":true},...}); internally each capability maps to a bit
// in a [Mask64] through a fixed registry, and authorization is a single bit
// test. Denial is the default everywhere: unknown capabilities, missing
// categories, and unset flags all deny.
package permission
