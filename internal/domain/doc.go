// Package domain defines the core business types for the listsync service.
//
// Types in this package are pure value objects with no transport or storage
// concerns. They are the shared language between the sync engine, the
// exporters, the repositories, and the HTTP handlers.
//
// Rules for this package:
//   - No imports from other internal/ packages
//   - No *sql.DB, no http.Request, no context.Context in struct fields
//   - JSON/DB tags are allowed (they're metadata, not behavior)
//   - Small pure methods on the types are allowed
package domain
