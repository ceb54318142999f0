// Package executor runs GraphQL operations breadth-first against a Runtime.
//
// # Sync and async fields
//
// Every schema field is either a projection of its parent value
// (schema.Field.Async == false) or resolver-backed (Async == true).
// Projections are resolved immediately through Runtime.ResolveSync and their
// object values are expanded in place, so a chain of projections never costs
// an extra round trip. Resolver-backed fields are queued instead.
//
// # Depth batching
//
// After the synchronous frontier of a depth is exhausted, all queued fields
// are handed to Runtime.BatchResolveAsync in a single call. Completing those
// results may expand further projections and queue the next depth's
// resolver-backed fields. For an operation whose deepest chain contains d
// resolver-backed fields, BatchResolveAsync is called exactly d times.
//
//	depth 0: Query.entry (async)            -> batch #1
//	depth 1: Entry.title (sync), Entry.breadcrumbs (async) -> batch #2
//	depth 2: Breadcrumb.title (sync)
//
// # Nulls and errors
//
// Errors are collected as located GraphQLError values and execution continues
// with the remaining fields. A null in a Non-Null position nulls the nearest
// nullable ancestor (the whole data object when none exists). Queued fields
// beneath a nulled position are dropped before the next batch, so the runtime
// never resolves work whose result could not be observed.
//
// # Fragments
//
// Inline fragments and fragment spreads apply when their type condition is
// the concrete object type or an interface or union that contains it.
package executor
