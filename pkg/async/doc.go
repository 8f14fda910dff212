// Package async provides safe concurrent execution primitives for background tasks.
//
// SafeGo is used for fire-and-forget work such as support notifications and
// login bookkeeping, where a failure must be logged but never surface to the
// caller. Group runs a small fixed set of independent lookups in parallel,
// for example the usage counters consulted when reporting limits.
package async
