// Package coordinator bundles every base-station component into one value
// and supervises its goroutines (§9 design note "Global mutable state", §5).
// One Coordinator is constructed in cmd/basestation's main and owns the
// registry, issue store, pending queue, policy engine, active-task table,
// dispatcher, reconciler, transport listeners, status surface, and both
// loggers as fields — there are no package-level singletons anywhere in this
// module.
package coordinator
