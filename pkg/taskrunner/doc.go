// Package taskrunner launches named installation tasks as independent
// goroutines and aggregates their terminal status. The Runner records a
// registry entry per launched handle (name attached as a label, so duplicate
// names can never evict earlier entries), optionally tees each task's output
// streams to per-task log files and the console, and computes an immutable
// RunOutcome once every task has reached a terminal state.
package taskrunner
