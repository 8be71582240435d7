// Package conc provides composable structured concurrency for Go.
// A Conc value describes a tree of independently scheduled tasks combined
// by AND-nodes (all branches must succeed) and OR-nodes (branches race,
// first success wins); Run evaluates the tree and guarantees that every
// task it spawned has finished or been cancelled and drained before it
// returns, on every exit path.
package conc
