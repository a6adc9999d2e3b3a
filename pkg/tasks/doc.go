// Package tasks is the task runtime that executes the units built by the
// engine. Leaf tasks wrap a function; parallel groups run their children on
// an errgroup and fail fast; series groups run children in order and stop at
// the first failure. Every unit is registered by its dotted name so a single
// phase or target can be run on its own.
package tasks
