// Package stores provides the SQLite run journal.
//
// Every CLI run is recorded with a generated ID, the requested units and a
// terminal status. Each finished leaf unit appends a TargetResult through
// the journal's Recorder, which implements engine.Observer. The journal is
// history only: the installed-state oracle never reads it.
//
// The schema is managed with embedded golang-migrate migrations on top of
// the pure-Go modernc.org/sqlite driver.
package stores
