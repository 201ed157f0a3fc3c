// Package store is the SQLite sync journal.
//
// Each sync attempt is written as pending before the procedure call and
// finished with its outcome afterwards; nothing else is ever updated.
// Reads order by seq, the insertion counter. instruction_hash is the
// canonical hash of the procedure arguments, which lets a repeated
// submission of the same instruction set be found with CountByHash.
//
// Finished attempts can be pruned by age. Pending attempts are kept: they
// mark calls whose outcome was never recorded.
//
// The journal runs in WAL mode with synchronous=NORMAL and a busy timeout
// (DefaultBusyTimeout unless WithBusyTimeout is given). Schema upgrades
// are numbered migrations tracked in PRAGMA user_version.
package store
