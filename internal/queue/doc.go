// Package queue persists service tokens in SQLite and is the only code that
// mutates them.
//
// The Store manages the database connection, schema initialization, and the
// atomic primitives the desk composes: count-based sequence numbering backed
// by a UNIQUE (period_key, sequence_number) constraint, a partial unique
// index that allows one live token per owner per period, and compare-and-set
// status updates that only ever move a token forward
// (waiting, serving, done).
//
// Every token query is scoped by a period key, so tokens from earlier
// periods never take part in allocation or dispatch even when they are
// retained for history. Storage failures are wrapped around ErrUnavailable;
// the benign races surface as ErrDuplicateToken and ErrInvalidTransition.
//
// Schema changes bump the version in schema.go; users clear the database to
// adopt the new schema.
package queue
