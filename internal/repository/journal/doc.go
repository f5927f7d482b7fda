// Package journal implements the SQL event journal: an append-only audit trail
// of every notification the server triggers, readable back by source or condition.
package journal
