// Package audit implements the tamper-evident, hash-chained audit log
// attached to recovery requests.
//
// Every state transition of a recovery request appends one entry. Entries
// belonging to one request form a hash chain: each entry's PreviousHash is
// the EntryHash of its predecessor, and the first entry's PreviousHash is
// the empty string. EntryHash is the hex SHA-256 digest over a canonical,
// order-stable JSON serialization of the entry's content concatenated with
// PreviousHash, so verification is reproducible across implementations.
//
// Appends must ride inside the store's per-request transaction: two
// concurrent appends computing the same PreviousHash would fork the chain.
//
// Verification is a pure function over persisted entries (VerifyEntries)
// usable offline by audit tooling without the state machine; Chain.Verify
// wraps it with a store read. A broken chain is reported, never repaired,
// and does not block reads.
package audit
