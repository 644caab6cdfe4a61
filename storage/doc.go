// Package storage provides implementations of the interfaces.Store
// persistence contract for recovery requests and their audit chains.
//
// Two backends are included:
//
//   - MemoryStore: an in-process store with per-request mutexes. The
//     reference implementation of the locking contract, used by tests.
//   - FileStore: a JSON-file store under a data directory, backing the
//     operator CLI so its commands share state between invocations.
//
// Both serialize mutations per request: MutateRequest runs its function
// under the request's lock against a consistent snapshot and commits the
// mutated request together with the staged audit entries only on success.
// The duplicate-active check for (user, survey) is atomic with request
// creation.
//
// Neither backend is a relational store; a production deployment fronts a
// database offering the same contract (row-level locking, atomic audit
// appends).
package storage
