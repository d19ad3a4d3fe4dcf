// Package store houses the RunStore contract and its in-memory reference
// implementation. The supervisor archives every terminal run through this
// interface; choosing a durable backend (Redis, Postgres, object storage,
// etc.) is a wiring-time decision that never touches the orchestration core.
//
// Add additional backends in sub-packages without changing any calling
// code - only the wiring layer decides which implementation to instantiate.
package store
