// Package memstore keeps entities in process memory and gives callers
// all-or-nothing mutation through a UnitOfWork.
//
// A UnitOfWork that begins a transaction copies the committed map, applies
// every write to that copy, and on commit swaps the copy in as the new
// committed map with a single assignment. Discarding the copy is the whole of
// rollback.
//
// Concurrent transactions: each transaction snapshots the store on Begin.
// Without serialization two overlapping transactions both commit, and the
// later commit replaces the map the earlier one installed; the earlier
// transaction's writes are lost with no error (last committer wins). A store
// built with WithSerializedTransactions(true) holds one mutex from Begin until
// commit or rollback, and idle-path writes made through a UnitOfWork take the
// same mutex, so no write can be lost. A goroutine that already holds a
// transaction on a serialized store must not begin another on it.
package memstore
