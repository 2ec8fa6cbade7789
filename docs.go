// Package stowage implements the repository pattern with a staged-mutation
// transaction model: Add and Delete only stage operations, and no read
// observes them until Commit folds the staged list into the committed store.
//
// Every backend implements the exact same Repository contract, so test code
// and production code are interchangeable: the in-memory implementation is
// both a lightweight production backend and the fixture for testing code
// written against the abstraction. TestSuite is the executable form of that
// promise and is run against every backend shipped here.
//
// Entities are plain value-comparable structs implementing Entity. The
// repository stores them by value and never mutates them; a later change to
// the caller's copy does not leak into the committed store.
package stowage
