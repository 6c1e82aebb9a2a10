// Package graphstore implements the low-level property storage and
// secondary-index contracts of a graph database storage engine.
//
// Entity properties persist as singly-linked chains of fixed-size records,
// streamed by pooled property cursors that tolerate concurrent deletes of
// later chain records. Secondary indexes plug in behind the accessor
// contract in the index package; the compat package verifies any backend
// against that contract.
package graphstore
