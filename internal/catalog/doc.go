// Package catalog is a small SQLite-backed stand-in for a storage system's
// catalog: collections, data objects and per-resource replicas with status
// codes. It backs the simcat testbed client so scenario matrices can run
// without a real deployment.
//
// There is no placement policy and no data movement. Operations only
// update catalog rows, enforcing the few rules scenarios depend on, such as
// refusing to replicate without a good source replica.
package catalog
