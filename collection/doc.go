// Package collection keeps the named similarity indexes of a database.
//
// A collection indexes one column of a base table, named schema.table.column,
// and is configured with an option string such as
// "type=hnsw,dim=3,metric=l2,M=16,ef=200". The Registry builds collections
// from their base tables, refreshes them through a tracking column, and
// saves or reopens them through a snapshot.Store. Concurrent builds of the
// same name share one execution, and a running build never blocks searches.
package collection
