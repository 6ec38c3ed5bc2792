// Package catalog holds the schema of every database, the typed values stored
// in rows, and the column indexes built on top of bptree.
//
// Schemas are kept as one JSON document per database. Indexes are in memory
// only and are rebuilt from the stored rows when the engine starts.
package catalog
