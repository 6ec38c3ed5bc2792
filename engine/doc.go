/*
Package engine runs SQL statements on top of the catalog, the row store and
the bptree indexes.

A DB owns a data directory laid out as

	<dir>/LOCK                   advisory lock held while the DB is open
	<dir>/<database>.db          schema of one database (JSON)
	<dir>/<database>/<t>.data    rows of table t
	<dir>/<database>/<t>.index   fixed-width row records of table t

Indexes are not stored. Open rebuilds them by replaying the live rows of every
table.

Statements run through a Session, which carries the current database chosen
with USE:

	db, err := engine.Open("./data", nil)
	s, err := db.NewSession()
	results, err := s.Exec("USE shop; SELECT * FROM users WHERE id >= 10 LIMIT 5")

SELECT and DELETE pick an access path from the top-level AND chain of the WHERE
clause: an equality on an indexed column is a point lookup, other comparisons
on an indexed column bound a range scan, and anything else scans every row.
The full condition is always evaluated on the candidate rows.

DROP TABLE and DROP DATABASE remove the schema, the row files and the indexes.
*/
package engine
