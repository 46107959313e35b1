package sqlstore

import (
	"database/sql"
	"strconv"
	"strings"
)

// Dialect captures what differs between the SQL engines
type Dialect struct {
	Name string

	// Numbered placeholders ($1, $2, ...) instead of ?
	Numbered bool

	// Options for the transaction that reads a whole snapshot
	SnapshotTx *sql.TxOptions
}

var (
	SQLite   = Dialect{Name: "sqlite"}
	Postgres = Dialect{
		Name:       "postgres",
		Numbered:   true,
		SnapshotTx: &sql.TxOptions{Isolation: sql.LevelRepeatableRead, ReadOnly: true},
	}
)

// Rebind rewrites the ? placeholders of query for the dialect
func (d Dialect) Rebind(query string) string {
	if !d.Numbered {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
