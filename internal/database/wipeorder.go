package database

import (
	"context"
	"fmt"
	"sort"
	"strings"
)

const postgresTables = `
SELECT table_name
FROM information_schema.tables
WHERE table_schema = current_schema() AND table_type = 'BASE TABLE'
`

const postgresForeignKeys = `
SELECT DISTINCT tc.table_name, ccu.table_name
FROM information_schema.table_constraints tc
JOIN information_schema.constraint_column_usage ccu
    ON ccu.constraint_name = tc.constraint_name AND ccu.constraint_schema = tc.constraint_schema
WHERE tc.constraint_type = 'FOREIGN KEY' AND tc.table_schema = current_schema()
`

const sqliteTables = `
SELECT name FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite_%'
`

const sqliteForeignKeys = `
SELECT DISTINCT m.name, p."table"
FROM sqlite_master m
JOIN pragma_foreign_key_list(m.name) p
WHERE m.type = 'table'
`

// WipeOrder returns every application table in an order that deletes referencing tables before
// the tables they reference. It is derived from the live schema's foreign keys so new tables are
// picked up without code changes. The goose version table is excluded.
func (d *DB) WipeOrder(ctx context.Context) ([]string, error) {
	tablesQuery, fkQuery := sqliteTables, sqliteForeignKeys
	if d.Engine == EnginePostgres {
		tablesQuery, fkQuery = postgresTables, postgresForeignKeys
	}

	tables, err := d.queryStrings(ctx, tablesQuery)
	if err != nil {
		return nil, fmt.Errorf("failed to list tables: %w", err)
	}

	rows, err := d.SQL.QueryContext(ctx, fkQuery)
	if err != nil {
		return nil, fmt.Errorf("failed to list foreign keys: %w", err)
	}
	defer rows.Close()

	var edges [][2]string
	for rows.Next() {
		var child, parent string
		if err := rows.Scan(&child, &parent); err != nil {
			return nil, fmt.Errorf("failed to read foreign key: %w", err)
		}
		edges = append(edges, [2]string{child, parent})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read foreign keys: %w", err)
	}

	var kept []string
	for _, t := range tables {
		if t != MigrationTable {
			kept = append(kept, t)
		}
	}
	return SortChildrenFirst(kept, edges)
}

// SortChildrenFirst orders tables so each table comes before every table it references.
// edges are (child, parent) pairs; self references and edges to unknown tables are ignored.
// Ties are broken alphabetically so the order is stable.
func SortChildrenFirst(tables []string, edges [][2]string) ([]string, error) {
	known := make(map[string]bool, len(tables))
	for _, t := range tables {
		known[t] = true
	}

	// referencedBy[p] counts the distinct tables still holding rows that point at p
	referencedBy := make(map[string]int, len(tables))
	parents := make(map[string][]string)
	seen := make(map[[2]string]bool)
	for _, e := range edges {
		child, parent := e[0], e[1]
		if child == parent || !known[child] || !known[parent] || seen[e] {
			continue
		}
		seen[e] = true
		referencedBy[parent]++
		parents[child] = append(parents[child], parent)
	}

	var ready []string
	for _, t := range tables {
		if referencedBy[t] == 0 {
			ready = append(ready, t)
		}
	}
	sort.Strings(ready)

	order := make([]string, 0, len(tables))
	for len(ready) > 0 {
		t := ready[0]
		ready = ready[1:]
		order = append(order, t)

		var released []string
		for _, p := range parents[t] {
			referencedBy[p]--
			if referencedBy[p] == 0 {
				released = append(released, p)
			}
		}
		if len(released) > 0 {
			ready = append(ready, released...)
			sort.Strings(ready)
		}
	}

	if len(order) != len(tables) {
		var stuck []string
		for _, t := range tables {
			if referencedBy[t] > 0 {
				stuck = append(stuck, t)
			}
		}
		sort.Strings(stuck)
		return nil, fmt.Errorf("foreign key cycle between tables: %s", strings.Join(stuck, ", "))
	}
	return order, nil
}

// CountRows returns the number of rows in each table.
func (d *DB) CountRows(ctx context.Context, tables []string) (map[string]int64, error) {
	counts := make(map[string]int64, len(tables))
	for _, t := range tables {
		var n int64
		if err := d.SQL.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+QuoteIdent(t)).Scan(&n); err != nil {
			return nil, fmt.Errorf("failed to count rows in %s: %w", t, err)
		}
		counts[t] = n
	}
	return counts, nil
}

// QuoteIdent quotes a table name for use in SQL. Both engines accept double-quoted identifiers.
func QuoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func (d *DB) queryStrings(ctx context.Context, query string) ([]string, error) {
	rows, err := d.SQL.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
