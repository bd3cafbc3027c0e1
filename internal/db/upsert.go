package db

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"
)

// Dialect selects the placeholder style of generated SQL.
type Dialect int

const (
	// Postgres uses $1, $2, ... placeholders.
	Postgres Dialect = iota
	// SQLite uses ? placeholders.
	SQLite
)

// UpsertConfig describes a keyed upsert where incoming NULLs never replace
// stored values.
type UpsertConfig struct {
	Table        string   // target table (e.g., "listings")
	Columns      []string // columns being written, in argument order
	ConflictKeys []string // columns forming the unique constraint
	Returning    string   // optional RETURNING expression list

	// InsertDefaults maps a column to the SQL expression a new row gets when
	// the bound value is NULL. Updates still keep the stored value.
	InsertDefaults map[string]string
}

func (cfg UpsertConfig) validate() error {
	if cfg.Table == "" {
		return eris.New("db: upsert: no table specified")
	}
	if len(cfg.Columns) == 0 {
		return eris.New("db: upsert: no columns specified")
	}
	if len(cfg.ConflictKeys) == 0 {
		return eris.New("db: upsert: no conflict keys specified")
	}
	return nil
}

// updateCols returns the non-key columns in declaration order.
func (cfg UpsertConfig) updateCols() []string {
	keys := make(map[string]bool, len(cfg.ConflictKeys))
	for _, k := range cfg.ConflictKeys {
		keys[k] = true
	}
	var out []string
	for _, c := range cfg.Columns {
		if !keys[c] {
			out = append(out, c)
		}
	}
	return out
}

// UpsertSQL builds a single-row INSERT ... ON CONFLICT DO UPDATE statement.
// Each non-key column is assigned COALESCE(excluded.col, table.col), so a
// NULL argument keeps whatever the row already holds.
func UpsertSQL(d Dialect, cfg UpsertConfig) (string, error) {
	if err := cfg.validate(); err != nil {
		return "", err
	}

	placeholders := make([]string, len(cfg.Columns))
	params := make(map[string]string, len(cfg.Columns))
	for i, col := range cfg.Columns {
		ph := Placeholder(d, i+1)
		params[col] = ph
		placeholders[i] = ph
		if def, ok := cfg.InsertDefaults[col]; ok {
			placeholders[i] = fmt.Sprintf("COALESCE(%s, %s)", ph, def)
		}
	}

	sql := fmt.Sprintf(
		"INSERT INTO %s (%s) VALUES (%s) ON CONFLICT (%s) DO UPDATE SET %s",
		sanitizeTable(cfg.Table),
		quoteAndJoin(cfg.Columns),
		strings.Join(placeholders, ", "),
		quoteAndJoin(cfg.ConflictKeys),
		coalesceClauses(cfg.Table, cfg.updateCols(), cfg.defaultedParams(params)),
	)
	if cfg.Returning != "" {
		sql += " RETURNING " + cfg.Returning
	}
	return sql, nil
}

// BulkUpsert stages rows through a temp table with COPY, then merges them
// into the target with the same null-preserving rule as UpsertSQL. It
// reports how many rows were inserted and how many existing rows were
// updated. Any failure rolls back the whole batch; callers that need
// per-row isolation fall back to single-row upserts.
func BulkUpsert(ctx context.Context, pool Pool, cfg UpsertConfig, rows [][]any) (inserted, updated int, err error) {
	if len(rows) == 0 {
		return 0, 0, nil
	}
	if err := cfg.validate(); err != nil {
		return 0, 0, err
	}

	tx, err := pool.Begin(ctx)
	if err != nil {
		return 0, 0, eris.Wrap(err, "db: upsert: begin tx")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	tempTable := fmt.Sprintf("_tmp_upsert_%s", strings.ReplaceAll(cfg.Table, ".", "_"))

	createSQL := fmt.Sprintf(
		"CREATE TEMP TABLE %s (LIKE %s INCLUDING DEFAULTS) ON COMMIT DROP",
		pgx.Identifier{tempTable}.Sanitize(),
		sanitizeTable(cfg.Table),
	)
	if _, err := tx.Exec(ctx, createSQL); err != nil {
		return 0, 0, eris.Wrapf(err, "db: upsert: create temp table for %s", cfg.Table)
	}

	if _, err := tx.CopyFrom(ctx, pgx.Identifier{tempTable}, cfg.Columns, pgx.CopyFromRows(rows)); err != nil {
		return 0, 0, eris.Wrapf(err, "db: upsert: COPY into temp table for %s", cfg.Table)
	}

	colList := quoteAndJoin(cfg.Columns)
	mergeSQL := fmt.Sprintf(
		"INSERT INTO %s (%s) SELECT %s FROM %s ON CONFLICT (%s) DO UPDATE SET %s RETURNING (xmax = 0)",
		sanitizeTable(cfg.Table),
		colList,
		colList,
		pgx.Identifier{tempTable}.Sanitize(),
		quoteAndJoin(cfg.ConflictKeys),
		coalesceClauses(cfg.Table, cfg.updateCols(), nil),
	)

	result, err := tx.Query(ctx, mergeSQL)
	if err != nil {
		return 0, 0, eris.Wrapf(err, "db: upsert: merge into %s", cfg.Table)
	}
	for result.Next() {
		var isInsert bool
		if err := result.Scan(&isInsert); err != nil {
			result.Close()
			return 0, 0, eris.Wrap(err, "db: upsert: scan merge result")
		}
		if isInsert {
			inserted++
		} else {
			updated++
		}
	}
	result.Close()
	if err := result.Err(); err != nil {
		return 0, 0, eris.Wrapf(err, "db: upsert: merge into %s", cfg.Table)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, 0, eris.Wrap(err, "db: upsert: commit tx")
	}
	return inserted, updated, nil
}

// defaultedParams returns the bind placeholder of every column that has an
// insert default.
func (cfg UpsertConfig) defaultedParams(params map[string]string) map[string]string {
	out := make(map[string]string, len(cfg.InsertDefaults))
	for col := range cfg.InsertDefaults {
		if ph, ok := params[col]; ok {
			out[col] = ph
		}
	}
	return out
}

// coalesceClauses renders the DO UPDATE assignments. A column listed in
// params compares the raw bind parameter instead of EXCLUDED, which already
// carries the insert default.
func coalesceClauses(table string, cols []string, params map[string]string) string {
	target := sanitizeTable(table)
	clauses := make([]string, len(cols))
	for i, col := range cols {
		q := pgx.Identifier{col}.Sanitize()
		incoming := "EXCLUDED." + q
		if ph, ok := params[col]; ok {
			incoming = ph
		}
		clauses[i] = fmt.Sprintf("%s = COALESCE(%s, %s.%s)", q, incoming, target, q)
	}
	return strings.Join(clauses, ", ")
}

// Placeholder returns the numbered parameter n. SQLite uses ?NNN so a
// parameter can be referenced twice.
func Placeholder(d Dialect, n int) string {
	if d == SQLite {
		return fmt.Sprintf("?%d", n)
	}
	return fmt.Sprintf("$%d", n)
}

// sanitizeTable handles schema-qualified table names like "rent.listings".
func sanitizeTable(table string) string {
	parts := strings.SplitN(table, ".", 2)
	if len(parts) == 2 {
		return pgx.Identifier{parts[0], parts[1]}.Sanitize()
	}
	return pgx.Identifier{table}.Sanitize()
}

// quoteAndJoin quotes each column name and joins with commas.
func quoteAndJoin(cols []string) string {
	quoted := make([]string, len(cols))
	for i, c := range cols {
		quoted[i] = pgx.Identifier{c}.Sanitize()
	}
	return strings.Join(quoted, ", ")
}
