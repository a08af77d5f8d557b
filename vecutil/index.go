package vecutil

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/viant/myvector/collection"
	"github.com/viant/myvector/search"
)

// Index provides a text-in, ids-out API over a base table column indexed by
// a registry collection. Writes go to the base table; keeping the index in
// step is left to the vecsync triggers or a registry refresh.
type Index struct {
	DB   *sqlx.DB
	Name collection.Name
	// IDColumn is the INTEGER key of the base table.
	IDColumn string
	// ContentColumn optionally stores the embedded text next to the vector.
	ContentColumn string
	// SearchTable is a myvector_search virtual table used for queries.
	SearchTable string
	Embed       EmbedFunc
}

// NewIndex constructs an Index over name ("schema.table.column").
func NewIndex(db *sqlx.DB, name, idColumn, searchTable string, embed EmbedFunc) (*Index, error) {
	if db == nil {
		return nil, fmt.Errorf("vecutil: db is nil")
	}
	if embed == nil {
		return nil, fmt.Errorf("vecutil: EmbedFunc is nil")
	}
	n, err := collection.ParseName(name)
	if err != nil {
		return nil, err
	}
	for _, col := range []string{idColumn, searchTable} {
		if err := collection.CheckColumn(col); err != nil {
			return nil, err
		}
	}
	return &Index{DB: db, Name: n, IDColumn: idColumn, SearchTable: searchTable, Embed: embed}, nil
}

// WithContent returns a copy of ix that also writes the embedded text to col.
func (ix *Index) WithContent(col string) (*Index, error) {
	if err := collection.CheckColumn(col); err != nil {
		return nil, err
	}
	dup := *ix
	dup.ContentColumn = col
	return &dup, nil
}

// Document is a row to embed and store.
type Document struct {
	ID      int64
	Content string
}

// Match is a single similarity search hit.
type Match struct {
	ID       int64   `db:"id"`
	Distance float64 `db:"distance"`
	Content  string  `db:"-"`
}

// UpsertDocumentsText embeds each document and upserts it into the base
// table in one transaction.
func (ix *Index) UpsertDocumentsText(ctx context.Context, docs []Document) error {
	if len(docs) == 0 {
		return nil
	}
	stmt := fmt.Sprintf(`INSERT INTO %[1]s(%[2]s, %[3]s) VALUES (?, ?)
ON CONFLICT(%[2]s) DO UPDATE SET %[3]s = excluded.%[3]s`, ix.Name.Source(), ix.IDColumn, ix.Name.Column)
	if ix.ContentColumn != "" {
		stmt = fmt.Sprintf(`INSERT INTO %[1]s(%[2]s, %[3]s, %[4]s) VALUES (?, ?, ?)
ON CONFLICT(%[2]s) DO UPDATE SET %[3]s = excluded.%[3]s, %[4]s = excluded.%[4]s`, ix.Name.Source(), ix.IDColumn, ix.Name.Column, ix.ContentColumn)
	}
	tx, err := ix.DB.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()
	for _, d := range docs {
		blob, err := EmbedValue(ctx, ix.Embed, d.Content)
		if err != nil {
			return fmt.Errorf("vecutil: embed %d: %w", d.ID, err)
		}
		args := []any{d.ID, blob}
		if ix.ContentColumn != "" {
			args = append(args, d.Content)
		}
		if _, err := tx.ExecContext(ctx, stmt, args...); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// DeleteDocuments removes rows with the given ids from the base table.
func (ix *Index) DeleteDocuments(ctx context.Context, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	query, args, err := sqlx.In(fmt.Sprintf("DELETE FROM %s WHERE %s IN (?)", ix.Name.Source(), ix.IDColumn), ids)
	if err != nil {
		return err
	}
	_, err = ix.DB.ExecContext(ctx, ix.DB.Rebind(query), args...)
	return err
}

// QueryText embeds query and returns its k nearest rows through the search
// virtual table. k <= 0 uses the table's default.
func (ix *Index) QueryText(ctx context.Context, query string, k int) ([]Match, error) {
	blob, err := EmbedValue(ctx, ix.Embed, query)
	if err != nil {
		return nil, err
	}
	stmt := fmt.Sprintf("SELECT id, distance FROM %s WHERE name = ? AND query MATCH ?", ix.SearchTable)
	args := []any{ix.Name.String(), blob}
	if k > 0 {
		stmt += " AND k = ?"
		args = append(args, k)
	}
	var out []Match
	if err := ix.DB.SelectContext(ctx, &out, stmt, args...); err != nil {
		return nil, fmt.Errorf("vecutil: %s: %w", search.ModuleName, err)
	}
	if ix.ContentColumn == "" || len(out) == 0 {
		return out, nil
	}
	lookup := fmt.Sprintf("SELECT %s FROM %s WHERE %s = ?", ix.ContentColumn, ix.Name.Source(), ix.IDColumn)
	for i := range out {
		var content *string
		if err := ix.DB.GetContext(ctx, &content, lookup, out[i].ID); err != nil {
			return nil, err
		}
		if content != nil {
			out[i].Content = *content
		}
	}
	return out, nil
}
