package index

import (
	"context"
	"fmt"
)

// SymbolHit is one row returned by QuerySymbols.
type SymbolHit struct {
	Name       string `json:"name"`
	Kind       string `json:"kind"`
	Path       string `json:"path"`
	LineStart  int    `json:"line_start"`
	LineEnd    int    `json:"line_end"`
	Signature  string `json:"signature,omitempty"`
	Visibility string `json:"visibility,omitempty"`
}

// RefHit is one row returned by QueryRefs.
type RefHit struct {
	Path     string `json:"path"`
	FromLine int    `json:"from_line"`
	ToName   string `json:"to_name"`
	Kind     string `json:"kind,omitempty"`
}

// QuerySymbols filters by substring on name/file and exact match on kind;
// any empty filter is not applied.
func (s *Store) QuerySymbols(ctx context.Context, nameSubstr, fileSubstr, kind string) ([]SymbolHit, error) {
	query := `SELECT s.name, s.kind, f.path, s.line_start, s.line_end,
		COALESCE(s.signature,''), COALESCE(s.visibility,'')
		FROM symbols s JOIN files f ON f.id = s.file_id WHERE 1=1`
	var args []any
	if nameSubstr != "" {
		query += ` AND s.name LIKE ?`
		args = append(args, "%"+nameSubstr+"%")
	}
	if fileSubstr != "" {
		query += ` AND f.path LIKE ?`
		args = append(args, "%"+fileSubstr+"%")
	}
	if kind != "" {
		query += ` AND s.kind = ?`
		args = append(args, kind)
	}
	query += ` ORDER BY f.path, s.line_start`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("index: query_symbols: %w", err)
	}
	defer rows.Close()

	var hits []SymbolHit
	for rows.Next() {
		var h SymbolHit
		if err := rows.Scan(&h.Name, &h.Kind, &h.Path, &h.LineStart, &h.LineEnd, &h.Signature, &h.Visibility); err != nil {
			return nil, err
		}
		hits = append(hits, h)
	}
	return hits, rows.Err()
}

// QueryRefs filters by substring on to_name; empty filter is not applied.
func (s *Store) QueryRefs(ctx context.Context, toNameSubstr string) ([]RefHit, error) {
	query := `SELECT f.path, r.from_line, r.to_name, COALESCE(r.kind,'')
		FROM refs r JOIN files f ON f.id = r.from_file_id WHERE 1=1`
	var args []any
	if toNameSubstr != "" {
		query += ` AND r.to_name LIKE ?`
		args = append(args, "%"+toNameSubstr+"%")
	}
	query += ` ORDER BY f.path, r.from_line`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("index: query_refs: %w", err)
	}
	defer rows.Close()

	var hits []RefHit
	for rows.Next() {
		var h RefHit
		if err := rows.Scan(&h.Path, &h.FromLine, &h.ToName, &h.Kind); err != nil {
			return nil, err
		}
		hits = append(hits, h)
	}
	return hits, rows.Err()
}
