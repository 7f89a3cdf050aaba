package index

import "context"

// Status is the shape returned by index_status: {files, symbols, refs,
// per-lang counts, active|empty} (spec §4.13).
type Status struct {
	Files   int            `json:"files"`
	Symbols int            `json:"symbols"`
	Refs    int            `json:"refs"`
	PerLang map[string]int `json:"per_lang"`
	Active  bool           `json:"active"`
}

func (s *Store) Status(ctx context.Context) (*Status, error) {
	st := &Status{PerLang: map[string]int{}}

	if err := s.db.QueryRowContext(ctx, `SELECT count(*) FROM files`).Scan(&st.Files); err != nil {
		return nil, err
	}
	if err := s.db.QueryRowContext(ctx, `SELECT count(*) FROM symbols`).Scan(&st.Symbols); err != nil {
		return nil, err
	}
	if err := s.db.QueryRowContext(ctx, `SELECT count(*) FROM refs`).Scan(&st.Refs); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `SELECT lang, count(*) FROM files GROUP BY lang`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var lang string
		var count int
		if err := rows.Scan(&lang, &count); err != nil {
			return nil, err
		}
		st.PerLang[lang] = count
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	st.Active = st.Files > 0
	return st, nil
}
