package store

import (
	"context"
	"math"
	"sort"
	"strings"

	"github.com/quillforge/lodestone/normalize"
)

// Scope restricts a sub-search to part of the corpus. The zero value means
// the whole corpus. Filters are applied inside each sub-query, never after
// truncation.
type Scope struct {
	Path     string   // exact document path
	Folder   string   // folder prefix; matches the folder itself or anything under it
	AllowIDs []string // explicit document id allow-list
	DenyIDs  []string // explicit document id deny-list
}

// IsZero reports whether the scope places no restriction.
func (sc Scope) IsZero() bool {
	return sc.Path == "" && sc.Folder == "" && len(sc.AllowIDs) == 0 && len(sc.DenyIDs) == 0
}

// SearchHit is one scored row from a sub-search. Fulltext and vector hits are
// chunk-level; meta hits are document-level with ChunkID 0 and empty Content.
type SearchHit struct {
	ChunkID int64   `json:"chunk_id,omitempty"`
	DocID   string  `json:"doc_id"`
	Path    string  `json:"path"`
	Title   string  `json:"title"`
	Content string  `json:"content,omitempty"`
	Score   float64 `json:"score"`
}

// SearchFulltext runs the lexical sub-search: a disjunctive match over chunk
// content and title, scored 1/(1+bm25 distance) and boosted by the fraction
// of distinct query keywords the chunk covers.
func (s *Store) SearchFulltext(ctx context.Context, keywords []string, scope Scope, limit int) ([]SearchHit, error) {
	if len(keywords) == 0 || limit <= 0 {
		return nil, nil
	}
	conds, scopeArgs := scopeConds("m", scope)
	query := `
		SELECT f.rowid, f.doc_id, m.path, m.title, c.content_raw, c.content_fts_norm, bm25(chunk_fts) AS r
		FROM chunk_fts f
		JOIN doc_chunk c ON c.chunk_id = f.rowid
		JOIN doc_meta m ON m.id = f.doc_id
		WHERE chunk_fts MATCH ?` + andConds(conds) + `
		ORDER BY r LIMIT ?`

	args := append([]interface{}{matchQuery("{content title}", keywords)}, scopeArgs...)
	args = append(args, overfetch(limit))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var hits []SearchHit
	for rows.Next() {
		var h SearchHit
		var ftsNorm string
		var rank float64
		if err := rows.Scan(&h.ChunkID, &h.DocID, &h.Path, &h.Title, &h.Content, &ftsNorm, &rank); err != nil {
			return nil, err
		}
		cov := coverage(keywords, h.Title+"\n"+ftsNorm)
		h.Score = bm25Score(rank) * (1 + s.ftCoverage*cov)
		hits = append(hits, h)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	sortHits(hits)
	return truncateHits(hits, limit), nil
}

// SearchMeta runs the metadata sub-search over document titles and paths,
// returning one hit per document.
func (s *Store) SearchMeta(ctx context.Context, keywords []string, scope Scope, limit int) ([]SearchHit, error) {
	if len(keywords) == 0 || limit <= 0 {
		return nil, nil
	}
	conds, scopeArgs := scopeConds("m", scope)
	query := `
		SELECT t.doc_id, m.path, m.title, MIN(t.r) AS r
		FROM (
			SELECT doc_id, bm25(chunk_fts) AS r FROM chunk_fts WHERE chunk_fts MATCH ?
		) t
		JOIN doc_meta m ON m.id = t.doc_id` + whereConds(conds) + `
		GROUP BY t.doc_id
		ORDER BY r LIMIT ?`

	args := append([]interface{}{matchQuery("{title path}", keywords)}, scopeArgs...)
	args = append(args, overfetch(limit))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var hits []SearchHit
	for rows.Next() {
		var h SearchHit
		var rank float64
		if err := rows.Scan(&h.DocID, &h.Path, &h.Title, &rank); err != nil {
			return nil, err
		}
		cov := coverage(keywords, h.Title+"\n"+h.Path)
		h.Score = bm25Score(rank) * (1 + s.metaCoverage*cov)
		hits = append(hits, h)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	sortHits(hits)
	return truncateHits(hits, limit), nil
}

// SearchVector runs the semantic sub-search. On sqlite_vec builds it is a KNN
// query against the vec0 table; otherwise a brute-force scan over the stored
// embedding blobs. Score is 1/(1+distance) either way.
func (s *Store) SearchVector(ctx context.Context, queryVec []float32, scope Scope, limit int) ([]SearchHit, error) {
	if len(queryVec) == 0 || limit <= 0 {
		return nil, nil
	}
	if VectorIndexAvailable {
		return s.knnVector(ctx, queryVec, scope, limit)
	}
	return s.scanVector(ctx, queryVec, scope, limit)
}

func (s *Store) knnVector(ctx context.Context, queryVec []float32, scope Scope, limit int) ([]SearchHit, error) {
	query := `
		SELECT v.chunk_id, v.distance, c.doc_id, m.path, m.title, c.content_raw
		FROM vec_chunks v
		JOIN doc_chunk c ON c.chunk_id = v.chunk_id
		JOIN doc_meta m ON m.id = c.doc_id
		WHERE v.embedding MATCH ? AND k = ?`
	args := []interface{}{serializeFloat32(queryVec), limit}

	// vec0 cannot evaluate JOIN constraints inside the KNN, so scope
	// narrowing rides along as a chunk-id pre-filter.
	if conds, scopeArgs := scopeConds("m2", scope); len(conds) > 0 {
		query += `
		AND v.chunk_id IN (
			SELECT c2.chunk_id FROM doc_chunk c2
			JOIN doc_meta m2 ON m2.id = c2.doc_id
			WHERE ` + strings.Join(conds, " AND ") + `)`
		args = append(args, scopeArgs...)
	}
	query += `
		ORDER BY v.distance`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var hits []SearchHit
	for rows.Next() {
		var h SearchHit
		var distance float64
		if err := rows.Scan(&h.ChunkID, &distance, &h.DocID, &h.Path, &h.Title, &h.Content); err != nil {
			return nil, err
		}
		h.Score = 1 / (1 + distance)
		hits = append(hits, h)
	}
	return hits, rows.Err()
}

func (s *Store) scanVector(ctx context.Context, queryVec []float32, scope Scope, limit int) ([]SearchHit, error) {
	conds, scopeArgs := scopeConds("m", scope)
	query := `
		SELECT e.chunk_id, e.embedding, c.doc_id, m.path, m.title, c.content_raw
		FROM embedding e
		JOIN doc_chunk c ON c.chunk_id = e.chunk_id
		JOIN doc_meta m ON m.id = e.doc_id` + whereConds(conds)

	rows, err := s.db.QueryContext(ctx, query, scopeArgs...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var hits []SearchHit
	for rows.Next() {
		var h SearchHit
		var blob []byte
		if err := rows.Scan(&h.ChunkID, &blob, &h.DocID, &h.Path, &h.Title, &h.Content); err != nil {
			return nil, err
		}
		h.Score = 1 / (1 + l2Distance(queryVec, deserializeFloat32(blob)))
		hits = append(hits, h)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	sortHits(hits)
	return truncateHits(hits, limit), nil
}

// --- search helpers ---

// bm25Score maps SQLite's smaller-is-better bm25 rank (negative for any
// match) onto (0,1): strong matches approach 1, marginal ones 0.
func bm25Score(rank float64) float64 {
	if rank >= 0 {
		return 0
	}
	return 1 / (1 - 1/rank)
}

// coverage returns the fraction of query keywords present in text.
func coverage(keywords []string, text string) float64 {
	if len(keywords) == 0 {
		return 0
	}
	have := make(map[string]struct{})
	for _, w := range normalize.Keywords(text) {
		have[w] = struct{}{}
	}
	matched := 0
	for _, k := range keywords {
		if _, ok := have[k]; ok {
			matched++
		}
	}
	return float64(matched) / float64(len(keywords))
}

// matchQuery builds a disjunctive FTS5 MATCH expression restricted to the
// given column set, quoting each keyword.
func matchQuery(cols string, keywords []string) string {
	var b strings.Builder
	b.WriteString(cols)
	b.WriteString(" : (")
	for i, k := range keywords {
		if i > 0 {
			b.WriteString(" OR ")
		}
		b.WriteByte('"')
		b.WriteString(strings.ReplaceAll(k, `"`, `""`))
		b.WriteByte('"')
	}
	b.WriteString(")")
	return b.String()
}

func scopeConds(alias string, sc Scope) ([]string, []interface{}) {
	var conds []string
	var args []interface{}
	if sc.Path != "" {
		conds = append(conds, alias+".path = ?")
		args = append(args, sc.Path)
	}
	if sc.Folder != "" {
		folder := strings.TrimSuffix(sc.Folder, "/")
		conds = append(conds, "("+alias+".path = ? OR "+alias+".path LIKE ? ESCAPE '\\')")
		args = append(args, folder, escapeLike(folder)+"/%")
	}
	if len(sc.AllowIDs) > 0 {
		conds = append(conds, alias+".id IN (?"+repeatPlaceholders(len(sc.AllowIDs)-1)+")")
		for _, id := range sc.AllowIDs {
			args = append(args, id)
		}
	}
	if len(sc.DenyIDs) > 0 {
		conds = append(conds, alias+".id NOT IN (?"+repeatPlaceholders(len(sc.DenyIDs)-1)+")")
		for _, id := range sc.DenyIDs {
			args = append(args, id)
		}
	}
	return conds, args
}

func andConds(conds []string) string {
	out := ""
	for _, c := range conds {
		out += " AND " + c
	}
	return out
}

func whereConds(conds []string) string {
	if len(conds) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(conds, " AND ")
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

// overfetch widens the row fetch beyond the requested limit because the
// coverage boost can reorder rows ranked only by bm25.
func overfetch(limit int) int {
	n := limit * 4
	if n < 40 {
		n = 40
	}
	if n > 400 {
		n = 400
	}
	return n
}

func sortHits(hits []SearchHit) {
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })
}

func truncateHits(hits []SearchHit, limit int) []SearchHit {
	if len(hits) > limit {
		return hits[:limit]
	}
	return hits
}

func l2Distance(a, b []float32) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var sum float64
	for i := 0; i < n; i++ {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return math.Sqrt(sum)
}
