package graph

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

type userKey struct{ name, project string }

type relKey struct{ source, target, project string }

// fakeStore interprets the package's cypher statements against maps
type fakeStore struct {
	mu         sync.Mutex
	users      map[userKey]map[string]any
	rels       map[relKey]map[string]any
	constraint bool

	calls     []string
	counts    map[string]int
	failOn    map[string]int // statement -> 1-based call that fails
	skipUsers map[string]bool
	dialErr   error
	dials     int
	closed    int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		users:     make(map[userKey]map[string]any),
		rels:      make(map[relKey]map[string]any),
		counts:    make(map[string]int),
		failOn:    make(map[string]int),
		skipUsers: make(map[string]bool),
	}
}

func (s *fakeStore) dialer() Dialer {
	return func(ctx context.Context) (Session, error) {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.dials++
		if s.dialErr != nil {
			return nil, s.dialErr
		}
		return &fakeSession{store: s}, nil
	}
}

func statementName(cypher string) string {
	switch cypher {
	case constraintCypher:
		return "constraint"
	case upsertUsersCypher:
		return "upsert_users"
	case upsertInteractionsCypher:
		return "upsert_interactions"
	case pruneStaleCypher:
		return "prune"
	case resetProjectCypher:
		return "reset"
	case topUsersCypher:
		return "top_users"
	case linksAmongCypher:
		return "links_among"
	default:
		return "unknown"
	}
}

func copyProps(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		if ids, ok := v.([]any); ok {
			v = append([]any(nil), ids...)
		}
		out[k] = v
	}
	return out
}

func (s *fakeStore) snapshot() (map[userKey]map[string]any, map[relKey]map[string]any) {
	users := make(map[userKey]map[string]any, len(s.users))
	for k, v := range s.users {
		users[k] = copyProps(v)
	}
	rels := make(map[relKey]map[string]any, len(s.rels))
	for k, v := range s.rels {
		rels[k] = copyProps(v)
	}
	return users, rels
}

func (s *fakeStore) user(project, name string) (map[string]any, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userKey{name, project}]
	return u, ok
}

func (s *fakeStore) rel(project, source, target string) (map[string]any, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.rels[relKey{source, target, project}]
	return r, ok
}

func (s *fakeStore) userCount(project string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for k := range s.users {
		if k.project == project {
			n++
		}
	}
	return n
}

func (s *fakeStore) run(cypher string, params map[string]any) ([]map[string]any, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	name := statementName(cypher)
	s.calls = append(s.calls, name)
	s.counts[name]++
	if n, ok := s.failOn[name]; ok && n == s.counts[name] {
		return nil, fmt.Errorf("injected failure on %s call %d", name, n)
	}

	project, _ := params["project_id"].(string)

	switch name {
	case "constraint":
		s.constraint = true
		return nil, nil

	case "upsert_users":
		rows := params["rows"].([]map[string]any)
		written := 0
		for _, row := range rows {
			userName := row["name"].(string)
			if s.skipUsers[userName] {
				continue
			}
			key := userKey{userName, project}
			u, ok := s.users[key]
			if !ok {
				u = map[string]any{"name": userName, "project_id": project}
				s.users[key] = u
			}
			for _, prop := range []string{"in_degree", "out_degree", "importance_score", "community_id"} {
				u[prop] = row[prop]
			}
			written++
		}
		return []map[string]any{{"written": int64(written)}}, nil

	case "upsert_interactions":
		rows := params["rows"].([]map[string]any)
		matched := 0
		for _, row := range rows {
			source, target := row["source"].(string), row["target"].(string)
			if _, ok := s.users[userKey{source, project}]; !ok {
				continue
			}
			if _, ok := s.users[userKey{target, project}]; !ok {
				continue
			}
			key := relKey{source, target, project}
			r, ok := s.rels[key]
			if !ok {
				r = map[string]any{"project_id": project}
				s.rels[key] = r
			}
			weight, _ := r["weight"].(int64)
			r["weight"] = weight + row["weight"].(int64)
			ids, _ := r["contributing_comment_ids"].([]any)
			r["contributing_comment_ids"] = append(append([]any(nil), ids...), row["comment_ids"].([]any)...)
			if ts, ok := row["last_ts"].(time.Time); ok {
				prev, hasPrev := r["last_interaction_time"].(time.Time)
				if !hasPrev || ts.After(prev) {
					r["last_interaction_time"] = ts
				}
			}
			matched++
		}
		return []map[string]any{{"matched": int64(matched)}}, nil

	case "prune", "reset":
		keep := make(map[string]bool)
		if name == "prune" {
			for _, n := range params["names"].([]string) {
				keep[n] = true
			}
		}
		deleted := 0
		for k := range s.users {
			if k.project == project && !keep[k.name] {
				delete(s.users, k)
				deleted++
				for rk := range s.rels {
					if rk.project == project && (rk.source == k.name || rk.target == k.name) {
						delete(s.rels, rk)
					}
				}
			}
		}
		return []map[string]any{{"deleted": int64(deleted)}}, nil

	case "top_users":
		var records []map[string]any
		for k, u := range s.users {
			if k.project != project {
				continue
			}
			records = append(records, map[string]any{
				"name":             k.name,
				"importance_score": u["importance_score"],
				"in_degree":        u["in_degree"],
				"out_degree":       u["out_degree"],
				"community_id":     u["community_id"],
			})
		}
		sort.Slice(records, func(i, j int) bool {
			si, sj := records[i]["importance_score"].(float64), records[j]["importance_score"].(float64)
			if si != sj {
				return si > sj
			}
			return records[i]["name"].(string) < records[j]["name"].(string)
		})
		return limitRecords(records, params["limit"].(int64)), nil

	case "links_among":
		names := make(map[string]bool)
		for _, n := range params["names"].([]string) {
			names[n] = true
		}
		var records []map[string]any
		for k, r := range s.rels {
			if k.project != project || !names[k.source] || !names[k.target] {
				continue
			}
			records = append(records, map[string]any{
				"source": k.source,
				"target": k.target,
				"weight": r["weight"],
			})
		}
		sort.Slice(records, func(i, j int) bool {
			wi, wj := records[i]["weight"].(int64), records[j]["weight"].(int64)
			if wi != wj {
				return wi > wj
			}
			if records[i]["source"] != records[j]["source"] {
				return records[i]["source"].(string) < records[j]["source"].(string)
			}
			return records[i]["target"].(string) < records[j]["target"].(string)
		})
		return limitRecords(records, params["limit"].(int64)), nil
	}

	return nil, fmt.Errorf("unexpected statement: %s", cypher)
}

func limitRecords(records []map[string]any, limit int64) []map[string]any {
	if int64(len(records)) > limit {
		return records[:limit]
	}
	return records
}

type fakeSession struct {
	store *fakeStore
}

func (f *fakeSession) ExecuteWrite(ctx context.Context, operation string, fn func(tx Tx) error) error {
	f.store.mu.Lock()
	users, rels := f.store.snapshot()
	f.store.mu.Unlock()

	if err := fn(&fakeTx{store: f.store}); err != nil {
		f.store.mu.Lock()
		f.store.users, f.store.rels = users, rels
		f.store.mu.Unlock()
		return err
	}
	return nil
}

func (f *fakeSession) Read(ctx context.Context, operation, cypher string, params map[string]any) ([]map[string]any, error) {
	return f.store.run(cypher, params)
}

func (f *fakeSession) Close(ctx context.Context) error {
	f.store.mu.Lock()
	defer f.store.mu.Unlock()
	f.store.closed++
	return nil
}

type fakeTx struct {
	store *fakeStore
}

func (t *fakeTx) Run(ctx context.Context, cypher string, params map[string]any) ([]map[string]any, error) {
	return t.store.run(cypher, params)
}

// countingRecorder collects telemetry calls
type countingRecorder struct {
	mu      sync.Mutex
	batches map[string]int
	rows    map[string]int
	lookups map[string]int
}

func newCountingRecorder() *countingRecorder {
	return &countingRecorder{
		batches: make(map[string]int),
		rows:    make(map[string]int),
		lookups: make(map[string]int),
	}
}

func (r *countingRecorder) BatchWritten(kind string, rows int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.batches[kind]++
	r.rows[kind] += rows
}

func (r *countingRecorder) CommentLookup(source string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lookups[source]++
}
