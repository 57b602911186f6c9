package graph

import (
	"fmt"
	"time"
)

// Node label and relationship type of the reply graph
const (
	UserLabel        = "User"
	InteractsRelType = "INTERACTS"
)

const constraintCypher = `
CREATE CONSTRAINT user_name_project IF NOT EXISTS
FOR (u:User) REQUIRE (u.name, u.project_id) IS UNIQUE`

// Scalar metrics are overwritten on every run
const upsertUsersCypher = `
UNWIND $rows AS row
MERGE (u:User {name: row.name, project_id: $project_id})
SET u.in_degree = row.in_degree,
    u.out_degree = row.out_degree,
    u.importance_score = row.importance_score,
    u.community_id = row.community_id
RETURN count(u) AS written`

// Weight and ids accumulate; the last interaction only moves forward.
// Rows whose endpoints are missing fall out at MATCH.
const upsertInteractionsCypher = `
UNWIND $rows AS row
MATCH (a:User {name: row.source, project_id: $project_id})
MATCH (b:User {name: row.target, project_id: $project_id})
MERGE (a)-[r:INTERACTS {project_id: $project_id}]->(b)
SET r.weight = coalesce(r.weight, 0) + row.weight,
    r.contributing_comment_ids = coalesce(r.contributing_comment_ids, []) + row.comment_ids,
    r.last_interaction_time = CASE
        WHEN row.last_ts IS NULL THEN r.last_interaction_time
        WHEN r.last_interaction_time IS NULL OR row.last_ts > r.last_interaction_time THEN row.last_ts
        ELSE r.last_interaction_time
    END
RETURN count(r) AS matched`

const pruneStaleCypher = `
MATCH (u:User {project_id: $project_id})
WHERE NOT u.name IN $names
WITH collect(u) AS stale
FOREACH (n IN stale | DETACH DELETE n)
RETURN size(stale) AS deleted`

const resetProjectCypher = `
MATCH (u:User {project_id: $project_id})
WITH collect(u) AS users
FOREACH (n IN users | DETACH DELETE n)
RETURN size(users) AS deleted`

const topUsersCypher = `
MATCH (u:User {project_id: $project_id})
RETURN u.name AS name,
       coalesce(u.importance_score, 0.0) AS importance_score,
       coalesce(u.in_degree, 0) AS in_degree,
       coalesce(u.out_degree, 0) AS out_degree,
       coalesce(u.community_id, 0) AS community_id
ORDER BY importance_score DESC, name ASC
LIMIT $limit`

const linksAmongCypher = `
MATCH (a:User {project_id: $project_id})-[r:INTERACTS {project_id: $project_id}]->(b:User {project_id: $project_id})
WHERE a.name IN $names AND b.name IN $names
RETURN a.name AS source, b.name AS target, coalesce(r.weight, 0) AS weight
ORDER BY weight DESC, source ASC, target ASC
LIMIT $limit`

// Record value helpers. Neo4j returns integers as int64 and floats as float64.

func recordString(rec map[string]any, key string) string {
	switch v := rec[key].(type) {
	case string:
		return v
	case nil:
		return ""
	default:
		return fmt.Sprintf("%v", v)
	}
}

func recordInt(rec map[string]any, key string) int {
	switch v := rec[key].(type) {
	case int64:
		return int(v)
	case int:
		return v
	case float64:
		return int(v)
	default:
		return 0
	}
}

func recordFloat(rec map[string]any, key string) float64 {
	switch v := rec[key].(type) {
	case float64:
		return v
	case int64:
		return float64(v)
	case int:
		return float64(v)
	default:
		return 0
	}
}

// timeParam converts an optional timestamp to a driver parameter
func timeParam(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC()
}
