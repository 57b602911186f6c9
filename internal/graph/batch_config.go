package graph

// DefaultBatchSize bounds the rows of a single UNWIND statement
const DefaultBatchSize = 1000

// BatchConfig defines batch sizes for the project write
//
// The UNWIND pattern is the most efficient way to upsert many rows:
// Instead of: MERGE (u:User {name: "a"}) MERGE (u:User {name: "b"})...
// We use: UNWIND $rows AS row MERGE (u:User {name: row.name, ...}) SET ...
type BatchConfig struct {
	NodeBatchSize int
	EdgeBatchSize int
}

// DefaultBatchConfig returns the standard batch sizes
func DefaultBatchConfig() BatchConfig {
	return BatchConfig{
		NodeBatchSize: DefaultBatchSize,
		EdgeBatchSize: DefaultBatchSize,
	}
}

// normalized replaces non-positive sizes with the default
func (bc BatchConfig) normalized() BatchConfig {
	if bc.NodeBatchSize <= 0 {
		bc.NodeBatchSize = DefaultBatchSize
	}
	if bc.EdgeBatchSize <= 0 {
		bc.EdgeBatchSize = DefaultBatchSize
	}
	return bc
}

// batchRanges splits n rows into [start, end) windows of at most size rows
func batchRanges(n, size int) [][2]int {
	if size <= 0 {
		size = DefaultBatchSize
	}
	var ranges [][2]int
	for start := 0; start < n; start += size {
		end := start + size
		if end > n {
			end = n
		}
		ranges = append(ranges, [2]int{start, end})
	}
	return ranges
}
