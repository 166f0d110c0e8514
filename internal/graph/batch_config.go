package graph

// BatchConfig defines batch sizes for bulk writes.
//
// Small batches suit nodes with many properties; edges carry a handful of
// classifier properties and tolerate large batches.
type BatchConfig struct {
	NodeBatchSize int // Optimal: 200-1000
	EdgeBatchSize int // Optimal: 1000-5000
}

// DefaultBatchConfig returns sizes tuned for medium codebases (~5K files)
func DefaultBatchConfig() BatchConfig {
	return BatchConfig{
		NodeBatchSize: 500,
		EdgeBatchSize: 5000,
	}
}

// SmallBatchConfig for small codebases; smaller batches reduce memory pressure
func SmallBatchConfig() BatchConfig {
	return BatchConfig{
		NodeBatchSize: 200,
		EdgeBatchSize: 1000,
	}
}
