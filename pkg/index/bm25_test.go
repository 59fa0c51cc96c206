package index

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenize(t *testing.T) {
	tokens := Tokenize("LLM quantization on Snapdragon: INT8 vs FP16!")
	assert.Equal(t, []string{"llm", "quantization", "on", "snapdragon", "int8", "vs", "fp16"}, tokens)

	assert.Empty(t, Tokenize(""))
	assert.Empty(t, Tokenize("!!! ---"))
}

func TestBM25AddAndRank(t *testing.T) {
	idx := NewBM25()

	idx.Add(1, "quantization reduces memory bandwidth on mobile NPUs")
	idx.Add(2, "speculative decoding improves token throughput")
	idx.Add(3, "INT4 quantization for on-device LLM inference")

	assert.Equal(t, 3, idx.Len())

	results := idx.Rank("quantization memory", 10)
	require.NotEmpty(t, results)

	// Doc 1 matches both terms, so it must outrank doc 3.
	assert.Equal(t, int64(1), results[0].ID)

	ids := make([]int64, 0, len(results))
	for _, r := range results {
		ids = append(ids, r.ID)
	}
	assert.NotContains(t, ids, int64(2))
}

func TestBM25RankTopK(t *testing.T) {
	idx := NewBM25()
	for i := int64(1); i <= 20; i++ {
		idx.Add(i, fmt.Sprintf("memory optimization technique number %d", i))
	}

	results := idx.Rank("memory optimization", 5)
	assert.Len(t, results, 5)

	all := idx.Rank("memory optimization", 0)
	assert.Len(t, all, 20)
}

func TestBM25RankEmptyCases(t *testing.T) {
	idx := NewBM25()
	assert.Nil(t, idx.Rank("anything", 10))

	idx.Add(1, "kv cache paging")
	assert.Nil(t, idx.Rank("", 10))
	assert.Nil(t, idx.Rank("unrelated terms entirely", 10))
}

func TestBM25ReAddReplaces(t *testing.T) {
	idx := NewBM25()

	idx.Add(1, "flash attention kernels")
	require.NotEmpty(t, idx.Rank("flash", 10))

	idx.Add(1, "weight pruning schedules")
	assert.Equal(t, 1, idx.Len())
	assert.Empty(t, idx.Rank("flash", 10))
	assert.NotEmpty(t, idx.Rank("pruning", 10))
}

func TestBM25Remove(t *testing.T) {
	idx := NewBM25()

	idx.Add(1, "kv cache compression")
	idx.Add(2, "kv cache eviction")
	require.Equal(t, 2, idx.Len())

	idx.Remove(1)
	assert.Equal(t, 1, idx.Len())

	results := idx.Rank("kv cache", 10)
	require.Len(t, results, 1)
	assert.Equal(t, int64(2), results[0].ID)

	// Removing an unknown ID is a no-op.
	idx.Remove(99)
	assert.Equal(t, 1, idx.Len())
}

func TestBM25TermFrequencySaturation(t *testing.T) {
	idx := NewBM25()

	idx.Add(1, "sparsity sparsity sparsity sparsity sparsity")
	idx.Add(2, "sparsity pruning")

	results := idx.Rank("sparsity", 10)
	require.Len(t, results, 2)

	// Repetition helps but saturates: the heavy doc wins without
	// dominating by the raw count ratio.
	assert.Equal(t, int64(1), results[0].ID)
	assert.Less(t, results[0].Score/results[1].Score, 5.0)
}

func TestBM25ConcurrentAccess(t *testing.T) {
	idx := NewBM25()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(2)
		go func(n int64) {
			defer wg.Done()
			idx.Add(n, fmt.Sprintf("document about memory %d", n))
		}(int64(i))
		go func() {
			defer wg.Done()
			idx.Rank("memory", 5)
		}()
	}
	wg.Wait()

	assert.Equal(t, 10, idx.Len())
}
