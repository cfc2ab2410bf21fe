// Package vector builds and serves the chunk-level semantic index: batch
// embedding, optional SVD compression, dot-product search with partial
// selection, and a quantized serialization format small enough for tiers
// with strict per-value size limits.
package vector

import (
	"fmt"
	"sort"

	"gonum.org/v1/gonum/mat"

	"xplorer/internal/embedding"
)

// DefaultCompressDim is the default target dimension for SVD compression.
const DefaultCompressDim = 384

// Index holds the embedded chunks of one document. Vectors has one row per
// chunk; Transform, when present, projects future queries into the same
// reduced space.
type Index struct {
	Chunks    []string
	Vectors   *mat.Dense
	Transform *mat.Dense
}

// Build embeds the chunk batch in one provider call and, when compressDim is
// positive, compresses the result with truncated SVD. The row count of the
// returned index always equals len(chunks).
func Build(svc embedding.Service, chunks []string, compressDim int) (*Index, error) {
	if len(chunks) == 0 {
		return nil, fmt.Errorf("no chunks to embed")
	}
	embs, err := svc.EmbedBatch(chunks)
	if err != nil {
		return nil, err
	}

	dim := len(embs[0])
	vectors := mat.NewDense(len(embs), dim, nil)
	for i, e := range embs {
		if len(e) != dim {
			return nil, fmt.Errorf("embedding %d has dimension %d, expected %d", i, len(e), dim)
		}
		vectors.SetRow(i, e)
	}

	idx := &Index{Chunks: chunks, Vectors: vectors}
	if compressDim > 0 {
		if err := idx.compress(compressDim); err != nil {
			return nil, fmt.Errorf("compress: %w", err)
		}
	}
	return idx, nil
}

// compress reduces the vectors to min(dim, N, D) dimensions with truncated
// SVD, keeping U·Σ as the stored vectors and the truncated right singular
// vectors as the query transform.
func (x *Index) compress(dim int) error {
	n, d := x.Vectors.Dims()
	if dim > n {
		dim = n
	}
	if dim > d {
		dim = d
	}

	var svd mat.SVD
	if ok := svd.Factorize(x.Vectors, mat.SVDThin); !ok {
		return fmt.Errorf("svd factorization failed")
	}
	var u, v mat.Dense
	svd.UTo(&u)
	svd.VTo(&v)
	s := svd.Values(nil)

	// U[:, :dim] scaled by the singular values.
	vectors := mat.NewDense(n, dim, nil)
	for i := 0; i < n; i++ {
		for j := 0; j < dim; j++ {
			vectors.Set(i, j, u.At(i, j)*s[j])
		}
	}

	// V[:, :dim] projects original-space queries down.
	transform := mat.NewDense(d, dim, nil)
	for i := 0; i < d; i++ {
		for j := 0; j < dim; j++ {
			transform.Set(i, j, v.At(i, j))
		}
	}

	x.Vectors = vectors
	x.Transform = transform
	return nil
}

// Search embeds the query, projects it through the transform if present,
// scores every stored vector by dot product, and returns the top count
// chunks in descending score order. It fails if the index was never built.
func (x *Index) Search(svc embedding.Service, query string, count int) ([]string, error) {
	if x.Vectors == nil || len(x.Chunks) == 0 {
		return nil, fmt.Errorf("search before index was built")
	}

	q, err := svc.Embed(query)
	if err != nil {
		return nil, err
	}
	qv := mat.NewVecDense(len(q), q)
	if x.Transform != nil {
		_, dim := x.Transform.Dims()
		projected := mat.NewVecDense(dim, nil)
		projected.MulVec(x.Transform.T(), qv)
		qv = projected
	}

	n, _ := x.Vectors.Dims()
	scores := make([]float64, n)
	for i := 0; i < n; i++ {
		scores[i] = mat.Dot(x.Vectors.RowView(i), qv)
	}

	if count > n {
		count = n
	}
	top := topIndices(scores, count)

	results := make([]string, len(top))
	for i, idx := range top {
		results[i] = x.Chunks[idx]
	}
	return results, nil
}

// topIndices selects the count highest-scoring indices via partition, then
// sorts only the selected slice, keeping the average cost linear in the
// number of vectors.
func topIndices(scores []float64, count int) []int {
	idx := make([]int, len(scores))
	for i := range idx {
		idx[i] = i
	}
	if count < len(idx) {
		partialSelect(idx, scores, 0, len(idx)-1, count)
		idx = idx[:count]
	}
	sort.Slice(idx, func(a, b int) bool { return scores[idx[a]] > scores[idx[b]] })
	return idx
}

// partialSelect partitions idx[lo:hi+1] so its first k entries hold the
// highest scores, in arbitrary order.
func partialSelect(idx []int, scores []float64, lo, hi, k int) {
	for lo < hi {
		pivot := scores[idx[(lo+hi)/2]]
		i, j := lo, hi
		for i <= j {
			for scores[idx[i]] > pivot {
				i++
			}
			for scores[idx[j]] < pivot {
				j--
			}
			if i <= j {
				idx[i], idx[j] = idx[j], idx[i]
				i++
				j--
			}
		}
		if k <= j {
			hi = j
		} else if k >= i {
			lo = i
		} else {
			return
		}
	}
}
