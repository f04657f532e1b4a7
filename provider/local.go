package provider

import (
	"context"
	"hash/fnv"
	"math"

	"github.com/quillforge/lodestone/normalize"
)

// DefaultLocalDim is the vector width when none is configured.
const DefaultLocalDim = 256

// Local is a deterministic feature-hash embedder: keywords are hashed into
// a fixed number of signed buckets and the vector L2-normalized. Texts
// sharing vocabulary land near each other without any model call, which is
// enough for offline corpora and for exercising the vector path in tests.
type Local struct {
	dim int
}

// NewLocal creates a local embedder producing vectors of the given width.
func NewLocal(dim int) *Local {
	if dim <= 0 {
		dim = DefaultLocalDim
	}
	return &Local{dim: dim}
}

// Dim returns the vector width.
func (l *Local) Dim() int {
	return l.dim
}

// Embed generates one vector per input text.
func (l *Local) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		out[i] = l.embedOne(text)
	}
	return out, nil
}

func (l *Local) embedOne(text string) []float32 {
	vec := make([]float32, l.dim)
	for _, kw := range normalize.Keywords(text) {
		h := fnv.New32a()
		h.Write([]byte(kw))
		sum := h.Sum32()

		// Hashing trick: low bit picks the sign, the rest the bucket.
		idx := int(sum>>1) % l.dim
		if sum&1 == 1 {
			vec[idx]--
		} else {
			vec[idx]++
		}
	}

	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm > 0 {
		inv := float32(1 / math.Sqrt(norm))
		for i := range vec {
			vec[i] *= inv
		}
	}
	return vec
}
