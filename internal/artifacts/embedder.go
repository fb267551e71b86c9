package artifacts

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
	"unicode"
)

// Embedder turns text into a vector for similarity search. Vectors from
// one embedder must share a dimension.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// HashEmbedder is a hashed bag-of-words embedder. Each lowercased word is
// hashed into one of Dimensions buckets and the counts are L2-normalized.
// It needs no model and is deterministic across restarts.
type HashEmbedder struct {
	Dimensions int
}

// NewHashEmbedder returns a HashEmbedder with dims buckets.
func NewHashEmbedder(dims int) HashEmbedder {
	if dims < 1 {
		dims = 512
	}
	return HashEmbedder{Dimensions: dims}
}

func (h HashEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vec := make([]float32, h.Dimensions)

	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
	for _, w := range words {
		f := fnv.New32a()
		f.Write([]byte(w))
		vec[f.Sum32()%uint32(h.Dimensions)]++
	}

	normalize(vec)
	return vec, nil
}

func normalize(v []float32) {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		return
	}
	norm := float32(math.Sqrt(sum))
	for i := range v {
		v[i] /= norm
	}
}

// cosine returns the cosine similarity of a and b, or 0 when either is
// empty or their dimensions differ.
func cosine(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}

	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
