// Package vecmath содержит операции над векторами эмбеддингов в точности float32.
package vecmath

import (
	"fmt"
	"math"
	"sort"

	"github.com/DRSN-tech/clip-backend/pkg/e"
)

// Dot возвращает скалярное произведение векторов одинаковой длины.
// Совпадает с оценкой clip_similarity_score нативного движка.
func Dot(a, b []float32) (float32, error) {
	if len(a) != len(b) {
		return 0, lengthMismatch(a, b)
	}

	return dot(a, b), nil
}

// Cosine возвращает косинусное сходство векторов одинаковой длины.
// Для векторов нулевой длины сходство не определено.
func Cosine(a, b []float32) (float32, error) {
	if len(a) != len(b) {
		return 0, lengthMismatch(a, b)
	}

	normA, normB := Norm(a), Norm(b)
	if normA == 0 || normB == 0 {
		return 0, fmt.Errorf("%w: cosine of zero-magnitude vector", e.ErrInvalidArgument)
	}

	return dot(a, b) / (normA * normB), nil
}

// Norm возвращает L2-норму вектора.
func Norm(v []float32) float32 {
	return float32(math.Sqrt(float64(dot(v, v))))
}

// Normalize возвращает копию вектора единичной длины.
// Нулевой вектор возвращается без изменений.
func Normalize(v []float32) []float32 {
	out := make([]float32, len(v))
	n := Norm(v)
	if n == 0 {
		copy(out, v)
		return out
	}

	for i, x := range v {
		out[i] = x / n
	}

	return out
}

// IsFinite сообщает, что в векторе нет NaN и Inf.
func IsFinite(v []float32) bool {
	for _, x := range v {
		f := float64(x)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return false
		}
	}

	return true
}

// SoftmaxSorted применяет softmax и сортирует вероятности по убыванию.
// indices[i] — исходная позиция i-й вероятности.
func SoftmaxSorted(scores []float32) ([]float32, []int) {
	if len(scores) == 0 {
		return nil, nil
	}

	maxScore := scores[0]
	for _, s := range scores[1:] {
		if s > maxScore {
			maxScore = s
		}
	}

	probs := make([]float32, len(scores))
	var sum float32
	for i, s := range scores {
		probs[i] = float32(math.Exp(float64(s - maxScore)))
		sum += probs[i]
	}
	for i := range probs {
		probs[i] /= sum
	}

	indices := make([]int, len(probs))
	for i := range indices {
		indices[i] = i
	}
	sort.SliceStable(indices, func(i, j int) bool {
		return probs[indices[i]] > probs[indices[j]]
	})

	sorted := make([]float32, len(probs))
	for i, idx := range indices {
		sorted[i] = probs[idx]
	}

	return sorted, indices
}

func dot(a, b []float32) float32 {
	var sum float32
	for i := range a {
		// явное приведение запрещает FMA и сохраняет округление float32
		sum += float32(a[i] * b[i])
	}

	return sum
}

func lengthMismatch(a, b []float32) error {
	return fmt.Errorf("%w: vector lengths differ (%d != %d)", e.ErrInvalidArgument, len(a), len(b))
}
