// Package confidence converts retrieval distances into a reliability score
// that gates answer generation.
package confidence

import (
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/hyperfocal/veridoc/internal/models"
)

// DefaultThreshold is the minimum average similarity required to attempt generation.
const DefaultThreshold = 0.25

// Score transforms each squared L2 distance d into a similarity 1/(1+d),
// averages the similarities, and reports whether the average meets threshold.
// With no distances there is no evidence, so the result is always a refusal
// with score 0.
func Score(distances []float64, threshold float64) models.ConfidenceResult {
	if len(distances) == 0 {
		return models.ConfidenceResult{Confident: false, Score: 0}
	}
	var sum float64
	for _, d := range distances {
		sum += 1 / (1 + d)
	}
	avg := sum / float64(len(distances))
	return models.ConfidenceResult{Confident: avg >= threshold, Score: avg}
}

// refusalTemplates are semantically equivalent phrasings for a refusal answer.
var refusalTemplates = []string{
	"I checked the available documents, but I couldn't find an answer to that.",
	"The provided sources don't include this information.",
	"I reviewed the context, but this detail isn't mentioned in the documents.",
	"Based on the information I have, this question can't be answered from the provided sources.",
	"I couldn't find relevant information about this in the current context.",
}

// Refuser picks a refusal phrasing. The random source is seeded explicitly so
// tests can make the selection deterministic.
type Refuser struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewRefuser creates a refuser seeded with seed; seed 0 means time-based.
func NewRefuser(seed int64) *Refuser {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &Refuser{rng: rand.New(rand.NewSource(seed))}
}

// Message returns one refusal phrasing, citing the question when provided.
func (r *Refuser) Message(question string) string {
	r.mu.Lock()
	base := refusalTemplates[r.rng.Intn(len(refusalTemplates))]
	r.mu.Unlock()
	if question == "" {
		return base
	}
	return fmt.Sprintf("%s (Question: %q)", base, question)
}

// IsRefusal reports whether answer is one of the known refusal phrasings.
// Used by tests and callers that need to classify a response without relying
// on exact string equality.
func IsRefusal(answer string) bool {
	for _, tmpl := range refusalTemplates {
		if len(answer) >= len(tmpl) && answer[:len(tmpl)] == tmpl {
			return true
		}
	}
	return false
}
