// Package generate calls the external answer-generation capability and
// provides the deterministic fallback used when it fails.
package generate

import (
	"context"
	"errors"

	"github.com/hyperfocal/veridoc/internal/models"
)

// ErrUpstream marks failures of the generation capability (network, auth,
// non-2xx status, malformed or empty response). Callers recover from it with
// FallbackAnswer; it must never surface to an end user.
var ErrUpstream = errors.New("generation upstream failure")

// Generator produces an answer from retrieved context chunks. Implementations
// must honor ctx cancellation and bound their own request time.
type Generator interface {
	Generate(ctx context.Context, chunks []models.ContextChunk, question string) (string, error)
}
