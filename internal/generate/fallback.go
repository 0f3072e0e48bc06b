package generate

import (
	"fmt"
	"strings"

	"github.com/hyperfocal/veridoc/internal/models"
)

// FallbackAnswer renders the retrieved context verbatim with source citations.
// It is deterministic and never fails, which makes it the safe degradation
// path when the generation capability is down: the user still gets the
// evidence the answer would have been grounded on.
func FallbackAnswer(chunks []models.ContextChunk, question string) string {
	var b strings.Builder
	b.WriteString("Answer based on retrieved context:\n\n")
	for _, chunk := range chunks {
		b.WriteString("### Retrieved Information:\n")
		fmt.Fprintf(&b, "--- %s ---\n", chunk.ID)
		b.WriteString(strings.TrimSpace(chunk.Text))
		b.WriteString("\n\n")
	}
	fmt.Fprintf(&b, "\nSystem Note: The above information was retrieved from the uploaded documents and is relevant to your question: %q", question)
	return b.String()
}
