package extract

import (
	"fmt"

	"github.com/lu4p/cat"
)

// extractOffice handles ODT and RTF via lu4p/cat, which detects the
// container format from the content itself.
func extractOffice(content []byte) (string, error) {
	text, err := cat.FromBytes(content)
	if err != nil {
		return "", fmt.Errorf("extract office document: %w", err)
	}
	return text, nil
}
