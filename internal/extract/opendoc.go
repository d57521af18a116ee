package extract

import (
	"fmt"

	"github.com/lu4p/cat"
)

// extractOpenDoc extracts text from .odt and .rtf bytes via lu4p/cat, which
// detects the container format from the content itself.
func extractOpenDoc(content []byte, ext string) (string, error) {
	text, err := cat.FromBytes(content)
	if err != nil {
		return "", fmt.Errorf("extract %s: %w", ext, err)
	}
	return text, nil
}
