package indexer

import (
	"fmt"

	"github.com/cespare/xxhash/v2"
)

// ContentHash computes the stable digest used for change detection. It
// covers both the model identifier and the text, so a model switch changes
// every hash: identical text is re-embedded under the new model.
func ContentHash(model, text string) string {
	h := xxhash.New()
	h.WriteString(model)
	h.WriteString("|")
	h.WriteString(text)
	return fmt.Sprintf("xxh64:%016x", h.Sum64())
}
