package corpus

import (
	"fmt"
	"strings"

	"polytrain/internal/services"
)

// Delimiter separates the item identifier from the original utterance or
// speaker identifier. It is not valid inside un-prefixed identifiers, which
// is what makes prefixing injective across items.
const Delimiter = "__"

// Prefixed reports whether id already carries the given item prefix.
func Prefixed(itemID, id string) bool {
	return strings.HasPrefix(id, itemID+Delimiter)
}

// PrefixID prepends the item identifier to id unless it is already present.
func PrefixID(itemID, id string) string {
	if Prefixed(itemID, id) {
		return id
	}
	return itemID + Delimiter + id
}

// Prefix rewrites every utterance and speaker id in the corpus to carry the
// item prefix. The operation is a pure rename: transcripts and audio
// references are untouched. Applying it twice equals applying it once; an
// un-prefixed identifier that already contains the delimiter is rejected
// because it would break injectivity across items.
func Prefix(c *Corpus, itemID string) (*Corpus, error) {
	if itemID == "" {
		return nil, services.Wrap(services.ErrConfiguration, "prefix", "rename", "item id is empty", nil)
	}
	out := New()
	for _, id := range c.IDs() {
		utt := c.utterances[id]
		newID, err := prefixOne(itemID, utt.ID)
		if err != nil {
			return nil, err
		}
		newSpeaker, err := prefixOne(itemID, utt.Speaker)
		if err != nil {
			return nil, err
		}
		utt.ID = newID
		utt.Speaker = newSpeaker
		out.Add(utt)
	}
	return out, nil
}

func prefixOne(itemID, id string) (string, error) {
	if Prefixed(itemID, id) {
		return id, nil
	}
	if strings.Contains(id, Delimiter) {
		return "", services.Wrap(services.ErrData, "prefix", "rename",
			fmt.Sprintf("identifier %q contains reserved delimiter %q", id, Delimiter), nil)
	}
	return itemID + Delimiter + id, nil
}
