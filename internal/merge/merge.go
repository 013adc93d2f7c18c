package merge

import (
	"fmt"
	"sort"

	"polytrain/internal/corpus"
	"polytrain/internal/lexicon"
	"polytrain/internal/services"
)

// Corpora unions prefixed item corpora. Every utterance in the result traces
// back to exactly one source item through its prefix. A duplicate utterance
// or speaker identifier surviving prefixing is a data error.
func Corpora(items map[string]*corpus.Corpus) (*corpus.Corpus, error) {
	ids := make([]string, 0, len(items))
	for id := range items {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	combined := corpus.New()
	speakerOwner := make(map[string]string)
	for _, itemID := range ids {
		var err error
		items[itemID].Each(func(utt corpus.Utterance) {
			if err != nil {
				return
			}
			if _, exists := combined.Get(utt.ID); exists {
				err = services.Wrap(services.ErrData, "combine", "merge corpora",
					fmt.Sprintf("duplicate utterance id %q survived prefixing (item %s)", utt.ID, itemID), nil)
				return
			}
			if owner, seen := speakerOwner[utt.Speaker]; seen && owner != itemID {
				err = services.Wrap(services.ErrData, "combine", "merge corpora",
					fmt.Sprintf("speaker id %q appears in items %s and %s", utt.Speaker, owner, itemID), nil)
				return
			}
			speakerOwner[utt.Speaker] = itemID
			combined.Add(utt)
		})
		if err != nil {
			return nil, err
		}
	}
	return combined, nil
}

// Conflict reports a word that ended up with pronunciations from more than
// one source.
type Conflict struct {
	Word           string
	Pronunciations int
}

// Dictionaries unions item dictionaries by word. Identical pronunciations
// collapse; differing pronunciations for the same word are all retained as
// alternates and reported as conflicts, never overwritten. Silence lexicons
// are fixed and canonical, so divergence is rejected at load time rather
// than here.
func Dictionaries(dicts map[string]*lexicon.Dictionary) (*lexicon.Dictionary, []Conflict, error) {
	ids := make([]string, 0, len(dicts))
	for id := range dicts {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	combined := lexicon.NewDictionary()
	sources := make(map[string]map[string]struct{})
	for _, itemID := range ids {
		dict := dicts[itemID]
		for _, word := range dict.Words() {
			for _, pron := range dict.Pronunciations(word) {
				combined.AddPronunciation(word, pron)
			}
			if sources[word] == nil {
				sources[word] = make(map[string]struct{})
			}
			sources[word][itemID] = struct{}{}
		}
	}

	var conflicts []Conflict
	for _, word := range combined.Words() {
		prons := combined.Pronunciations(word)
		if len(sources[word]) > 1 && len(prons) > 1 {
			conflicts = append(conflicts, Conflict{Word: word, Pronunciations: len(prons)})
		}
	}
	return combined, conflicts, nil
}
