package corpus

import (
	"sort"
)

// Utterance is one transcribed audio segment owned by exactly one speaker.
type Utterance struct {
	ID         string
	Speaker    string
	Transcript string
	// Audio is the wav.scp entry: a path or an extraction command. The
	// pipeline treats it as opaque.
	Audio string
}

// Corpus is an unordered set of utterances keyed by utterance id.
type Corpus struct {
	utterances map[string]Utterance
}

// New returns an empty corpus.
func New() *Corpus {
	return &Corpus{utterances: make(map[string]Utterance)}
}

// Add inserts or replaces an utterance.
func (c *Corpus) Add(utt Utterance) {
	if c.utterances == nil {
		c.utterances = make(map[string]Utterance)
	}
	c.utterances[utt.ID] = utt
}

// Get returns the utterance with the given id.
func (c *Corpus) Get(id string) (Utterance, bool) {
	utt, ok := c.utterances[id]
	return utt, ok
}

// Len returns the utterance count.
func (c *Corpus) Len() int {
	return len(c.utterances)
}

// IDs returns all utterance ids in sorted order.
func (c *Corpus) IDs() []string {
	ids := make([]string, 0, len(c.utterances))
	for id := range c.utterances {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Speakers returns the distinct speaker ids in sorted order.
func (c *Corpus) Speakers() []string {
	seen := make(map[string]struct{})
	for _, utt := range c.utterances {
		seen[utt.Speaker] = struct{}{}
	}
	speakers := make([]string, 0, len(seen))
	for speaker := range seen {
		speakers = append(speakers, speaker)
	}
	sort.Strings(speakers)
	return speakers
}

// Each visits every utterance in sorted id order.
func (c *Corpus) Each(visit func(Utterance)) {
	for _, id := range c.IDs() {
		visit(c.utterances[id])
	}
}
