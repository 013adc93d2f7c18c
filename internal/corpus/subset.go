package corpus

// Subset returns a deterministic size-bounded sample of the corpus: the first
// size utterances in sorted id order. The sample is stable across runs. When
// the corpus holds size utterances or fewer, the corpus itself is returned as
// an alias rather than a copy, and aliased reports that degradation.
func (c *Corpus) Subset(size int) (sub *Corpus, aliased bool) {
	if size <= 0 || size >= c.Len() {
		return c, true
	}
	out := New()
	for _, id := range c.IDs()[:size] {
		out.Add(c.utterances[id])
	}
	return out, false
}
