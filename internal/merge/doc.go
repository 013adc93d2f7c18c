// Package merge unions per-item corpora and dictionaries into the combined
// dataset: prefixed utterance and speaker sets joined without collision, and
// lexicons joined word-by-word with every alternate pronunciation preserved.
package merge
