// Package lexicon models pronunciation dictionaries: word-to-phone mappings,
// the fixed silence vocabulary, per-item standardization rules (diphthong
// splits, tone tags), and the phone inventory and clustering questions
// derived from them. Directory layout follows the external toolkit's dict
// convention (lexicon.txt, silence_phones.txt, nonsilence_phones.txt,
// optional_silence.txt, extra_questions.txt).
package lexicon
