package lexicon

import "strings"

// TagSeparator joins a phone base with its tone or diphthong tag in the
// rendered form, e.g. "a_t1".
const TagSeparator = "_"

// Phone is one pronunciation unit. Tag carries optional tone or diphthong
// side-information used as a decision-tree clustering question; a tagged
// phone is still the same phoneme as its base unless a rule table says
// otherwise.
type Phone struct {
	Base string
	Tag  string
}

// String renders the phone in toolkit form.
func (p Phone) String() string {
	if p.Tag == "" {
		return p.Base
	}
	return p.Base + TagSeparator + p.Tag
}

// ParsePhone splits a rendered phone back into base and tag.
func ParsePhone(s string) Phone {
	base, tag, found := strings.Cut(s, TagSeparator)
	if !found {
		return Phone{Base: s}
	}
	return Phone{Base: base, Tag: tag}
}

// Pronunciation is an ordered phone sequence for one word.
type Pronunciation []Phone

// String renders the pronunciation as space-separated phones.
func (p Pronunciation) String() string {
	parts := make([]string, len(p))
	for i, phone := range p {
		parts[i] = phone.String()
	}
	return strings.Join(parts, " ")
}

// ParsePronunciation parses space-separated rendered phones.
func ParsePronunciation(s string) Pronunciation {
	fields := strings.Fields(s)
	pron := make(Pronunciation, 0, len(fields))
	for _, field := range fields {
		pron = append(pron, ParsePhone(field))
	}
	return pron
}
