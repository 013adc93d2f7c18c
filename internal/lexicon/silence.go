package lexicon

// The silence lexicon is a fixed closed set shared by every item: silence,
// the unknown/out-of-vocabulary marker, noise, and voiced noise. Items may
// not extend or diverge from it.
var silenceEntries = []struct {
	Word  string
	Phone string
}{
	{"!SIL", "SIL"},
	{"<unk>", "<oov>"},
	{"<noise>", "<sss>"},
	{"<v-noise>", "<vns>"},
}

// OptionalSilencePhone is the phone inserted between words by the toolkit.
const OptionalSilencePhone = "SIL"

// IsSilenceWord reports whether word belongs to the fixed silence vocabulary.
func IsSilenceWord(word string) bool {
	for _, entry := range silenceEntries {
		if entry.Word == word {
			return true
		}
	}
	return false
}

// SilenceWords returns the silence vocabulary in canonical order.
func SilenceWords() []string {
	words := make([]string, len(silenceEntries))
	for i, entry := range silenceEntries {
		words[i] = entry.Word
	}
	return words
}

// SilencePhones returns the silence phone inventory in canonical order.
func SilencePhones() []string {
	phones := make([]string, len(silenceEntries))
	for i, entry := range silenceEntries {
		phones[i] = entry.Phone
	}
	return phones
}

func silencePronunciation(word string) (Pronunciation, bool) {
	for _, entry := range silenceEntries {
		if entry.Word == word {
			return Pronunciation{{Base: entry.Phone}}, true
		}
	}
	return nil, false
}
