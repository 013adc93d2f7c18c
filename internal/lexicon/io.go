package lexicon

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"polytrain/internal/services"
)

// Dict-directory file names shared with the external toolkit.
const (
	lexiconFile          = "lexicon.txt"
	silencePhonesFile    = "silence_phones.txt"
	nonsilencePhonesFile = "nonsilence_phones.txt"
	optionalSilenceFile  = "optional_silence.txt"
	extraQuestionsFile   = "extra_questions.txt"
)

// WriteDict persists the dictionary as a toolkit dict directory with
// deterministic ordering. The silence lexicon always leads lexicon.txt in
// canonical order.
func WriteDict(d *Dictionary, dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create dict directory %q: %w", dir, err)
	}

	var lex strings.Builder
	for _, word := range SilenceWords() {
		pron, _ := silencePronunciation(word)
		fmt.Fprintf(&lex, "%s\t%s\n", word, pron.String())
	}
	for _, word := range d.Words() {
		for _, pron := range d.Pronunciations(word) {
			fmt.Fprintf(&lex, "%s\t%s\n", word, pron.String())
		}
	}

	var silence strings.Builder
	for _, phone := range SilencePhones() {
		fmt.Fprintf(&silence, "%s\n", phone)
	}

	var nonsilence strings.Builder
	for _, group := range d.PhoneInventory() {
		fmt.Fprintf(&nonsilence, "%s\n", strings.Join(group, " "))
	}

	var questions strings.Builder
	fmt.Fprintf(&questions, "%s\n", strings.Join(SilencePhones(), " "))
	for _, group := range d.Questions() {
		fmt.Fprintf(&questions, "%s\n", strings.Join(group, " "))
	}

	files := map[string]string{
		lexiconFile:          lex.String(),
		silencePhonesFile:    silence.String(),
		nonsilencePhonesFile: nonsilence.String(),
		optionalSilenceFile:  OptionalSilencePhone + "\n",
		extraQuestionsFile:   questions.String(),
	}
	for name, body := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644); err != nil {
			return fmt.Errorf("write %s: %w", name, err)
		}
	}
	return nil
}

// ReadDict loads a dict directory previously produced by WriteDict. The
// silence portion of lexicon.txt must match the fixed silence lexicon
// exactly; divergence is a data error, never silently merged.
func ReadDict(dir string) (*Dictionary, error) {
	path := filepath.Join(dir, lexiconFile)
	file, err := os.Open(path)
	if err != nil {
		return nil, services.Wrap(services.ErrState, "lexicon", "read dict", fmt.Sprintf("open %s", path), err)
	}
	defer file.Close()

	dict := NewDictionary()
	seenSilence := make(map[string]string)
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		word, rest, found := strings.Cut(line, "\t")
		if !found {
			word, rest, found = strings.Cut(line, " ")
		}
		if !found || strings.TrimSpace(rest) == "" {
			return nil, services.Wrap(services.ErrData, "lexicon", "read dict",
				fmt.Sprintf("%s:%d: malformed lexicon entry %q", path, lineNo, line), nil)
		}
		if IsSilenceWord(word) {
			seenSilence[word] = strings.TrimSpace(rest)
			continue
		}
		dict.AddPronunciation(word, ParsePronunciation(rest))
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan %s: %w", path, err)
	}

	for _, word := range SilenceWords() {
		canonical, _ := silencePronunciation(word)
		got, ok := seenSilence[word]
		if !ok {
			return nil, services.Wrap(services.ErrData, "lexicon", "read dict",
				fmt.Sprintf("%s: silence word %q missing", path, word), nil)
		}
		if got != canonical.String() {
			return nil, services.Wrap(services.ErrData, "lexicon", "read dict",
				fmt.Sprintf("%s: silence word %q has pronunciation %q, want %q", path, word, got, canonical.String()), nil)
		}
	}
	return dict, nil
}
