package lexicon

import (
	"bufio"
	"fmt"
	"os"
	"sort"
	"strings"

	"golang.org/x/text/unicode/norm"

	"polytrain/internal/services"
)

// Dictionary is one item's (or the combined) pronunciation dictionary. The
// silence lexicon is fixed and shared; only non-silence entries vary.
type Dictionary struct {
	prons map[string][]Pronunciation
}

// NewDictionary returns an empty dictionary.
func NewDictionary() *Dictionary {
	return &Dictionary{prons: make(map[string][]Pronunciation)}
}

// AddPronunciation records a pronunciation for word, collapsing duplicates.
// It reports whether the pronunciation was new.
func (d *Dictionary) AddPronunciation(word string, pron Pronunciation) bool {
	rendered := pron.String()
	for _, existing := range d.prons[word] {
		if existing.String() == rendered {
			return false
		}
	}
	d.prons[word] = append(d.prons[word], pron)
	return true
}

// Words returns all non-silence words in sorted order.
func (d *Dictionary) Words() []string {
	words := make([]string, 0, len(d.prons))
	for word := range d.prons {
		words = append(words, word)
	}
	sort.Strings(words)
	return words
}

// Pronunciations returns the pronunciations of word sorted by rendered form.
func (d *Dictionary) Pronunciations(word string) []Pronunciation {
	prons := append([]Pronunciation(nil), d.prons[word]...)
	sort.Slice(prons, func(i, j int) bool { return prons[i].String() < prons[j].String() })
	return prons
}

// Len returns the non-silence word count.
func (d *Dictionary) Len() int {
	return len(d.prons)
}

// ParseLexicon reads a raw item lexicon ("word phone [phone...]" lines) and
// partitions it against the fixed silence vocabulary: silence words are
// dropped in favor of their canonical pronunciations, everything else becomes
// a non-silence entry. Words are NFC-normalized for stable cross-item merges.
func ParseLexicon(path string) (*Dictionary, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, services.Wrap(services.ErrState, "lexicon", "parse", fmt.Sprintf("open %s", path), err)
	}
	defer file.Close()

	dict := NewDictionary()
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		word, rest, found := strings.Cut(line, "\t")
		if !found {
			word, rest, found = strings.Cut(line, " ")
		}
		if !found || strings.TrimSpace(rest) == "" {
			return nil, services.Wrap(services.ErrData, "lexicon", "parse",
				fmt.Sprintf("%s:%d: malformed lexicon entry %q", path, lineNo, line), nil)
		}
		word = norm.NFC.String(strings.TrimSpace(word))
		if IsSilenceWord(word) {
			continue
		}
		dict.AddPronunciation(word, ParsePronunciation(rest))
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan %s: %w", path, err)
	}
	return dict, nil
}

// Standardize applies an item's rule table to every pronunciation and returns
// the standardized dictionary with duplicate pronunciations collapsed.
func (d *Dictionary) Standardize(rules *Rules) (*Dictionary, error) {
	out := NewDictionary()
	for _, word := range d.Words() {
		for _, pron := range d.Pronunciations(word) {
			standardized, err := rules.Apply(pron)
			if err != nil {
				return nil, fmt.Errorf("word %q: %w", word, err)
			}
			out.AddPronunciation(word, standardized)
		}
	}
	return out, nil
}

// PhoneInventory returns the non-silence phones grouped by base, each group
// sorted: tagged variants of one base share a group so the toolkit treats
// them as one phoneme with clustering questions.
func (d *Dictionary) PhoneInventory() [][]string {
	byBase := make(map[string]map[string]struct{})
	for _, prons := range d.prons {
		for _, pron := range prons {
			for _, phone := range pron {
				if byBase[phone.Base] == nil {
					byBase[phone.Base] = make(map[string]struct{})
				}
				byBase[phone.Base][phone.String()] = struct{}{}
			}
		}
	}
	bases := make([]string, 0, len(byBase))
	for base := range byBase {
		bases = append(bases, base)
	}
	sort.Strings(bases)

	inventory := make([][]string, 0, len(bases))
	for _, base := range bases {
		group := make([]string, 0, len(byBase[base]))
		for phone := range byBase[base] {
			group = append(group, phone)
		}
		sort.Strings(group)
		inventory = append(inventory, group)
	}
	return inventory
}

// Questions returns the decision-tree clustering question sets derived from
// tags: for every tag, the sorted set of phones carrying it.
func (d *Dictionary) Questions() [][]string {
	byTag := make(map[string]map[string]struct{})
	for _, prons := range d.prons {
		for _, pron := range prons {
			for _, phone := range pron {
				if phone.Tag == "" {
					continue
				}
				if byTag[phone.Tag] == nil {
					byTag[phone.Tag] = make(map[string]struct{})
				}
				byTag[phone.Tag][phone.String()] = struct{}{}
			}
		}
	}
	tags := make([]string, 0, len(byTag))
	for tag := range byTag {
		tags = append(tags, tag)
	}
	sort.Strings(tags)

	questions := make([][]string, 0, len(tags))
	for _, tag := range tags {
		group := make([]string, 0, len(byTag[tag]))
		for phone := range byTag[tag] {
			group = append(group, phone)
		}
		sort.Strings(group)
		questions = append(questions, group)
	}
	return questions
}
