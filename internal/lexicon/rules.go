package lexicon

import (
	"bufio"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"unicode"

	"polytrain/internal/services"
)

// Rules is one item's phone standardization table: diphthong splits and tone
// tag assignments. The zero value applies no rewrites.
type Rules struct {
	// Splits maps a surface phone to its replacement sequence, each
	// replacement phone carrying any tags the table assigns.
	Splits map[string]Pronunciation
	// Tones maps a trailing tone mark (digits on a surface phone) to the
	// tag attached to the standardized phone.
	Tones map[string]string
}

// LoadRules reads an item rule table. Lines:
//
//	split <surface> <phone> [<phone>...]
//	tone  <mark> <tag>
//
// '#' starts a comment. A missing file yields empty rules: the item's phones
// pass through unchanged.
func LoadRules(path string) (*Rules, error) {
	rules := &Rules{
		Splits: make(map[string]Pronunciation),
		Tones:  make(map[string]string),
	}

	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return rules, nil
		}
		return nil, fmt.Errorf("open rule table %s: %w", path, err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Fields(line)
		switch fields[0] {
		case "split":
			if len(fields) < 3 {
				return nil, ruleError(path, lineNo, line)
			}
			pron := make(Pronunciation, 0, len(fields)-2)
			for _, field := range fields[2:] {
				pron = append(pron, ParsePhone(field))
			}
			rules.Splits[fields[1]] = pron
		case "tone":
			if len(fields) != 3 {
				return nil, ruleError(path, lineNo, line)
			}
			rules.Tones[fields[1]] = fields[2]
		default:
			return nil, ruleError(path, lineNo, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan rule table %s: %w", path, err)
	}
	return rules, nil
}

func ruleError(path string, lineNo int, line string) error {
	return services.Wrap(services.ErrData, "lexicon", "load rules",
		fmt.Sprintf("%s:%d: malformed rule %q", path, lineNo, line), nil)
}

// Apply standardizes one pronunciation: split rules rewrite whole surface
// phones; trailing tone marks move into tags via the tone table. A tone mark
// with no table entry is an unresolvable phone.
func (r *Rules) Apply(pron Pronunciation) (Pronunciation, error) {
	out := make(Pronunciation, 0, len(pron))
	for _, phone := range pron {
		surface := phone.String()
		if replacement, ok := r.Splits[surface]; ok {
			out = append(out, replacement...)
			continue
		}
		base, mark := splitToneMark(surface)
		if mark == "" {
			out = append(out, phone)
			continue
		}
		tag, ok := r.Tones[mark]
		if !ok {
			return nil, services.Wrap(services.ErrData, "lexicon", "standardize",
				fmt.Sprintf("unresolvable phone %q: no tone rule for mark %q", surface, mark), nil)
		}
		out = append(out, Phone{Base: base, Tag: tag})
	}
	return out, nil
}

// splitToneMark separates trailing digits from a surface phone.
func splitToneMark(surface string) (base, mark string) {
	cut := len(surface)
	for cut > 0 && unicode.IsDigit(rune(surface[cut-1])) {
		cut--
	}
	if cut == len(surface) || cut == 0 {
		return surface, ""
	}
	return surface[:cut], surface[cut:]
}
