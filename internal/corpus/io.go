package corpus

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"polytrain/internal/services"
)

// Data-directory file names shared with the external toolkit.
const (
	textFile    = "text"
	wavFile     = "wav.scp"
	utt2spkFile = "utt2spk"
	spk2uttFile = "spk2utt"
)

// Read loads a corpus from a toolkit data directory. Every utterance must
// appear in text, wav.scp, and utt2spk; inconsistencies are data errors.
func Read(dir string) (*Corpus, error) {
	transcripts, err := readKeyedLines(filepath.Join(dir, textFile), true)
	if err != nil {
		return nil, err
	}
	audio, err := readKeyedLines(filepath.Join(dir, wavFile), false)
	if err != nil {
		return nil, err
	}
	speakers, err := readKeyedLines(filepath.Join(dir, utt2spkFile), false)
	if err != nil {
		return nil, err
	}

	c := New()
	for id, transcript := range transcripts {
		speaker, ok := speakers[id]
		if !ok {
			return nil, services.Wrap(services.ErrData, "corpus", "read",
				fmt.Sprintf("utterance %q has no utt2spk entry in %s", id, dir), nil)
		}
		wav, ok := audio[id]
		if !ok {
			return nil, services.Wrap(services.ErrData, "corpus", "read",
				fmt.Sprintf("utterance %q has no wav.scp entry in %s", id, dir), nil)
		}
		c.Add(Utterance{ID: id, Speaker: speaker, Transcript: transcript, Audio: wav})
	}
	for id := range speakers {
		if _, ok := transcripts[id]; !ok {
			return nil, services.Wrap(services.ErrData, "corpus", "read",
				fmt.Sprintf("utt2spk entry %q has no transcript in %s", id, dir), nil)
		}
	}
	for id := range audio {
		if _, ok := transcripts[id]; !ok {
			return nil, services.Wrap(services.ErrData, "corpus", "read",
				fmt.Sprintf("wav.scp entry %q has no transcript in %s", id, dir), nil)
		}
	}
	return c, nil
}

// Write persists the corpus to a toolkit data directory with deterministic
// ordering. spk2utt is derived from utt2spk.
func Write(c *Corpus, dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create data directory %q: %w", dir, err)
	}

	ids := c.IDs()

	var text, wav, utt2spk strings.Builder
	spk2utt := make(map[string][]string)
	for _, id := range ids {
		utt := c.utterances[id]
		fmt.Fprintf(&text, "%s %s\n", id, utt.Transcript)
		fmt.Fprintf(&wav, "%s %s\n", id, utt.Audio)
		fmt.Fprintf(&utt2spk, "%s %s\n", id, utt.Speaker)
		spk2utt[utt.Speaker] = append(spk2utt[utt.Speaker], id)
	}

	speakers := make([]string, 0, len(spk2utt))
	for speaker := range spk2utt {
		speakers = append(speakers, speaker)
	}
	sort.Strings(speakers)
	var spk strings.Builder
	for _, speaker := range speakers {
		utts := spk2utt[speaker]
		sort.Strings(utts)
		fmt.Fprintf(&spk, "%s %s\n", speaker, strings.Join(utts, " "))
	}

	files := map[string]string{
		textFile:    text.String(),
		wavFile:     wav.String(),
		utt2spkFile: utt2spk.String(),
		spk2uttFile: spk.String(),
	}
	for name, body := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644); err != nil {
			return fmt.Errorf("write %s: %w", name, err)
		}
	}
	return nil
}

// readKeyedLines parses "<key> <rest>" lines. When allowEmptyRest is false a
// line without a value field is malformed.
func readKeyedLines(path string, allowEmptyRest bool) (map[string]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, services.Wrap(services.ErrState, "corpus", "read", fmt.Sprintf("open %s", path), err)
	}
	defer file.Close()

	entries := make(map[string]string)
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimRight(scanner.Text(), " \t\r")
		if line == "" {
			continue
		}
		key, rest, found := strings.Cut(line, " ")
		if key == "" || (!found || rest == "") && !allowEmptyRest {
			return nil, services.Wrap(services.ErrData, "corpus", "read",
				fmt.Sprintf("%s:%d: malformed entry %q", path, lineNo, line), nil)
		}
		if _, dup := entries[key]; dup {
			return nil, services.Wrap(services.ErrData, "corpus", "read",
				fmt.Sprintf("%s:%d: duplicate key %q", path, lineNo, key), nil)
		}
		entries[key] = rest
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan %s: %w", path, err)
	}
	return entries, nil
}
