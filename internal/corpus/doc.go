// Package corpus models a speech data directory: utterances with speakers,
// transcripts, and audio references, read from and written to the
// line-oriented text/wav.scp/utt2spk layout the external toolkit consumes.
// It also implements identifier prefixing and deterministic subsetting.
package corpus
