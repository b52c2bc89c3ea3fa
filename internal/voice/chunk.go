// Package voice implements the interview's speech output path: text is split
// into sentence-bounded chunks, streamed through a TTS provider, and played
// through an audio sink, with immediate cancellation.
package voice

import "strings"

// MaxChunkLen is the default maximum chunk length in bytes. Most TTS
// endpoints degrade on very long inputs; sentence-sized chunks also let
// playback start before the full text is synthesised.
const MaxChunkLen = 240

// SplitChunks splits text into chunks no longer than max bytes, preferring
// sentence boundaries. Sentences longer than max are split at word
// boundaries; a single word longer than max is hard-split.
func SplitChunks(text string, max int) []string {
	if max <= 0 {
		max = MaxChunkLen
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	var chunks []string
	var cur strings.Builder

	flush := func() {
		if cur.Len() > 0 {
			chunks = append(chunks, strings.TrimSpace(cur.String()))
			cur.Reset()
		}
	}

	for _, sentence := range splitSentences(text) {
		if len(sentence) > max {
			flush()
			chunks = append(chunks, splitWords(sentence, max)...)
			continue
		}
		if cur.Len() > 0 && cur.Len()+1+len(sentence) > max {
			flush()
		}
		if cur.Len() > 0 {
			cur.WriteByte(' ')
		}
		cur.WriteString(sentence)
	}
	flush()
	return chunks
}

// splitSentences cuts text after '.', '!', or '?' when followed by
// whitespace or end of input.
func splitSentences(text string) []string {
	var out []string
	start := 0
	for i := 0; i < len(text); i++ {
		c := text[i]
		if c != '.' && c != '!' && c != '?' {
			continue
		}
		if i+1 < len(text) && !isSpace(text[i+1]) {
			continue
		}
		s := strings.TrimSpace(text[start : i+1])
		if s != "" {
			out = append(out, s)
		}
		start = i + 1
	}
	if tail := strings.TrimSpace(text[start:]); tail != "" {
		out = append(out, tail)
	}
	return out
}

// splitWords packs words into chunks of at most max bytes, hard-splitting
// any single word that exceeds max.
func splitWords(sentence string, max int) []string {
	var out []string
	var cur strings.Builder

	for _, word := range strings.Fields(sentence) {
		for len(word) > max {
			if cur.Len() > 0 {
				out = append(out, cur.String())
				cur.Reset()
			}
			out = append(out, word[:max])
			word = word[max:]
		}
		if word == "" {
			continue
		}
		if cur.Len() > 0 && cur.Len()+1+len(word) > max {
			out = append(out, cur.String())
			cur.Reset()
		}
		if cur.Len() > 0 {
			cur.WriteByte(' ')
		}
		cur.WriteString(word)
	}
	if cur.Len() > 0 {
		out = append(out, cur.String())
	}
	return out
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r'
}
