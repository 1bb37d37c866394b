package captions

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
	"unicode/utf8"
)

// Segment is one subtitle cue: start offset in seconds plus its text.
type Segment struct {
	StartSec float64
	Text     string
}

// ParseFile reads an SRT subtitle file into segments. Malformed blocks are
// skipped, not fatal; a missing file returns an empty slice.
func ParseFile(path string) ([]Segment, error) {
	if path == "" {
		return nil, nil
	}
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to open subtitle file: %w", err)
	}
	defer f.Close()

	var segs []Segment
	var block []string

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			if seg, ok := parseBlock(block); ok {
				segs = append(segs, seg)
			}
			block = block[:0]
			continue
		}
		block = append(block, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read subtitle file: %w", err)
	}
	if seg, ok := parseBlock(block); ok {
		segs = append(segs, seg)
	}

	return segs, nil
}

// parseBlock expects [index, "start --> end", text...]. Anything else is
// rejected.
func parseBlock(block []string) (Segment, bool) {
	if len(block) < 3 {
		return Segment{}, false
	}

	times := block[1]
	idx := strings.Index(times, "-->")
	if idx < 0 {
		return Segment{}, false
	}

	start, err := parseTimestamp(strings.TrimSpace(times[:idx]))
	if err != nil {
		return Segment{}, false
	}

	return Segment{
		StartSec: start,
		Text:     strings.Join(block[2:], " "),
	}, true
}

// parseTimestamp converts "HH:MM:SS,mmm" to seconds.
func parseTimestamp(ts string) (float64, error) {
	parts := strings.Split(ts, ":")
	if len(parts) != 3 {
		return 0, fmt.Errorf("malformed timestamp %q", ts)
	}

	h, err := strconv.ParseFloat(parts[0], 64)
	if err != nil {
		return 0, fmt.Errorf("malformed hours in %q", ts)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0, fmt.Errorf("malformed minutes in %q", ts)
	}
	s, err := strconv.ParseFloat(strings.ReplaceAll(parts[2], ",", "."), 64)
	if err != nil {
		return 0, fmt.Errorf("malformed seconds in %q", ts)
	}

	return float64(int(h))*3600 + float64(m)*60 + s, nil
}

// JoinText concatenates segment texts, truncated to at most maxLen bytes
// without splitting a rune.
func JoinText(segs []Segment, maxLen int) string {
	parts := make([]string, 0, len(segs))
	for _, s := range segs {
		parts = append(parts, s.Text)
	}
	text := strings.Join(parts, " ")
	if len(text) > maxLen {
		for maxLen > 0 && !utf8.RuneStart(text[maxLen]) {
			maxLen--
		}
		text = text[:maxLen]
	}
	return text
}
