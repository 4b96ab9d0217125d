package slack

import (
	"regexp"
	"strconv"
	"strings"
)

// ParsedCheckIn is a structured daily check-in extracted from a DM reply.
type ParsedCheckIn struct {
	WorkedOn    string
	WorkingNext string
	Blockers    string
	Score       int
}

// BlockersNone is stored when a reply omits item 3 or leaves it blank.
const BlockersNone = "None"

var itemPatterns = [4]*regexp.Regexp{
	regexp.MustCompile(`^1\.\s+(.*)$`),
	regexp.MustCompile(`^2\.\s+(.*)$`),
	regexp.MustCompile(`^3\.\s+(.*)$`),
	regexp.MustCompile(`^4\.\s+(.*)$`),
}

// ParseCheckIn parses a free-text reply in the numbered 1-4 format that the
// reminder message asks for. Items may appear in any order; only the numeric
// prefix matters, and the first matching line wins per item. A nil return
// means the reply did not follow the format and the sender should get the
// help message instead. Nothing is ever persisted from a nil parse.
func ParseCheckIn(text string) *ParsedCheckIn {
	var items [4]string
	var found [4]bool

	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		for i, re := range itemPatterns {
			if found[i] {
				continue
			}
			if m := re.FindStringSubmatch(line); m != nil {
				items[i] = strings.TrimSpace(m[1])
				found[i] = true
			}
		}
	}

	if items[0] == "" || items[1] == "" || items[3] == "" {
		return nil
	}

	score, err := strconv.Atoi(items[3])
	if err != nil || score < 1 || score > 5 {
		return nil
	}

	blockers := items[2]
	if blockers == "" {
		blockers = BlockersNone
	}

	return &ParsedCheckIn{
		WorkedOn:    items[0],
		WorkingNext: items[1],
		Blockers:    blockers,
		Score:       score,
	}
}
