package chat

import "strings"

// GeneralIntent is reported when no keyword bucket matches.
const GeneralIntent = "general"

type intentBucket struct {
	name     string
	keywords []string
}

// intentBuckets are checked in order; an earlier bucket wins ties.
var intentBuckets = []intentBucket{
	{"experience", []string{"experience", "worked", "job", "role", "position", "career"}},
	{"skills", []string{"skills", "technologies", "tools", "programming", "languages"}},
	{"education", []string{"education", "degree", "university", "college", "studied", "learning"}},
	{"projects", []string{"projects", "built", "created", "developed", "portfolio"}},
	{"contact", []string{"contact", "email", "phone", "reach", "linkedin"}},
}

// Intent is a coarse classification of a question, used for logging.
type Intent struct {
	Intent     string  `json:"intent"`
	Confidence float64 `json:"confidence"`
	Length     int     `json:"length"`
	WordCount  int     `json:"word_count"`
}

// DetectIntent picks the bucket with the highest share of its keywords present in question.
func DetectIntent(question string) Intent {
	lower := strings.ToLower(strings.TrimSpace(question))
	best := Intent{Intent: GeneralIntent}
	for _, b := range intentBuckets {
		matches := 0
		for _, kw := range b.keywords {
			if strings.Contains(lower, kw) {
				matches++
			}
		}
		if matches == 0 {
			continue
		}
		if c := float64(matches) / float64(len(b.keywords)); c > best.Confidence {
			best.Intent = b.name
			best.Confidence = c
		}
	}
	best.Length = len(question)
	best.WordCount = len(strings.Fields(question))
	return best
}
