package usecase

import (
	"fmt"
	"math"
	"regexp"
	"sort"
	"strings"
)

var (
	sentenceSplit = regexp.MustCompile(`[.!?]+`)
	nonWord       = regexp.MustCompile(`[^\w]`)
)

// BasicSummary builds a keyword and lead-sentence summary of a transcript
// for when the language model is unreachable.
func BasicSummary(transcript string) string {
	if len(transcript) < 10 {
		return "The recording was too short to summarize."
	}

	var sentences []string
	for _, s := range sentenceSplit.Split(transcript, -1) {
		if s = strings.TrimSpace(s); s != "" {
			sentences = append(sentences, s)
		}
	}

	counts := map[string]int{}
	var order []string
	for _, w := range strings.Fields(strings.ToLower(transcript)) {
		w = nonWord.ReplaceAllString(w, "")
		if len(w) <= 3 {
			continue
		}
		if counts[w] == 0 {
			order = append(order, w)
		}
		counts[w]++
	}
	sort.SliceStable(order, func(i, j int) bool {
		return counts[order[i]] > counts[order[j]]
	})
	if len(order) > 5 {
		order = order[:5]
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Recording Duration: Approximately %d minutes of speech\n\n",
		int(math.Round(float64(len(transcript))/150)))
	if len(order) > 0 {
		fmt.Fprintf(&b, "Key Topics Mentioned: %s\n\n", strings.Join(order, ", "))
	}

	lead := min(3, (len(sentences)+2)/3)
	if lead > 0 {
		fmt.Fprintf(&b, "Content Overview: %s...", strings.Join(sentences[:lead], ". "))
	} else {
		b.WriteString("The recording contains discussion that requires manual review.")
	}

	return b.String()
}
