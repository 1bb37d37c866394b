package insights

import (
	"sort"
	"strings"

	prose "github.com/jdkato/prose/v2"
	"go.uber.org/zap"

	"github.com/yt-audit/backend/internal/storage/models"
	"github.com/yt-audit/backend/pkg/logger"
)

const (
	themeTextBudget = 20000
	themeCount      = 5
	themeMinHits    = 3
)

var themeStopwords = map[string]bool{
	"video": true, "videos": true, "channel": true, "thanks": true,
	"thing": true, "things": true, "time": true, "way": true,
	"lot": true, "guy": true, "guys": true, "something": true,
	"someone": true, "anyone": true, "everyone": true, "people": true,
}

// commentThemes tokenizes the stored comments and surfaces the nouns viewers
// keep coming back to as one extra insight. Returns false when there is
// nothing worth reporting.
func commentThemes(comments []models.Comment) (string, bool) {
	if len(comments) == 0 {
		return "", false
	}

	var b strings.Builder
	for _, c := range comments {
		if b.Len() >= themeTextBudget {
			break
		}
		b.WriteString(c.Text)
		b.WriteString("\n")
	}

	doc, err := prose.NewDocument(b.String(), prose.WithExtraction(false))
	if err != nil {
		logger.Warn("Comment tokenization failed", zap.Error(err))
		return "", false
	}

	counts := make(map[string]int)
	for _, tok := range doc.Tokens() {
		switch tok.Tag {
		case "NN", "NNS", "NNP", "NNPS":
		default:
			continue
		}
		word := strings.ToLower(tok.Text)
		if len(word) < 4 || themeStopwords[word] {
			continue
		}
		counts[word]++
	}

	type themeHit struct {
		word string
		n    int
	}
	var hits []themeHit
	for w, n := range counts {
		if n >= themeMinHits {
			hits = append(hits, themeHit{w, n})
		}
	}
	if len(hits) == 0 {
		return "", false
	}

	sort.Slice(hits, func(i, j int) bool {
		if hits[i].n != hits[j].n {
			return hits[i].n > hits[j].n
		}
		return hits[i].word < hits[j].word
	})
	if len(hits) > themeCount {
		hits = hits[:themeCount]
	}

	words := make([]string, 0, len(hits))
	for _, h := range hits {
		words = append(words, h.word)
	}

	return "Comments keep returning to: " + strings.Join(words, ", ") + ". Consider a follow-up video on these topics.", true
}
