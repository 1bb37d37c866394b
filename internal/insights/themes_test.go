package insights

import (
	"strings"
	"testing"

	"github.com/yt-audit/backend/internal/storage/models"
)

func TestCommentThemes(t *testing.T) {
	var comments []models.Comment
	for i := 0; i < 4; i++ {
		comments = append(comments, models.Comment{
			VideoID: "a", Type: "top",
			Text: "The editing on this tutorial is great, the editing really stands out.",
		})
	}

	insight, ok := commentThemes(comments)
	if !ok {
		t.Fatal("no theme insight produced")
	}
	if !strings.Contains(insight, "editing") {
		t.Errorf("insight = %q, want it to name the recurring noun", insight)
	}
	if !strings.HasPrefix(insight, "Comments keep returning to:") {
		t.Errorf("insight = %q", insight)
	}
}

func TestCommentThemesNoComments(t *testing.T) {
	if _, ok := commentThemes(nil); ok {
		t.Error("insight produced from no comments")
	}
}

func TestCommentThemesBelowThreshold(t *testing.T) {
	comments := []models.Comment{
		{VideoID: "a", Type: "top", Text: "interesting tutorial"},
		{VideoID: "a", Type: "top", Text: "nice lighting"},
	}
	if insight, ok := commentThemes(comments); ok {
		t.Errorf("insight %q produced although no noun repeats enough", insight)
	}
}

func TestCommentThemesStopwordsFiltered(t *testing.T) {
	var comments []models.Comment
	for i := 0; i < 5; i++ {
		comments = append(comments, models.Comment{
			VideoID: "a", Type: "top",
			Text: "Great video, thanks! This video is the best video.",
		})
	}
	if insight, ok := commentThemes(comments); ok && strings.Contains(insight, "video") {
		t.Errorf("insight %q contains a stopword", insight)
	}
}
