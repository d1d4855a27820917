package process

import (
	"html"
	"strings"

	"github.com/Sriram-PR/quiz-scraper/pkg/models"
)

// ChapterHeader builds the banner that opens a chapter on a new page
func ChapterHeader(title string) models.Fragment {
	return models.Fragment{
		Kind: models.FragmentChapterHeader,
		HTML: "<div class='chapter-header'>" + html.EscapeString(title) + "</div>",
	}
}

// TopicHeader builds the heading placed above a topic's questions
func TopicHeader(title string) models.Fragment {
	return models.Fragment{
		Kind: models.FragmentTopicHeader,
		HTML: "<h2 class='topic-header'>" + html.EscapeString(title) + "</h2>",
	}
}

// JoinFragments concatenates fragments in order, one per line
func JoinFragments(fragments []models.Fragment) string {
	var sb strings.Builder
	for _, f := range fragments {
		sb.WriteString(f.HTML)
		sb.WriteByte('\n')
	}
	return sb.String()
}
