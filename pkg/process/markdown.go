package process

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/PuerkitoBio/goquery"

	"github.com/Sriram-PR/quiz-scraper/pkg/utils"
)

// quizRules map the fragment classes onto Markdown structure.
// A nil replacement falls through to the default div handling.
var quizRules = []md.Rule{
	{
		Filter: []string{"div"},
		Replacement: func(content string, selec *goquery.Selection, opt *md.Options) *string {
			content = strings.TrimSpace(content)
			switch {
			case selec.HasClass("chapter-header"):
				return md.String("\n\n# " + content + "\n\n")
			case selec.HasClass("question"):
				return md.String("\n\n**" + content + "**\n\n")
			case selec.HasClass("option"):
				return md.String("\n- " + content + "\n")
			case selec.HasClass("ans-block"):
				return md.String("\n\n> " + strings.ReplaceAll(content, "\n", "\n> ") + "\n\n")
			}
			return nil
		},
	},
}

// ToMarkdown converts harvested quiz HTML to Markdown
func ToMarkdown(htmlContent string) (string, error) {
	converter := md.NewConverter("", true, nil)
	converter.AddRules(quizRules...)
	out, err := converter.ConvertString(htmlContent)
	if err != nil {
		return "", fmt.Errorf("%w: %w", utils.ErrMarkdownConversion, err)
	}
	return out, nil
}

// WriteMarkdown converts htmlContent and writes it to path
func WriteMarkdown(path, htmlContent string) error {
	out, err := ToMarkdown(htmlContent)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("%w: creating output directory '%s': %w", utils.ErrFilesystem, filepath.Dir(path), err)
	}
	if err := os.WriteFile(path, []byte(out), 0644); err != nil {
		return fmt.Errorf("%w: saving markdown '%s': %w", utils.ErrFilesystem, path, err)
	}
	return nil
}
