package report

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

var markdown = goldmark.New(goldmark.WithExtensions(extension.GFM))

var markdownEscaper = strings.NewReplacer(
	`\`, `\\`, "*", `\*`, "_", `\_`, "`", "\\`", "[", `\[`, "]", `\]`,
	"<", `\<`, ">", `\>`, "#", `\#`, "|", `\|`, "~", `\~`,
)

// BodyMarkdown renders the summary as the markdown source of the email body.
func BodyMarkdown(s Summary) string {
	var b strings.Builder
	fmt.Fprintf(&b, "## Daily Attendance Report\n\n**Date:** %s\n\n", s.LongDate())

	fmt.Fprintf(&b, "### Present Faculty (%d)\n\n", len(s.Present))
	if len(s.Present) == 0 {
		b.WriteString("_None_\n")
	}
	for _, e := range s.Present {
		fmt.Fprintf(&b, "- %s (%s) - %s - Scanned at: %s\n",
			esc(e.User.DisplayName()), esc(e.User.Username), esc(department(e.User)), s.ScanTime(e.ScannedAt))
	}

	fmt.Fprintf(&b, "\n### Absent Faculty (%d)\n\n", len(s.Absent))
	if len(s.Absent) == 0 {
		b.WriteString("_None_\n")
	}
	for _, u := range s.Absent {
		fmt.Fprintf(&b, "- %s (%s) - %s\n", esc(u.DisplayName()), esc(u.Username), esc(department(u)))
	}

	fmt.Fprintf(&b, "\n| | |\n|---|---|\n| **Total Faculty** | %d |\n| **Present** | %d |\n| **Absent** | %d |\n| **Attendance Rate** | %s |\n",
		s.Total(), len(s.Present), len(s.Absent), s.RateString())
	b.WriteString("\n---\n\n_This is an automated email from the campus attendance system._\n")
	return b.String()
}

// BuildBody renders the email body as an HTML document.
func BuildBody(s Summary) (string, error) {
	var buf bytes.Buffer
	buf.WriteString("<html>\n<body>\n")
	if err := markdown.Convert([]byte(BodyMarkdown(s)), &buf); err != nil {
		return "", err
	}
	buf.WriteString("</body>\n</html>\n")
	return buf.String(), nil
}

func esc(s string) string { return markdownEscaper.Replace(s) }
