package notes

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"

	"golang.org/x/net/html"

	"github.com/Danwoltrs/wolthers-travel-app-sub001/client/media"
)

const (
	MeetingDateLayout = "Monday, January 2, 03:04 PM"
	placeholderText   = "Meeting notes..."
	liveTranscriptTag = `<div data-live-transcript="true">`
)

var liveTranscriptBlock = regexp.MustCompile(`(?s)<div data-live-transcript="true">.*?</div>`)

// Document is the body of a meeting note as the server stores it.
type Document struct {
	HTML        string            `json:"html"`
	PlainText   string            `json:"plainText"`
	Elements    []json.RawMessage `json:"elements,omitempty"`
	Media       []media.Entry     `json:"media,omitempty"`
	Attachments []Attachment      `json:"attachments,omitempty"`
}

type Attachment struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	URL        string    `json:"url"`
	Size       int       `json:"size"`
	Type       string    `json:"type"`
	UploadedAt time.Time `json:"uploadedAt"`
}

type Company struct {
	ID              string   `json:"company_id,omitempty"`
	Name            string   `json:"company_name"`
	Representatives []string `json:"representatives,omitempty"`
}

func (d Document) clone() Document {
	d.Elements = append([]json.RawMessage(nil), d.Elements...)
	d.Media = append([]media.Entry(nil), d.Media...)
	d.Attachments = append([]Attachment(nil), d.Attachments...)
	return d
}

// DecodeDocument accepts both the structured body and legacy plain text.
func DecodeDocument(raw json.RawMessage) (Document, error) {
	var doc Document
	if len(raw) == 0 || string(raw) == "null" {
		return doc, nil
	}
	if raw[0] == '"' {
		var text string
		if err := json.Unmarshal(raw, &text); err != nil {
			return doc, fmt.Errorf("failed to decode note text: %w", err)
		}
		doc.HTML = strings.ReplaceAll(html.EscapeString(text), "\n", "<br>")
		doc.PlainText = text
		return doc, nil
	}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return doc, fmt.Errorf("failed to decode note: %w", err)
	}
	media.SortTimeline(doc.Media)
	return doc, nil
}

// Template is the starting body of a note nobody has written yet.
func Template(title string, meeting time.Time, companies []Company) Document {
	var b strings.Builder
	fmt.Fprintf(&b, "<h3>%s</h3><p><strong>%s</strong></p>",
		html.EscapeString(title), meeting.Format(MeetingDateLayout))

	if len(companies) > 0 {
		lines := make([]string, 0, len(companies))
		for _, c := range companies {
			line := html.EscapeString(c.Name)
			if len(c.Representatives) > 0 {
				line += " (" + html.EscapeString(strings.Join(c.Representatives, ", ")) + ")"
			}
			lines = append(lines, line)
		}
		b.WriteString("<p><strong>Companies Present:</strong><br>")
		b.WriteString(strings.Join(lines, "<br>"))
		b.WriteString("</p>")
	}
	b.WriteString("<p><br></p><p>" + placeholderText + "</p>")

	return Document{HTML: b.String(), PlainText: title}
}

// PlainText renders the visible text of an HTML fragment, one line per
// block element.
func PlainText(fragment string) string {
	z := html.NewTokenizer(strings.NewReader(fragment))
	var b strings.Builder
	newline := func() {
		if b.Len() > 0 && !strings.HasSuffix(b.String(), "\n") {
			b.WriteByte('\n')
		}
	}

	for {
		switch z.Next() {
		case html.ErrorToken:
			lines := strings.Split(b.String(), "\n")
			for i, l := range lines {
				lines[i] = strings.TrimSpace(l)
			}
			return strings.TrimSpace(strings.Join(lines, "\n"))
		case html.TextToken:
			b.Write(z.Text())
		case html.StartTagToken, html.EndTagToken, html.SelfClosingTagToken:
			name, _ := z.TagName()
			switch string(name) {
			case "br", "p", "div", "li", "tr", "h1", "h2", "h3", "h4", "h5", "h6":
				newline()
			}
		}
	}
}

func transcriptBlock(e media.Entry) string {
	label := "Transcript"
	if e.RelativeTime != "" {
		label += " (" + e.RelativeTime + ")"
	}
	return fmt.Sprintf(`<div class="transcript"><p><strong>%s</strong></p><p>%s</p></div>`,
		label, html.EscapeString(e.Text))
}

func liveBlock(text string) string {
	return liveTranscriptTag + "<p><em>Live transcript: " + html.EscapeString(text) + "</em></p></div>"
}

func summaryBlock(summary string) string {
	var b strings.Builder
	b.WriteString(`<div class="summary"><h4>AI Summary</h4>`)
	for _, p := range strings.Split(strings.TrimSpace(summary), "\n") {
		if p = strings.TrimSpace(p); p != "" {
			b.WriteString("<p>" + html.EscapeString(p) + "</p>")
		}
	}
	b.WriteString("</div>")
	return b.String()
}

func removeLiveTranscript(body string) string {
	return liveTranscriptBlock.ReplaceAllString(body, "")
}
