package gravitus

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/andybalholm/cascadia"
	"github.com/claude/liftlog/internal/models"
	"golang.org/x/net/html"
)

var (
	// ErrNoTitle is returned when a workout page has no title element.
	ErrNoTitle = errors.New("workout title not found")
	// ErrNoDate is returned when a workout page has no #started-at element.
	ErrNoDate = errors.New("workout date not found")
)

var (
	selListing     = cascadia.MustCompile("body > div > div.small-header-offset > div > div > div > div.title > a")
	selTitle       = cascadia.MustCompile("body > div > div.small-header-offset > div > div > div.workout > div.title")
	selDescription = cascadia.MustCompile("body > div > div.small-header-offset > div > div > div.workout > div.description")
	selDate        = cascadia.MustCompile("#started-at")
	selExercise    = cascadia.MustCompile("body > div > div.small-header-offset > div > div > div > div > a")
	selSets        = cascadia.MustCompile("body > div > div.small-header-offset > div > div > div > div.sets")
)

// Link is a workout entry from a user's listing page.
type Link struct {
	Title string `json:"title"`
	Href  string `json:"url"`
}

// ExtractLinks returns the workout links on one listing page. An empty
// result means the listing is exhausted.
func ExtractLinks(r io.Reader) ([]Link, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("parsing listing page: %w", err)
	}
	var links []Link
	for _, a := range selListing.MatchAll(doc) {
		links = append(links, Link{Title: text(a), Href: attr(a, "href")})
	}
	return links, nil
}

// ExtractWorkout builds a workout record from a workout page. Exercise names
// and set lists are paired in document order; extra entries on either side
// are dropped. Names are kept as the site spells them.
func ExtractWorkout(r io.Reader, href string) (models.Workout, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return models.Workout{}, fmt.Errorf("parsing workout page: %w", err)
	}

	title := selTitle.MatchFirst(doc)
	if title == nil {
		return models.Workout{}, ErrNoTitle
	}
	date := selDate.MatchFirst(doc)
	if date == nil {
		return models.Workout{}, ErrNoDate
	}

	w := models.Workout{
		Source: models.SourceGravitus,
		Title:  strings.TrimSpace(text(title)),
		Date:   normalizeDate(date),
		URL:    href,
		Work:   make(map[string][]string),
	}
	if d := selDescription.MatchFirst(doc); d != nil {
		w.Description = strings.TrimSpace(text(d))
	}

	names := selExercise.MatchAll(doc)
	sets := selSets.MatchAll(doc)
	for i := 0; i < len(names) && i < len(sets); i++ {
		w.Work[text(names[i])] = splitSets(text(sets[i]))
	}
	return w, nil
}

func splitSets(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, len(parts))
	for i, p := range parts {
		out[i] = strings.TrimSpace(p)
	}
	return out
}

var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
	"January 2, 2006",
	"Jan 2, 2006",
	"Monday, January 2, 2006",
	"Mon, Jan 2, 2006",
	"January 2, 2006 3:04 PM",
	"Jan 2, 2006 3:04 PM",
	"02/01/2006",
}

// normalizeDate renders the workout start as YYYY-MM-DD. A datetime
// attribute wins over the element text; unrecognized text is kept trimmed.
func normalizeDate(n *html.Node) string {
	raw := strings.TrimSpace(attr(n, "datetime"))
	if raw == "" {
		raw = strings.TrimSpace(text(n))
	}
	raw = strings.Join(strings.Fields(raw), " ")
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.Format("2006-01-02")
		}
	}
	return raw
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

// text concatenates all text below n.
func text(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return b.String()
}
