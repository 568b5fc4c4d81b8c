package cli

import (
	"fmt"
	"io"
	"slices"
	"strings"
	"text/tabwriter"
	"unicode/utf8"

	"github.com/dmitrijs2005/storyqueue/internal/client/models"
)

const timeLayout = "2006-01-02 15:04"

type draftOrder int

const (
	orderQueued draftOrder = iota
	orderTextAsc
	orderTextDesc
)

// selectDrafts keeps drafts whose text contains filter, ignoring case, and
// orders them. orderQueued keeps the input order.
func selectDrafts(drafts []models.Draft, filter string, order draftOrder) []models.Draft {
	filter = strings.ToLower(strings.TrimSpace(filter))
	out := make([]models.Draft, 0, len(drafts))
	for _, d := range drafts {
		if filter == "" || strings.Contains(strings.ToLower(d.Description), filter) ||
			strings.Contains(strings.ToLower(d.Title), filter) {
			out = append(out, d)
		}
	}
	if order == orderQueued {
		return out
	}
	slices.SortStableFunc(out, func(a, b models.Draft) int {
		c := strings.Compare(strings.ToLower(a.Description), strings.ToLower(b.Description))
		if order == orderTextDesc {
			return -c
		}
		return c
	})
	return out
}

func renderDrafts(w io.Writer, drafts []models.Draft) error {
	if len(drafts) == 0 {
		_, err := fmt.Fprintln(w, "No drafts queued.")
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tCREATED\tTITLE\tDESCRIPTION")
	for _, d := range drafts {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n",
			d.ID, d.CreatedAt.UTC().Format(timeLayout), truncate(d.Title, 24), truncate(d.Description, 40))
	}
	return tw.Flush()
}

func renderStories(w io.Writer, stories []models.Story) error {
	if len(stories) == 0 {
		_, err := fmt.Fprintln(w, "No stories yet.")
		return err
	}
	for _, s := range stories {
		loc := ""
		if s.Lat != nil && s.Lon != nil {
			loc = fmt.Sprintf(" @ %.4f,%.4f", *s.Lat, *s.Lon)
		}
		if _, err := fmt.Fprintf(w, "- %s (%s%s): %s\n",
			s.Name, s.CreatedAt.UTC().Format(timeLayout), loc, truncate(s.Description, 60)); err != nil {
			return err
		}
	}
	return nil
}

// truncate shortens s to at most n runes, marking the cut with "...".
func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n-3]) + "..."
}
