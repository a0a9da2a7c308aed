package main

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"text/tabwriter"

	"github.com/danceforge/backoffice/internal/catalog"
	"github.com/danceforge/backoffice/internal/models"
)

func errInvalidSort(key string) error {
	return fmt.Errorf("unknown sort %q", key)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newTable(w io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
}

func printChecklist(w io.Writer, snap *models.ChecklistSnapshot) {
	tw := newTable(w)
	fmt.Fprintln(tw, "CATEGORY\tITEM\tSTATUS\tMESSAGE")
	for _, cat := range snap.Categories {
		for _, item := range cat.Items {
			msg := ""
			if item.Result != nil {
				msg = item.Result.Message
			}
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", cat.ID, item.ID, item.Status, msg)
		}
	}
	tw.Flush()
}

func printResults(w io.Writer, results map[string]*models.TestResult) {
	ids := make([]string, 0, len(results))
	for id := range results {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	tw := newTable(w)
	fmt.Fprintln(tw, "TEST\tSTATUS\tMESSAGE")
	for _, id := range ids {
		r := results[id]
		fmt.Fprintf(tw, "%s\t%s\t%s\n", id, r.Status(), r.Message)
		for _, action := range r.ActionItems {
			fmt.Fprintf(tw, "\t\t- %s\n", action)
		}
	}
	tw.Flush()
}

func printCounters(w io.Writer, c models.ChecklistCounters) {
	fmt.Fprintf(w, "\n%d/%d passed (%d%%), %d failed, %d warning, %d pending\n",
		c.Passed, c.Total, c.ProgressPercentage, c.Failed, c.Warning, c.PendingOrRunning)
}

func printPage(w io.Writer, p *models.CatalogPage) {
	tw := newTable(w)
	fmt.Fprintln(tw, "ID\tTITLE\tPRICE\tSTYLE\tSELLER")
	for _, r := range p.Items {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\n",
			r.ID, r.Title, catalog.ParsePrice(r.Price).StringFixed(2), r.DanceStyle, r.Seller.DisplayName())
	}
	tw.Flush()
	fmt.Fprintf(w, "\npage %d of %d, %d resources\n", p.Page, p.TotalPages, p.Total)
}

func printFacets(w io.Writer, fc *models.FacetCounts) {
	tw := newTable(w)
	fmt.Fprintln(tw, "FACET\tVALUE\tCOUNT")
	for _, facet := range []struct {
		name   string
		counts map[string]int
	}{
		{"danceStyle", fc.DanceStyle},
		{"ageRange", fc.AgeRange},
		{"difficultyLevel", fc.DifficultyLevel},
		{"format", fc.Format},
		{"price", fc.Price},
	} {
		values := make([]string, 0, len(facet.counts))
		for v := range facet.counts {
			values = append(values, v)
		}
		sort.Strings(values)
		for _, v := range values {
			fmt.Fprintf(tw, "%s\t%s\t%d\n", facet.name, v, facet.counts[v])
		}
	}
	tw.Flush()
}
