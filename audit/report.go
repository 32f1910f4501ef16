package audit

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"
)

// maxKeys limits the tag key tables.
const maxKeys = 50

// Print writes all tables of the report to w.
func (r *Report) Print(w io.Writer) error {
	tw := tabwriter.NewWriter(w, 0, 8, 2, ' ', 0)

	fmt.Fprintf(tw, "Audited %d nodes and ways, %d inside of region %s\n", r.Elements, r.RegionElements, r.Region)

	fmt.Fprintln(tw, "\nUnexpected street types:")
	types := make([]string, 0, len(r.StreetTypes))
	for t := range r.StreetTypes {
		types = append(types, t)
	}
	sort.Strings(types)
	for _, t := range types {
		fmt.Fprintf(tw, "  %s\t%s\n", t, strings.Join(r.StreetTypes[t], "; "))
	}

	fmt.Fprintln(tw, "\nMisspelled street names:")
	for _, c := range r.Misspelled {
		fmt.Fprintf(tw, "  %s\t=> %s\n", c.Name, c.Corrected)
	}

	printCounts(tw, "Phone numbers", r.Phones, 0)
	printCounts(tw, "Phone numbers after normalization", r.PhonesAfter, 0)
	printCounts(tw, "House numbers", r.Houses, 0)
	printCounts(tw, "House numbers after normalization", r.HousesAfter, 0)
	printCounts(tw, "Node keys", r.NodeKeys, maxKeys)
	printCounts(tw, "Way keys", r.WayKeys, maxKeys)

	return tw.Flush()
}

func printCounts(w io.Writer, title string, counts []Count, limit int) {
	fmt.Fprintf(w, "\n%s:\n", title)
	for i, c := range counts {
		if limit > 0 && i >= limit {
			fmt.Fprintf(w, "  ...\t%d more\n", len(counts)-limit)
			break
		}
		fmt.Fprintf(w, "  %s\t%d\n", c.Key, c.N)
	}
}
