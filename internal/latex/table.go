package latex

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/olekukonko/tablewriter"
)

var (
	tabularRe     = regexp.MustCompile(`(?s)\\begin\{tabular\*?\}\{([^}]*)\}(.*?)\\end\{tabular\*?\}`)
	rowBreakRe    = regexp.MustCompile(`\\\\`)
	multicolumnRe = regexp.MustCompile(`(?s)\\multicolumn\{(\d+)\}\{[^}]*\}\{(.*)\}`)
	multirowRe    = regexp.MustCompile(`(?s)\\multirow\{(\d+)\}\{[^}]*\}\{(.*)\}`)
	captionRe     = regexp.MustCompile(`\\caption\{([^}]*)\}`)
	hlineRe       = regexp.MustCompile(`\\(?:hline|toprule|midrule|bottomrule|cline\{[^}]*\})`)
)

// ParseTable converts a LaTeX table environment's source into a fixed-width
// text table. Multicolumn cells are duplicated across their span, multirow
// content is propagated down its column, and column alignment is inferred
// from the tabular spec, defaulting to centered on mismatch. A caption found
// anywhere in the source is appended as a trailing line.
func (b *Builder) ParseTable(src string) (string, error) {
	m := tabularRe.FindStringSubmatch(src)
	if m == nil {
		return "", fmt.Errorf("no tabular content found")
	}
	colSpec, body := m[1], strings.TrimSpace(m[2])
	body = hlineRe.ReplaceAllString(body, "")

	rows := rowBreakRe.Split(body, -1)
	var data [][]string
	for i, row := range rows {
		cols := splitColumns(row)
		// A trailing row break leaves one empty fragment; drop it.
		if len(cols) == 1 && i == len(rows)-1 && strings.TrimSpace(cols[0]) == "" {
			continue
		}
		var expanded []string
		for _, col := range cols {
			if mc := multicolumnRe.FindStringSubmatch(col); mc != nil {
				n, _ := strconv.Atoi(mc[1])
				for k := 0; k < n; k++ {
					expanded = append(expanded, mc[2])
				}
			} else {
				expanded = append(expanded, col)
			}
		}
		data = append(data, expanded)
	}
	if len(data) == 0 {
		return "", fmt.Errorf("empty table body")
	}

	// Propagate \multirow content down its column, then clean every cell.
	for i, row := range data {
		for j := range row {
			if mr := multirowRe.FindStringSubmatch(row[j]); mr != nil {
				n, _ := strconv.Atoi(mr[1])
				for k := 0; k < n && i+k < len(data); k++ {
					if j < len(data[i+k]) {
						data[i+k][j] = mr[2]
					}
				}
			}
			row[j] = Clean(b.encoder.Encode(data[i][j]))
		}
	}

	alignment := inferAlignment(colSpec, len(data[0]))

	var buf strings.Builder
	table := tablewriter.NewWriter(&buf)
	table.SetAutoFormatHeaders(false)
	table.SetAutoWrapText(false)
	table.SetHeader(data[0])
	table.SetHeaderAlignment(tablewriter.ALIGN_CENTER)
	table.SetColumnAlignment(alignment)
	for _, row := range data[1:] {
		table.Append(row)
	}
	table.Render()

	out := strings.TrimRight(buf.String(), "\n") + "\nTable"
	if m := captionRe.FindStringSubmatch(src); m != nil {
		out += ": " + b.encoder.Encode(m[1])
	}
	return out, nil
}

// splitColumns splits a table row on unescaped & separators.
func splitColumns(row string) []string {
	var cols []string
	start := 0
	for i := 0; i < len(row); i++ {
		switch row[i] {
		case '\\':
			i++
		case '&':
			cols = append(cols, row[start:i])
			start = i + 1
		}
	}
	return append(cols, row[start:])
}

// inferAlignment maps the tabular column spec's l/c/r letters to alignments,
// falling back to all-centered when the letter count does not match the data.
func inferAlignment(colSpec string, numCols int) []int {
	var letters []int
	for _, c := range colSpec {
		switch c {
		case 'l':
			letters = append(letters, tablewriter.ALIGN_LEFT)
		case 'c':
			letters = append(letters, tablewriter.ALIGN_CENTER)
		case 'r':
			letters = append(letters, tablewriter.ALIGN_RIGHT)
		}
	}
	if len(letters) != numCols {
		letters = make([]int, numCols)
		for i := range letters {
			letters[i] = tablewriter.ALIGN_CENTER
		}
	}
	return letters
}
