// SPDX-License-Identifier: MIT
package cmd

import (
	"fmt"
	"io"
	"strconv"

	"barviz/internal/analysis"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
)

var headerStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1)
var cellStyle = lipgloss.NewStyle().Padding(0, 1)

// WriteBands prints the band layout of p: frequency span, bin range and
// weighting of every band.
func WriteBands(w io.Writer, p analysis.Params) error {
	pl, err := analysis.NewPipeline(p)
	if err != nil {
		return err
	}
	s := pl.Strategy()
	edges := s.Edges()

	rows := make([][]string, 0, s.Bands())
	for i, f := range s.Frequencies() {
		rows = append(rows, []string{
			strconv.Itoa(i),
			fmt.Sprintf("%.1f", f.Lower),
			fmt.Sprintf("%.1f", f.Center),
			fmt.Sprintf("%.1f", f.Upper),
			fmt.Sprintf("%d-%d", edges.Lower[i], edges.Upper[i]),
			strconv.Itoa(edges.Width(i)),
			fmt.Sprintf("%+.1f", analysis.Weight(f.Center, p.Weighting)),
		})
	}

	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("Band", "Lower Hz", "Center Hz", "Upper Hz", "Bins", "Width", p.Weighting.String()+" dB").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		})

	binHz := p.SampleRate / float64(p.FrameSize)
	fmt.Fprintf(w, "%s, %.0f Hz, frame %d (%.2f Hz/bin), %s window\n",
		s, p.SampleRate, p.FrameSize, binHz, p.Window)
	_, err = fmt.Fprintln(w, t.Render())
	return err
}
