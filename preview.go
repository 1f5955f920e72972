package main

import (
	"fmt"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"

	"github.com/Zachkp/portfolio/internal/anchor"
	"github.com/Zachkp/portfolio/internal/cms"
	"github.com/Zachkp/portfolio/internal/content"
	"github.com/Zachkp/portfolio/internal/gate"
)

func newPreviewCommand() *cobra.Command {
	var projectID string
	var contentDir string
	var cmsURL string
	var unlocked bool
	var margin float64

	cmd := &cobra.Command{
		Use:   "preview",
		Short: "Show the blocks a visitor sees for a project",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client := cms.New(cms.Options{BaseURL: cmsURL, ContentDir: contentDir})
			p, err := client.Project(cmd.Context(), projectID)
			if err != nil {
				return fmt.Errorf("load project %q: %w", projectID, err)
			}
			fmt.Fprint(cmd.OutOrStdout(), previewReport(p, unlocked, margin))
			return nil
		},
	}

	cmd.Flags().StringVarP(&projectID, "project", "p", "", "Project id to preview")
	cmd.Flags().StringVar(&contentDir, "content-dir", "content", "Directory holding projects/<id>.yaml")
	cmd.Flags().StringVar(&cmsURL, "cms-url", "", "Remote CMS base URL (local files are used when empty)")
	cmd.Flags().BoolVar(&unlocked, "unlocked", false, "Preview as a visitor who entered the password")
	cmd.Flags().Float64Var(&margin, "margin", anchor.DefaultMargin, "Skip link visibility margin in pixels")
	_ = cmd.MarkFlagRequired("project")
	return cmd
}

// previewReport lists the gated sequence with estimated offsets and the skip
// link window for that layout.
func previewReport(p content.Project, unlocked bool, margin float64) string {
	blocks := gate.Sequence(p.Blocks, unlocked)
	layout := anchor.EstimateLayout(blocks, 0, nil)

	reg := anchor.NewRegistry(margin)
	scanErr := reg.Scan(blocks)
	layout.Apply(reg)

	state := "locked"
	if unlocked {
		state = "unlocked"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s (%s): %d of %d blocks\n", p.Title, state, len(blocks), len(p.Blocks))

	rows := make([][]string, 0, len(blocks))
	for i, blk := range blocks {
		key := blk.Meta().Key
		marker := ""
		switch key {
		case reg.Start():
			marker = "skip start"
		case reg.End():
			marker = "skip end"
		}
		rows = append(rows, []string{
			fmt.Sprintf("%d", i+1),
			key,
			string(blk.Kind()),
			string(gate.Effective(blk)),
			fmt.Sprintf("%.0f", layout.Offsets[i]),
			marker,
		})
	}
	b.WriteString(renderTable(
		[]string{"#", "Key", "Type", "Visibility", "Offset", "Anchor"},
		rows,
		[]columnAlignment{alignRight, alignLeft, alignLeft, alignLeft, alignRight, alignLeft},
	))
	b.WriteString("\n")

	if link, ok := reg.SkipLink(); ok {
		fmt.Fprintf(&b, "Skip link %s visible for %.0f <= y < %.0f, jumps to %.0f\n",
			link.Href(), link.Start-link.Margin, link.End-link.Margin, link.Target())
	} else {
		b.WriteString("No skip link\n")
	}
	if scanErr != nil {
		fmt.Fprintf(&b, "Warning: %v\n", scanErr)
	}
	return b.String()
}

type columnAlignment int

const (
	alignLeft columnAlignment = iota
	alignRight
)

func renderTable(headers []string, rows [][]string, aligns []columnAlignment) string {
	columns := len(headers)
	if columns == 0 {
		return ""
	}

	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)

	header := make(table.Row, columns)
	for i := 0; i < columns; i++ {
		header[i] = headers[i]
	}
	tw.AppendHeader(header)

	for _, row := range rows {
		r := make(table.Row, columns)
		for i := 0; i < columns; i++ {
			if i < len(row) {
				r[i] = row[i]
			}
		}
		tw.AppendRow(r)
	}

	configs := make([]table.ColumnConfig, 0, columns)
	for i := 0; i < columns; i++ {
		align := text.AlignLeft
		if i < len(aligns) && aligns[i] == alignRight {
			align = text.AlignRight
		}
		configs = append(configs, table.ColumnConfig{Number: i + 1, Align: align, AlignHeader: text.AlignLeft})
	}
	tw.SetColumnConfigs(configs)
	return tw.Render()
}
