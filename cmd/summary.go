package main

import (
	"strings"
	"time"

	"github.com/fedragon/go-takeout/internal"
	"github.com/fedragon/go-takeout/internal/metrics"

	"github.com/dustin/go-humanize"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

var summaryRows = []struct {
	label  string
	metric string
}{
	{"Indexed", metrics.Indexed},
	{"Sidecars matched", metrics.SidecarMatched},
	{"Copied", metrics.Copied},
	{"Already migrated", metrics.Resumed},
	{"Duplicates", metrics.Duplicates},
	{"Errors", metrics.Errors},
	{"Album links", metrics.Linked},
	{"Hashed", metrics.Hash},
	{"Hash cache hits", metrics.CacheHits},
}

func renderSummary(s *internal.Summary) string {
	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)
	tw.AppendHeader(table.Row{"", "Value"})

	title := "Migration"
	if s.DryRun {
		title = "Migration (dry run)"
	}
	tw.SetTitle(title)

	for _, r := range summaryRows {
		tw.AppendRow(table.Row{r.label, humanize.Comma(s.Metrics.Count(r.metric))})
	}
	tw.AppendRow(table.Row{"Bytes copied", humanize.Bytes(uint64(s.Metrics.Count(metrics.BytesCopied)))})

	tw.AppendSeparator()
	for _, c := range s.Metrics.Counters() {
		if source, ok := strings.CutPrefix(c.Name, metrics.DateSource); ok {
			tw.AppendRow(table.Row{"Dated by " + source, humanize.Comma(c.Value)})
		}
	}

	tw.AppendSeparator()
	tw.AppendRow(table.Row{"Elapsed", s.Elapsed.Round(time.Millisecond).String()})
	if s.ManifestPath != "" {
		tw.AppendRow(table.Row{"Migration log", s.ManifestPath})
	}
	tw.AppendRow(table.Row{"Run", s.RunID})

	tw.SetColumnConfigs([]table.ColumnConfig{
		{Number: 2, Align: text.AlignRight},
	})

	return tw.Render()
}
