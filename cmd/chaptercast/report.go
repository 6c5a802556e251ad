package main

import (
	"fmt"
	"sort"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"chaptercast/internal/config"
	"chaptercast/internal/report"
)

var reportFlags struct {
	threshold uint32
}

var reportCmd = &cobra.Command{
	Use:   "report <episode.mp3>",
	Short: "Show the chapter table and offset diagnostics for an episode",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		threshold := reportFlags.threshold
		if threshold == 0 {
			threshold = config.NilOffsetThreshold()
		}

		rep, err := report.Diagnose(args[0], threshold)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "file: %s\n", rep.Path)
		if !rep.HasTag {
			fmt.Fprintln(out, "no ID3 tag present")
			return nil
		}
		fmt.Fprintf(out, "tag version: ID3v2.%d\n", rep.ID3Version)
		fmt.Fprintf(out, "frames: %s\n", formatFrameCounts(rep.FrameCounts))

		if rep.TOC.Selected {
			fmt.Fprintf(out, "toc: %q (top-level=%t ordered=%t, %d of %d children listed)\n",
				rep.TOC.ElementID, rep.TOC.TopLevel, rep.TOC.Ordered, len(rep.Chapters), rep.TOC.ChildIDs)
		} else {
			fmt.Fprintf(out, "toc: none (%d CTOC frames), chapters in storage order\n", rep.TOC.Count)
		}
		if rep.FileCover != nil {
			fmt.Fprintf(out, "file cover: %s, %d bytes\n", rep.FileCover.MIME, len(rep.FileCover.Data))
		}

		if len(rep.Chapters) == 0 {
			fmt.Fprintln(out, "no chapters")
			return nil
		}

		t := table.NewWriter()
		t.SetOutputMirror(out)
		t.AppendHeader(table.Row{"#", "ID", "Title", "Start", "End", "Start Off", "End Off", "Art"})
		for _, ch := range rep.Chapters {
			t.AppendRow(table.Row{
				ch.Index,
				ch.ElementID,
				ch.Title,
				formatMS(ch.StartTimeMS),
				formatMS(ch.EndTimeMS),
				formatOffset(ch.StartOffset, threshold),
				formatOffset(ch.EndOffset, threshold),
				ch.ArtState.String(),
			})
		}
		t.SetStyle(table.StyleLight)
		t.Render()
		return nil
	},
}

func init() {
	reportCmd.Flags().Uint32Var(&reportFlags.threshold, "threshold", 0,
		"offset corruption threshold (0 selects the configured default)")
}

func formatFrameCounts(counts map[string]int) string {
	ids := make([]string, 0, len(counts))
	for id := range counts {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	result := ""
	for i, id := range ids {
		if i > 0 {
			result += " "
		}
		result += fmt.Sprintf("%s=%d", id, counts[id])
	}
	return result
}

func formatMS(ms int64) string {
	d := time.Duration(ms) * time.Millisecond
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	s := int(d.Seconds()) % 60
	frac := ms % 1000
	return fmt.Sprintf("%02d:%02d:%02d.%03d", h, m, s, frac)
}

func formatOffset(value, threshold uint32) string {
	if value >= threshold {
		return fmt.Sprintf("0x%08X !", value)
	}
	return fmt.Sprintf("%d", value)
}
