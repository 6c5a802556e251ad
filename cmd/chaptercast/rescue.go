package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"chaptercast/internal/config"
	"chaptercast/internal/rescue"
)

var rescueFlags struct {
	threshold uint32
}

var rescueCmd = &cobra.Command{
	Use:   "rescue <source.mp3> <destination.mp3>",
	Short: "Copy an episode and reset its corrupted chapter offsets",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		threshold := rescueFlags.threshold
		if threshold == 0 {
			threshold = config.NilOffsetThreshold()
		}

		r := rescue.NewRescuer(threshold, logger)
		res, err := r.Rescue(args[0], args[1])
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if res.Modified == 0 {
			fmt.Fprintf(out, "%s: no corrupted offsets, copied unchanged to %s\n", res.Source, res.Destination)
			return nil
		}
		fmt.Fprintf(out, "%s: repaired %d of %d chapters into %s\n",
			res.Source, res.Modified, res.Chapters, res.Destination)
		return nil
	},
}

func init() {
	rescueCmd.Flags().Uint32Var(&rescueFlags.threshold, "threshold", 0,
		"offset corruption threshold (0 selects the configured default)")
}
