package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"chaptercast/internal/config"
	"chaptercast/internal/encoder"
	"chaptercast/internal/episode"
	"chaptercast/internal/metadata"
)

var buildFlags struct {
	episodeDate  string
	episodeTitle string
	playlist     string
	output       string
	defaultImage string
	bitrate      string
}

var buildCmd = &cobra.Command{
	Use:   "build",
	Short: "Assemble a chaptered episode from an M3U playlist",
	RunE: func(cmd *cobra.Command, args []string) error {
		show, err := config.ResolveShowMetadata()
		if err != nil {
			return fmt.Errorf("resolve show metadata: %w", err)
		}

		bitrate := buildFlags.bitrate
		if bitrate == "" {
			bitrate = config.Bitrate()
		}

		ff := encoder.NewFFmpeg(logger, encoder.WithBinary(config.FFmpegBinary()))
		builder := episode.NewBuilder(
			metadata.NewFileProvider(),
			ff,
			episode.ShowDefaults{Artist: show.Author, Album: show.Album},
			logger,
		)

		chapters, err := builder.Build(cmd.Context(), episode.BuildRequest{
			EpisodeDate:  buildFlags.episodeDate,
			EpisodeTitle: buildFlags.episodeTitle,
			PlaylistPath: buildFlags.playlist,
			OutputPath:   buildFlags.output,
			DefaultImage: buildFlags.defaultImage,
			Bitrate:      bitrate,
		})
		if err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "built %s with %d chapters\n", buildFlags.output, len(chapters))
		return nil
	},
}

func init() {
	flags := buildCmd.Flags()
	flags.StringVar(&buildFlags.episodeDate, "episode-date", "", "episode date code, e.g. 20251105")
	flags.StringVar(&buildFlags.episodeTitle, "episode-title", "", "episode title for the global tag")
	flags.StringVar(&buildFlags.playlist, "playlist", "", "path to the M3U playlist")
	flags.StringVar(&buildFlags.output, "output", "", "path of the MP3 file to produce")
	flags.StringVar(&buildFlags.defaultImage, "default-image", "", "fallback chapter artwork (PNG or JPEG)")
	flags.StringVar(&buildFlags.bitrate, "bitrate", "", "output bitrate, e.g. 128k")

	for _, name := range []string{"episode-date", "episode-title", "playlist", "output"} {
		if err := buildCmd.MarkFlagRequired(name); err != nil {
			panic(err)
		}
	}
}
