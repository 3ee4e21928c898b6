package cli

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

func Main() {
	_ = godotenv.Load() // best-effort: load .env if present

	root := newRootCmd()
	root.SetOut(os.Stdout)
	root.SetErr(os.Stderr)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "revoice <input.mp4|input.mov>...",
		Short:        "Re-voice short clips into the other language (ru-RU <-> en-US)",
		Args:         cobra.MinimumNArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, args)
		},
	}
	root.SilenceErrors = true

	// Visible flags
	root.Flags().String("source", "ru-RU", "Source language of the clips (ru-RU or en-US)")
	root.Flags().Float64("speed", 1.0, "Speech rate of the synthesized voice (0.8-1.3)")
	root.Flags().String("out", "out", "Output directory")
	root.Flags().Bool("verify-video", false, "Check that the video stream is bit-identical after remux")
	root.Flags().String("translator", "yandex", "Translation backend: yandex or openai")
	root.Flags().String("config", "", "Path to a YAML config file")
	root.Flags().BoolP("verbose", "v", false, "Debug logging")

	// Hidden tuning flags
	root.Flags().Int("max-duration", 30, "Max clip duration seconds")
	root.Flags().Int("retries", 3, "Recognition attempts")
	_ = root.Flags().MarkHidden("max-duration")
	_ = root.Flags().MarkHidden("retries")

	return root
}
