package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/spf13/cobra"

	"image-browser/internal/engine"
	"image-browser/internal/logging"
	"image-browser/internal/media"
	"image-browser/internal/startup"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

// newEngine reads the shared configuration, applies the --cache-dir
// override and creates an engine. The caller must Close it.
func newEngine(cmd *cobra.Command) (*engine.Engine, *startup.Config, error) {
	cfg, err := startup.ReadConfig()
	if err != nil {
		return nil, nil, fmt.Errorf("reading config: %w", err)
	}
	if dir, _ := cmd.Flags().GetString("cache-dir"); dir != "" {
		cfg.CacheDir = dir
	}

	eng, err := engine.New(engine.Config{
		CacheDir:          cfg.CacheDir,
		Thumbnail:         cfg.Thumbnail,
		MetadataRetention: cfg.MetadataRetention,
		Workers:           cfg.Workers,
		UseVips:           cfg.VipsEnabled,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("initializing engine: %w", err)
	}
	return eng, cfg, nil
}

func closeEngine(eng *engine.Engine) {
	if err := eng.Close(); err != nil {
		logging.Warn("closing engine: %v", err)
	}
}

func absPaths(args []string) ([]string, error) {
	out := make([]string, len(args))
	for i, a := range args {
		p, err := filepath.Abs(a)
		if err != nil {
			return nil, fmt.Errorf("resolving %s: %w", a, err)
		}
		out[i] = p
	}
	return out, nil
}

func printJSON(w io.Writer, v interface{}, compact bool) error {
	enc := json.NewEncoder(w)
	if !compact {
		enc.SetIndent("", "  ")
	}
	return enc.Encode(v)
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:          "imgmeta",
		Short:        "Read image metadata, write ratings and build thumbnails",
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().String("cache-dir", "", "Cache directory (overrides CACHE_DIR)")

	rootCmd.AddCommand(newMetadataCmd())
	rootCmd.AddCommand(newThumbnailCmd())
	rootCmd.AddCommand(newRateCmd())
	rootCmd.AddCommand(newClearCacheCmd())
	rootCmd.AddCommand(newVersionCmd())
	return rootCmd
}

// metadataEntry is one line of `imgmeta metadata` output.
type metadataEntry struct {
	Path     string               `json:"path"`
	Metadata *media.ImageMetadata `json:"metadata,omitempty"`
	Error    string               `json:"error,omitempty"`
}

func newMetadataCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "metadata <path>...",
		Short: "Print dimensions, rating, capture dates and generation parameters as JSON",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			compact, _ := cmd.Flags().GetBool("compact")
			paths, err := absPaths(args)
			if err != nil {
				return err
			}
			eng, _, err := newEngine(cmd)
			if err != nil {
				return err
			}
			defer closeEngine(eng)

			results := eng.ReadMetadataBatch(cmd.Context(), paths)
			entries := make([]metadataEntry, len(results))
			failed := 0
			for i, r := range results {
				entries[i].Path = args[i]
				if r.Err != nil {
					entries[i].Error = r.Err.Error()
					failed++
					continue
				}
				md := r.Metadata
				entries[i].Metadata = &md
			}

			if err := printJSON(cmd.OutOrStdout(), entries, compact); err != nil {
				return err
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d files failed", failed, len(args))
			}
			return nil
		},
	}
	cmd.Flags().Bool("compact", false, "Print JSON on one line")
	return cmd
}

func newThumbnailCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "thumbnail <path>",
		Short: "Write a thumbnail of an image",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			paths, err := absPaths(args)
			if err != nil {
				return err
			}
			eng, _, err := newEngine(cmd)
			if err != nil {
				return err
			}
			defer closeEngine(eng)

			tc := eng.ThumbnailConfig()
			if cmd.Flags().Changed("size") {
				tc.Size, _ = cmd.Flags().GetInt("size")
			}
			if cmd.Flags().Changed("quality") {
				tc.Quality, _ = cmd.Flags().GetInt("quality")
			}
			if cmd.Flags().Changed("format") {
				tc.Format, _ = cmd.Flags().GetString("format")
			}

			thumb, err := eng.GenerateThumbnailWithConfig(cmd.Context(), paths[0], tc)
			if err != nil {
				return err
			}

			out, _ := cmd.Flags().GetString("output")
			if out == "" {
				base := filepath.Base(args[0])
				out = base[:len(base)-len(filepath.Ext(base))] + ".thumb" + thumb.Extension()
			}
			if err := os.WriteFile(out, thumb.Data, 0o644); err != nil {
				return fmt.Errorf("writing thumbnail: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %dx%d %s (%d bytes)\n", out, thumb.Width, thumb.Height, thumb.MIMEType, len(thumb.Data))
			return nil
		},
	}
	cmd.Flags().StringP("output", "o", "", "Output file (default <name>.thumb.<ext> in the current directory)")
	cmd.Flags().Int("size", media.DefaultThumbnailSize, "Longest side in pixels")
	cmd.Flags().Int("quality", media.DefaultThumbnailQuality, "Encoder quality 1-100")
	cmd.Flags().String("format", media.DefaultThumbnailFormat, "webp or jpeg")
	return cmd
}

func newRateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rate <path> <0-5>",
		Short: "Write a star rating into an image's EXIF and XMP",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			rating, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("invalid rating %q: %w", args[1], err)
			}
			paths, err := absPaths(args[:1])
			if err != nil {
				return err
			}
			eng, _, err := newEngine(cmd)
			if err != nil {
				return err
			}
			defer closeEngine(eng)

			if err := eng.WriteRating(cmd.Context(), paths[0], rating); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: rating %d\n", args[0], rating)
			return nil
		},
	}
}

func newClearCacheCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clear-cache",
		Short: "Remove every cached thumbnail",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			eng, cfg, err := newEngine(cmd)
			if err != nil {
				return err
			}
			defer closeEngine(eng)

			removed, err := eng.ClearThumbnailCache(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %d thumbnails from %s\n", removed, filepath.Join(cfg.CacheDir, engine.ThumbnailDirName))
			return nil
		},
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print build information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return printJSON(cmd.OutOrStdout(), startup.GetBuildInfo(), false)
		},
	}
}
