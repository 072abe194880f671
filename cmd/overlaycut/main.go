package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/kikiluvv/overlaycut/internal/api"
	"github.com/kikiluvv/overlaycut/internal/compose"
	"github.com/kikiluvv/overlaycut/internal/config"
	"github.com/kikiluvv/overlaycut/internal/editor"
	"github.com/kikiluvv/overlaycut/internal/ffmpeg"
	"github.com/kikiluvv/overlaycut/internal/geometry"
	"github.com/kikiluvv/overlaycut/internal/guides"
	"github.com/kikiluvv/overlaycut/internal/gui"
	"github.com/kikiluvv/overlaycut/internal/logging"
	"github.com/kikiluvv/overlaycut/internal/pipeline"
	"github.com/kikiluvv/overlaycut/internal/session"
	"github.com/kikiluvv/overlaycut/pkg/util"
)

var (
	cfgFile string
	verbose bool
	jsonLog bool
)

func main() {
	ctx := context.Background()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "overlaycut",
	Short: "overlaycut - trim videos and burn in text and image overlays",
	Long:  "Place time-bounded text and image overlays on a video, trim it, and export a file that matches the preview.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		logging.Init(verbose, jsonLog)

		cfg, err := config.Load(cfgFile)
		if err != nil {
			return err
		}

		cmd.SetContext(config.WithConfig(cmd.Context(), cfg))
		return nil
	},
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().BoolVar(&jsonLog, "json", false, "log as JSON")

	exportCmd.Flags().StringP("output", "o", "", "output file (default: project name with the container extension)")
	trimCmd.Flags().String("start", "", "trim start (SS.mmm, MM:SS or HH:MM:SS.mmm)")
	trimCmd.Flags().String("end", "", "trim end (SS.mmm, MM:SS or HH:MM:SS.mmm)")
	trimCmd.Flags().StringP("output", "o", "", "output file (default: <input>-trim.<ext>)")
	trimCmd.Flags().Bool("reencode", false, "cut frame-accurately instead of at keyframes")
	trimCmd.MarkFlagRequired("start")
	trimCmd.MarkFlagRequired("end")
	editCmd.Flags().String("session", "", "resume a saved session by id")

	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(trimCmd)
	rootCmd.AddCommand(probeCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(editCmd)
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd)
}

func newBackend(ctx context.Context, cfg *config.Config) (*ffmpeg.Backend, error) {
	backend := ffmpeg.NewBackend(log.Logger, ffmpeg.Options{
		BinaryPath: cfg.FFmpeg.BinaryPath,
		ProbePath:  cfg.FFmpeg.ProbePath,
		Threads:    cfg.FFmpeg.Threads,
	})
	if err := backend.Load(ctx); err != nil {
		return nil, err
	}
	return backend, nil
}

func newEngine(cfg *config.Config, backend *ffmpeg.Backend) *compose.Engine {
	return compose.NewEngine(log.Logger, backend, compose.Options{
		ScratchDir: cfg.TempDir,
		FontFile:   cfg.FFmpeg.FontFile,
	})
}

var exportCmd = &cobra.Command{
	Use:   "export [project file]",
	Short: "Render a YAML project to a video file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		cfg := config.FromContext(ctx)

		backend, err := newBackend(ctx, cfg)
		if err != nil {
			return err
		}

		req, err := loadProject(args[0], cfg)
		if err != nil {
			return err
		}
		if req.MediaDuration <= 0 || !req.OutputSize.Valid() {
			info, err := backend.Executor().ProbeVideo(ctx, req.Source)
			if err != nil {
				return err
			}
			fillFromProbe(&req, info)
		}

		output, _ := cmd.Flags().GetString("output")
		if output == "" {
			output = util.ReplaceExtension(args[0], req.Container.Extension())
		}

		ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
		defer stop()

		last := -1
		blob, err := newEngine(cfg, backend).Export(ctx, req, func(p int) {
			if p/10 != last/10 || p == 100 {
				log.Info().Int("percent", p).Msg("exporting")
			}
			last = p
		})
		if err != nil {
			var exportErr *compose.ExportError
			if errors.As(err, &exportErr) {
				tried := make([]string, 0, len(exportErr.Config.Tried))
				for _, c := range exportErr.Config.Tried {
					tried = append(tried, c.String())
				}
				log.Error().
					Strs("tried", tried).
					Str("quality", exportErr.Config.Quality.String()).
					Str("container", exportErr.Config.Container.String()).
					Msg("export configuration")
			}
			return err
		}

		if err := os.WriteFile(output, blob.Data, 0644); err != nil {
			return fmt.Errorf("write %s: %w", output, err)
		}
		for _, n := range blob.Notes {
			log.Warn().Str("overlay", n.OverlayID).Msg(n.Reason)
		}
		log.Info().
			Str("output", output).
			Str("codec", blob.Codec.String()).
			Int("bytes", len(blob.Data)).
			Msg("export complete")
		return nil
	},
}

var trimCmd = &cobra.Command{
	Use:   "trim [input video]",
	Short: "Cut a time range out of a video",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		cfg := config.FromContext(ctx)

		startFlag, _ := cmd.Flags().GetString("start")
		endFlag, _ := cmd.Flags().GetString("end")
		start, err := util.ParseTimestamp(startFlag)
		if err != nil {
			return err
		}
		end, err := util.ParseTimestamp(endFlag)
		if err != nil {
			return err
		}

		output, _ := cmd.Flags().GetString("output")
		if output == "" {
			ext := filepath.Ext(args[0])
			output = util.ReplaceExtension(args[0], "-trim"+ext)
		}
		reencode, _ := cmd.Flags().GetBool("reencode")

		backend, err := newBackend(ctx, cfg)
		if err != nil {
			return err
		}

		err = backend.Executor().Trim(ctx, args[0], ffmpeg.TrimOptions{
			Start:    start,
			End:      end,
			Output:   output,
			Reencode: reencode,
		})
		if err != nil {
			return err
		}

		log.Info().Str("output", output).Float64("duration", end-start).Msg("trim complete")
		return nil
	},
}

var probeCmd = &cobra.Command{
	Use:   "probe [input video]",
	Short: "Print video metadata as YAML",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		backend, err := newBackend(ctx, config.FromContext(ctx))
		if err != nil {
			return err
		}
		info, err := backend.Executor().ProbeVideo(ctx, args[0])
		if err != nil {
			return err
		}

		out, err := yaml.Marshal(probeSummary(info))
		if err != nil {
			return err
		}
		fmt.Print(string(out))
		return nil
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the export and session HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		cfg := config.FromContext(ctx)
		logger := logging.WithComponent("serve")

		backend, err := newBackend(ctx, cfg)
		if err != nil {
			return err
		}
		version, _ := backend.Executor().Version(ctx)

		if err := util.EnsureDir(filepath.Dir(cfg.Session.DBPath)); err != nil {
			return err
		}
		store, err := session.Open(cfg.Session.DBPath, log.Logger)
		if err != nil {
			return err
		}
		defer store.Close()

		manager := pipeline.New(log.Logger, newEngine(cfg, backend))
		defer manager.Close()

		server := api.NewServer(api.ServerConfig{
			Addr:          cfg.Server.Addr,
			Manager:       manager,
			Sessions:      store,
			Logger:        log.Logger,
			StartTime:     time.Now(),
			FFmpegVersion: version,
		})

		errCh := make(chan error, 1)
		go func() {
			errCh <- server.Start()
		}()

		sigCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
		defer stop()

		select {
		case err := <-errCh:
			return err
		case <-sigCtx.Done():
		}

		logger.Info().Msg("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	},
}

var editCmd = &cobra.Command{
	Use:   "edit [input video]",
	Short: "Open the desktop editor",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		cfg := config.FromContext(ctx)

		backend, err := newBackend(ctx, cfg)
		if err != nil {
			return err
		}

		if err := util.EnsureDir(cfg.WorkDir); err != nil {
			return err
		}
		if err := util.EnsureDir(filepath.Dir(cfg.Session.DBPath)); err != nil {
			return err
		}
		store, err := session.Open(cfg.Session.DBPath, log.Logger)
		if err != nil {
			return err
		}
		defer store.Close()

		preview := geometry.Size{Width: float64(cfg.Editor.PreviewWidth), Height: float64(cfg.Editor.PreviewHeight)}
		ed := editor.New(editor.Deps{
			Logger:     log.Logger,
			Guides:     guides.NewEngine(cfg.Editor.SnapThreshold, cfg.Editor.GridCell),
			Surface:    geometry.NewSurface(preview),
			Media:      backend.Executor(),
			WorkDir:    cfg.WorkDir,
			MinTrimGap: cfg.Editor.MinTrimGap,
			GridSnap:   cfg.Editor.GridSnap,
		})

		output := cfg.Export.OutputSize()
		if id, _ := cmd.Flags().GetString("session"); id != "" {
			st, err := store.Load(ctx, id)
			if err != nil {
				return fmt.Errorf("load session %s: %w", id, err)
			}
			ed.Restore(st)
			if !output.Valid() {
				if info, err := backend.Executor().ProbeVideo(ctx, st.Source); err == nil {
					output = geometry.Size{Width: float64(info.Width), Height: float64(info.Height)}
				}
			}
		} else if len(args) == 1 {
			if _, err := ed.Open(ctx, args[0]); err != nil {
				return err
			}
		}

		gui.RunGUI(ed, pipeline.New(log.Logger, newEngine(cfg, backend)), gui.Options{
			Logger:      log.Logger,
			PreviewSize: preview,
			OutputSize:  output,
			Quality:     cfg.Export.DefaultQuality,
			Container:   cfg.Export.DefaultContainer,
			Sessions:    store,
			Frames:      backend.Executor(),
			TempDir:     cfg.TempDir,
		})
		return nil
	},
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Config management commands",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		out, err := yaml.Marshal(config.FromContext(cmd.Context()))
		if err != nil {
			return err
		}
		fmt.Print(string(out))
		return nil
	},
}
