package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/log"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/text/language"

	"github.com/ironsheep/smart-ocr/internal/app"
	"github.com/ironsheep/smart-ocr/internal/camera"
	"github.com/ironsheep/smart-ocr/internal/config"
	"github.com/ironsheep/smart-ocr/internal/imaging"
	"github.com/ironsheep/smart-ocr/internal/logging"
	"github.com/ironsheep/smart-ocr/internal/permission"
	"github.com/ironsheep/smart-ocr/internal/recognition"
	"github.com/ironsheep/smart-ocr/internal/speech"
	"github.com/ironsheep/smart-ocr/internal/ui"
	"github.com/ironsheep/smart-ocr/internal/voice"
)

func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	v := viper.New()
	if err := config.BindFlags(v, cmd.Flags()); err != nil {
		return nil, err
	}
	return config.Load(v, cfgFile)
}

func runApp(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	logger, closeLog, err := logging.New(logging.Options{Level: cfg.Log.Level, File: cfg.Log.File})
	if err != nil {
		return err
	}
	defer closeLog()
	logger.Info("Starting smart-ocr", "version", Version, "commit", GitCommit, "source", cfg.Camera.Source)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	yes, _ := cmd.Flags().GetBool("yes")
	gate := newGate(cfg, yes, logger)

	// The prompt needs the terminal, so it runs before the UI starts. The
	// controller asks again later and gets the recorded answer.
	granted := make(chan bool, 1)
	gate.RequestIfNeeded(ctx, func(ok bool) { granted <- ok })
	if !<-granted {
		fmt.Fprintln(os.Stderr, app.NoticePermissionDenied)
		return permission.ErrPermissionDenied
	}

	styles, err := ui.NewStyles(cfg.Overlay.Foreground, cfg.Overlay.Background)
	if err != nil {
		return fmt.Errorf("overlay colours: %w", err)
	}

	bridge := ui.NewBridge()
	defer bridge.Close()
	preview := ui.NewPreview(bridge.Send)

	deps := app.Deps{
		Gate:               gate,
		Pipeline:           camera.NewPipeline(logger),
		Source:             newSource(cfg, logger),
		Preview:            preview,
		Recognizer:         newRecognizer(cfg, logger),
		RecognitionOptions: recognitionOptions(cfg),
		Engine:             speech.NewCommandEngine(cfg.TTS.Binary, cfg.TTS.Rate),
		SpeechOptions: speech.Options{
			Preferred: language.MustParse(cfg.TTS.Preferred),
			Fallback:  language.MustParse(cfg.TTS.Fallback),
		},
		Dispatcher: bridge,
		Triggers:   voice.NewTriggers(cfg.STT.Triggers...),
		VoiceRequest: voice.Request{
			Language:   cfg.STT.Language,
			MaxResults: voice.DefaultRequest().MaxResults,
		},
		Screen: bridge,
	}
	if rec := newVoiceRecognizer(cfg, logger); rec != nil {
		deps.VoiceRecognizer = rec
	}

	controller := app.New(deps, logger)
	model := ui.NewModel(ctx, controller, preview, ui.Options{
		PreviewLength: cfg.Overlay.PreviewLength,
		ShowPreview:   cfg.Overlay.ShowPreview,
		Styles:        styles,
		Listening: func() bool {
			l := controller.Listener()
			return l != nil && l.Listening()
		},
	})

	p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithMouseCellMotion(), tea.WithContext(ctx))
	bridge.Attach(p)
	_, runErr := p.Run()

	controller.Shutdown()
	logger.Info("Stopped")

	if err := controller.Err(); err != nil {
		return err
	}
	if runErr != nil && !errors.Is(runErr, tea.ErrProgramKilled) {
		return fmt.Errorf("ui: %w", runErr)
	}
	return nil
}

// newGate builds the permission gate. With yes set every prompt is answered
// Allow without touching the terminal; a missing device still denies.
func newGate(cfg *config.Config, yes bool, logger *log.Logger) *permission.Gate {
	paths := cfg.Permissions.DevicePaths()
	if cfg.Camera.Source != config.SourceCommand {
		delete(paths, permission.Camera)
	}
	registry := permission.NewSessionRegistry(permission.StatProbe(paths), cfg.Permissions.AssumedGrants()...)

	var prompter permission.Prompter = permission.FormPrompter{AppName: "smart-ocr"}
	if yes {
		prompter = permission.StaticPrompter{Allow: true}
	}
	return permission.NewGate(registry, prompter, logger)
}

func newSource(cfg *config.Config, logger *log.Logger) camera.Source {
	if cfg.Camera.Source == config.SourceDir {
		return &camera.DirSource{
			Dir:      cfg.Camera.Dir,
			Interval: cfg.Camera.Interval,
			Rotation: cfg.Camera.Rotation,
			Loop:     cfg.Camera.Loop,
			Cache:    imaging.NewImageCache(),
			Log:      logger,
		}
	}
	return &camera.CommandSource{
		Argv:     cfg.Camera.Command,
		Rotation: cfg.Camera.Rotation,
		Log:      logger,
	}
}

func newRecognizer(cfg *config.Config, logger *log.Logger) recognition.Recognizer {
	tess, err := recognition.NewTesseract(recognition.TesseractConfig{
		Languages:      cfg.OCR.Languages,
		TessdataPrefix: cfg.OCR.TessdataPrefix,
	})
	if err != nil {
		logger.Error("Text recognition unavailable", "err", err)
		return recognition.Unavailable{}
	}
	logger.Info("Text recognizer ready", "languages", tess.Languages())
	return tess
}

func recognitionOptions(cfg *config.Config) recognition.Options {
	return recognition.Options{
		CropToText:        cfg.OCR.CropToText,
		MinTextConfidence: cfg.OCR.MinTextConfidence,
		Prepare:           cfg.OCR.Prepare,
		PrepareOptions: imaging.PrepareOptions{
			Contrast:  cfg.OCR.Contrast,
			MinHeight: cfg.OCR.MinHeight,
		},
	}
}

// newVoiceRecognizer returns nil when voice commands cannot run. The result
// is checked before it is stored in an interface so a nil pointer never
// becomes a non-nil voice.Recognizer.
func newVoiceRecognizer(cfg *config.Config, logger *log.Logger) *voice.WhisperRecognizer {
	if !cfg.STT.Enabled {
		logger.Info("Voice commands disabled by configuration")
		return nil
	}
	rec, err := voice.NewWhisperRecognizer(voice.WhisperConfig{
		APIKey:   cfg.STT.APIKey,
		BaseURL:  cfg.STT.BaseURL,
		Model:    cfg.STT.Model,
		Recorder: voice.RecorderArgs(cfg.STT.Recorder, cfg.STT.Window),
		Timeout:  cfg.STT.Timeout,
	}, logger)
	if err != nil {
		logger.Warn("Voice commands unavailable", "err", err)
		return nil
	}
	return rec
}

func runVoices(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	engine := speech.NewCommandEngine(cfg.TTS.Binary, cfg.TTS.Rate)
	if err := engine.Init(cmd.Context()); err != nil {
		return err
	}
	defer engine.Shutdown()

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Voice", "Language", "Preferred"})
	table.SetBorder(false)
	table.SetAutoWrapText(false)

	preferred := language.MustParse(cfg.TTS.Preferred)
	for _, v := range engine.Voices() {
		mark := ""
		if v.Tag == preferred {
			mark = "*"
		}
		table.Append([]string{v.Name, v.Tag.String(), mark})
	}
	table.Render()
	return nil
}
