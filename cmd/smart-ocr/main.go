package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ironsheep/smart-ocr/internal/permission"
	"github.com/ironsheep/smart-ocr/internal/recognition"
)

// Version information - set by ldflags during build
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "smart-ocr",
	Short: "Point a camera at printed text and have it read aloud",
	Long: `smart-ocr shows a live camera preview, recognizes English and Hindi
text in each frame and reads the latest text aloud when you double-click the
screen or say "read what is in front of me".`,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runApp,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version and OCR engine information",
	Run:   runVersion,
}

var voicesCmd = &cobra.Command{
	Use:   "voices",
	Short: "List the speech synthesizer's voices",
	RunE:  runVoices,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default ./smart-ocr.yaml)")
	rootCmd.PersistentFlags().String("log-level", "", "log level: debug, info, warn or error")
	rootCmd.PersistentFlags().String("log-file", "", "file to append logs to")

	rootCmd.Flags().String("source", "", "camera source: command or dir")
	rootCmd.Flags().String("dir", "", "directory of images to replay when --source=dir")
	rootCmd.Flags().String("openai-api-key", "", "OpenAI API key for voice commands")
	rootCmd.Flags().BoolP("yes", "y", false, "grant camera and microphone without prompting")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(voicesCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		if !errors.Is(err, permission.ErrPermissionDenied) {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		os.Exit(1)
	}
}

func runVersion(_ *cobra.Command, _ []string) {
	fmt.Printf("smart-ocr %s\n", Version)
	fmt.Printf("  Build time: %s\n", BuildTime)
	fmt.Printf("  Git commit: %s\n", GitCommit)

	info := recognition.EngineInfo()
	fmt.Printf("  OCR backend: %s", info.Backend)
	if info.Version != "" {
		fmt.Printf(" %s", info.Version)
	}
	fmt.Println()
	if !info.Available {
		fmt.Printf("  OCR unavailable: %s\n", info.Error)
	}
}
