package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"report-simplifier/api/internal/app"
	"report-simplifier/api/internal/config"
	"report-simplifier/api/internal/handle"
	"report-simplifier/api/internal/logging"
)

var (
	textArg   string
	textFile  string
	imagePath string
	compact   bool
)

var rootCmd = &cobra.Command{
	Use:   "simplify",
	Short: "Run the report pipeline once and print the JSON response",
	Long: `simplify reads a medical report from --text, --file or --image (OCR),
runs extraction, the grounding check and summarization, and prints the same
JSON body the HTTP endpoint would return. The exit code is 1 when the
pipeline did not produce a summary.`,
	Args:          cobra.NoArgs,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          run,
}

func init() {
	rootCmd.Flags().StringVarP(&textArg, "text", "t", "", "report text")
	rootCmd.Flags().StringVarP(&textFile, "file", "f", "", "read report text from a file (- for stdin)")
	rootCmd.Flags().StringVarP(&imagePath, "image", "i", "", "report image to run through OCR")
	rootCmd.Flags().BoolVar(&compact, "compact", false, "print compact JSON")
	rootCmd.MarkFlagsMutuallyExclusive("text", "file", "image")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, _ []string) error {
	log := logging.Must()
	defer func() { _ = log.Sync() }()

	cfg, err := config.Load(log)
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	a, err := app.Build(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	resp, ok := simplify(ctx, a, log)
	enc := json.NewEncoder(cmd.OutOrStdout())
	if !compact {
		enc.SetIndent("", "  ")
	}
	if err := enc.Encode(resp); err != nil {
		return err
	}
	if !ok {
		return errors.New("report not simplified")
	}
	return nil
}

func simplify(ctx context.Context, a *app.App, log *zap.Logger) (any, bool) {
	raw, err := readInput(ctx, a)
	if err == nil && strings.TrimSpace(raw) == "" {
		err = handle.ErrNoInputProvided
	}
	if err == nil {
		out, runErr := a.Simplifier.Run(ctx, raw)
		if runErr == nil {
			return handle.NewResult(out), true
		}
		err = runErr
	}
	log.Debug("pipeline failed", zap.Error(err))
	_, resp := handle.Classify(err)
	return resp, false
}

func readInput(ctx context.Context, a *app.App) (string, error) {
	switch {
	case textArg != "":
		return textArg, nil
	case textFile == "-":
		b, err := io.ReadAll(os.Stdin)
		return string(b), err
	case textFile != "":
		b, err := os.ReadFile(textFile)
		return string(b), err
	case imagePath != "":
		f, err := os.Open(imagePath)
		if err != nil {
			return "", err
		}
		defer f.Close()
		return a.Resolver.RecognizeImage(ctx, f)
	default:
		return "", handle.ErrNoInputProvided
	}
}
