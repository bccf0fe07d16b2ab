package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/baalimago/go_away_boilerplate/pkg/ancli"
	"github.com/spf13/cobra"

	"github.com/diogo/geminiworkshop/internal/clipboard"
	"github.com/diogo/geminiworkshop/internal/config"
	apierrors "github.com/diogo/geminiworkshop/internal/errors"
	"github.com/diogo/geminiworkshop/internal/imaging"
	"github.com/diogo/geminiworkshop/internal/query"
	"github.com/diogo/geminiworkshop/internal/render"
)

var imagePatterns []string

var textCmd = &cobra.Command{
	Use:   "text [prompt]",
	Short: "Ask a single text-only question",
	Long: `Send one prompt and print the answer.

The prompt is taken from --file, piped stdin, or the first argument.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		prompt, ok, err := readPrompt(args)
		if err != nil {
			return err
		}
		if !ok {
			return cmd.Help()
		}
		return runQuery(cmdContext(cmd), queryRequest{prompt: prompt})
	},
}

var imageCmd = &cobra.Command{
	Use:   "image -i <path|glob>... [prompt]",
	Short: "Ask a question about one or more images",
	Long: `Send a prompt together with images and print the answer.

Images are downscaled before upload. --image accepts paths and globs
(e.g. 'photos/**/*.jpg') and may be repeated.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(imagePatterns) == 0 {
			return errors.New("at least one --image is required")
		}
		prompt, ok, err := readPrompt(args)
		if err != nil {
			return err
		}
		if !ok {
			return cmd.Help()
		}
		return runQuery(cmdContext(cmd), queryRequest{
			variant:  query.VariantTextImage,
			prompt:   prompt,
			patterns: imagePatterns,
		})
	},
}

func init() {
	for _, c := range []*cobra.Command{textCmd, imageCmd} {
		c.Flags().StringVarP(&outputFlag, "output", "o", "", "Save response to file")
		c.Flags().StringVarP(&fileFlag, "file", "f", "", "Read prompt from file")
		c.Flags().BoolVar(&rawFlag, "raw", false, "Print the bare response text")
	}
	imageCmd.Flags().StringArrayVarP(&imagePatterns, "image", "i", nil, "Image path or glob (repeatable)")
}

type queryRequest struct {
	variant  query.Variant
	prompt   string
	patterns []string
}

// runQuery sends one request through a query controller and outputs the response.
// Decoration is skipped with --raw or when stdout is not a terminal.
func runQuery(ctx context.Context, req queryRequest) error {
	prompt := strings.TrimSpace(req.prompt)
	if prompt == "" {
		return apierrors.ErrEmptyPrompt
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	raw := rawFlag || !deps.IsTTY()
	prog := &progress{quiet: raw}

	configured := cfg.TextModel
	if req.variant == query.VariantTextImage {
		configured = cfg.VisionModel
	}
	model := resolveModel(configured)
	if cfg.Verbose {
		ancli.PrintOK(fmt.Sprintf("model: %s\n", model.Name))
	}

	client, err := deps.NewClient(cfg, model)
	if err != nil {
		if !raw {
			fmt.Fprintln(os.Stderr, formatErrorMessage(err, "Failed to create client"))
		}
		return fmt.Errorf("failed to create client: %w", err)
	}
	defer client.Close()

	var attachments []imaging.Attachment
	if req.variant == query.VariantTextImage {
		prog.begin("Preparing images")
		attachments, err = imaging.LoadAll(req.patterns, cfg.ImageMaxDimension)
		if err != nil {
			prog.fail()
			return fmt.Errorf("failed to load images: %w", err)
		}
		prog.succeed(fmt.Sprintf("%d image(s) ready", len(attachments)))
	}

	prog.begin("Generating response")
	startTime := time.Now()

	var ctrl *query.Controller
	if req.variant == query.VariantTextImage {
		ctrl = query.NewTextImage(client, model)
		err = ctrl.SubmitWithImages(ctx, prompt, attachments)
	} else {
		ctrl = query.NewTextOnly(client, model)
		ctrl.UpdateInput(prompt)
		err = ctrl.Submit(ctx)
	}
	if err != nil {
		prog.fail()
		return err
	}

	state := ctrl.Snapshot()
	if state.IsError {
		prog.fail()
		if !raw {
			fmt.Fprintln(os.Stderr, failureStyle().Render("✗ Generation failed: "+state.ResponseText))
		}
		return fmt.Errorf("generation failed: %s", state.ResponseText)
	}
	prog.succeed("Done")

	if cfg.Verbose {
		ancli.PrintOK(fmt.Sprintf("request took %s\n", time.Since(startTime).Round(time.Millisecond)))
	}

	return emitAnswer(cfg, state.ResponseText, raw)
}

// emitAnswer writes the answer to --output or stdout, copying it first when configured
func emitAnswer(cfg config.Config, text string, raw bool) error {
	if cfg.CopyToClipboard {
		if err := clipboard.Copy(text); err != nil {
			ancli.PrintWarn(fmt.Sprintf("failed to copy to clipboard: %v\n", err))
		} else if !raw {
			fmt.Fprintln(os.Stderr, successStyle().Render("✓ Copied to clipboard"))
		}
	}

	if outputFlag != "" {
		if err := os.WriteFile(outputFlag, []byte(text), 0o644); err != nil {
			return fmt.Errorf("failed to write output file: %w", err)
		}
		if !raw {
			fmt.Fprintln(os.Stderr, successStyle().Render(fmt.Sprintf("✓ Response saved to %s", outputFlag)))
		}
		return nil
	}

	if raw {
		fmt.Print(text)
		return nil
	}
	printAnswer(text, render.FromConfig(cfg.Markdown))
	return nil
}
