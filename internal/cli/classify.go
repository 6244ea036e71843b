// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// classify.go - One-shot image classification.

package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/jeranaias/cardiochat/internal/api"
	"github.com/jeranaias/cardiochat/internal/upload"
	"github.com/jeranaias/cardiochat/internal/ui/components"
	"github.com/jeranaias/cardiochat/internal/ui/styles"
)

// classifyOutput controls how a classification is printed.
type classifyOutput struct {
	w     io.Writer
	json  bool
	color bool
	theme *styles.Theme
}

// HandleClassify handles "cardiochat classify <image> [--json]".
func HandleClassify(args Args) error {
	p := NewArgParser(args.Rest, "json")
	file := p.Positional(0)
	if file == "" {
		return &UsageError{Command: "classify", Reason: "missing image path"}
	}

	cfg, err := LoadConfig(args)
	if err != nil {
		return err
	}
	rt, err := NewRuntime(cfg, RuntimeOptions{})
	if err != nil {
		return err
	}
	defer rt.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	return runClassify(ctx, rt.Uploads, file, classifyOutput{
		w:     os.Stdout,
		json:  args.JSON || p.BoolFlag("json"),
		color: ColorsEnabled(),
		theme: styles.NewTheme(cfg.UI.Theme),
	})
}

// runClassify selects file, classifies it and prints the result.
func runClassify(ctx context.Context, uploads *upload.Controller, file string, out classifyOutput) error {
	if err := uploads.SelectFile(file); err != nil {
		if errors.Is(err, upload.ErrSelectionIgnored) {
			err = fmt.Errorf("%s is not an image: %w", file, err)
		}
		return out.fail(err)
	}

	start := time.Now()
	pred, err := uploads.RunClassification(ctx)
	if err != nil {
		return out.fail(&CommandError{Command: "classify", Action: file, Err: err})
	}

	data := ClassifyData{
		File:       file,
		Prediction: pred,
		Disclaimer: uploads.Snapshot().Disclaimer,
		Badge:      components.BadgeText(pred),
		DurationMs: time.Since(start).Milliseconds(),
	}

	if out.json {
		encoded, err := marshalIndent(NewJSONResponse("classify", data))
		if err != nil {
			return err
		}
		text := string(encoded)
		if out.color {
			text = components.HighlightJSON(text)
			if !strings.HasSuffix(text, "\n") {
				text += "\n"
			}
		}
		_, err = io.WriteString(out.w, text)
		return err
	}

	fmt.Fprintln(out.w, TitleStyle.Render("Classification"))
	fmt.Fprintln(out.w, RenderField("File", file))
	fmt.Fprintln(out.w, components.RenderBadge(out.theme, pred))
	fmt.Fprintln(out.w)
	fmt.Fprintln(out.w, components.RenderDetails(out.theme, pred))
	if data.Disclaimer != "" {
		fmt.Fprintln(out.w)
		fmt.Fprintln(out.w, components.RenderDisclaimer(out.theme, data.Disclaimer))
	}
	fmt.Fprintln(out.w, DimStyle.Render("Round trip "+formatDurationShort(time.Since(start))))
	return nil
}

// fail prints a JSON error envelope in JSON mode and returns err.
func (o classifyOutput) fail(err error) error {
	if !o.json {
		return err
	}
	if encErr := outputJSON(o.w, NewJSONErrorResponse("classify", api.UserMessage(err))); encErr != nil {
		return errors.Join(err, encErr)
	}
	return Reported(err)
}
