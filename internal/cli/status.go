// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// status.go - Backend health report.

package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/jeranaias/cardiochat/internal/api"
	"github.com/jeranaias/cardiochat/internal/config"
)

// statusTimeout bounds the /health probe.
const statusTimeout = 10 * time.Second

// ErrBackendUnhealthy is returned when /health fails or reports a status
// other than "ok".
var ErrBackendUnhealthy = errors.New("backend is not healthy")

// HealthProber is the part of the API client the status command uses.
type HealthProber interface {
	Health(ctx context.Context) (*api.HealthResponse, error)
}

// HandleStatus handles "cardiochat status".
func HandleStatus(args Args) error {
	cfg, err := LoadConfig(args)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), statusTimeout)
	defer cancel()

	data := probeStatus(ctx, api.NewClient(cfg.API.BaseURL), cfg)
	return reportStatus(os.Stdout, data, args.JSON)
}

// probeStatus queries /health and collects the report.
func probeStatus(ctx context.Context, h HealthProber, cfg *config.Config) StatusData {
	provider, _ := api.ParseProvider(cfg.API.Provider)
	data := StatusData{
		BaseURL:  cfg.API.BaseURL,
		Provider: provider.Label(),
	}

	start := time.Now()
	health, err := h.Health(ctx)
	data.LatencyMs = time.Since(start).Milliseconds()
	if err != nil {
		data.Error = api.UserMessage(err)
		return data
	}

	data.Reachable = true
	data.Status = health.Status
	data.Device = health.Device
	data.ModelRepo = health.ModelRepo
	data.ModelFile = health.ModelFile
	data.ImageSize = health.ImageSize
	if !health.OK() {
		data.Error = fmt.Sprintf("backend reported status %q", health.Status)
	}
	return data
}

// reportStatus prints data and returns ErrBackendUnhealthy (already
// reported) when the backend is down.
func reportStatus(w io.Writer, data StatusData, jsonMode bool) error {
	healthy := data.Reachable && data.Error == ""

	if jsonMode {
		resp := NewJSONResponse("status", data)
		if !healthy {
			resp = NewJSONErrorResponse("status", data.Error)
			resp.Data = data
		}
		if err := outputJSON(w, resp); err != nil {
			return err
		}
	} else {
		renderStatus(w, data, healthy)
	}

	if !healthy {
		return Reported(fmt.Errorf("%w: %s", ErrBackendUnhealthy, data.Error))
	}
	return nil
}

func renderStatus(w io.Writer, data StatusData, healthy bool) {
	fmt.Fprintln(w, TitleStyle.Render("cardiochat status"))

	state := "ok"
	if !healthy {
		state = "error"
	}
	fmt.Fprintln(w, RenderStatus(state)+" "+ValueStyle.Render(data.BaseURL))
	fmt.Fprintln(w, RenderSeparator(40))

	fmt.Fprintln(w, RenderField("Provider", data.Provider))
	fmt.Fprintln(w, RenderField("Latency", formatDurationShort(time.Duration(data.LatencyMs)*time.Millisecond)))
	if data.Reachable {
		fmt.Fprintln(w, RenderField("Status", data.Status))
		if data.Device != "" {
			fmt.Fprintln(w, RenderField("Device", data.Device))
		}
		if data.ModelRepo != "" || data.ModelFile != "" {
			fmt.Fprintln(w, RenderField("Model", data.ModelRepo+"/"+data.ModelFile))
		}
		if data.ImageSize > 0 {
			size := strconv.Itoa(data.ImageSize)
			fmt.Fprintln(w, RenderField("Input", size+"x"+size))
		}
	}
	if data.Error != "" {
		fmt.Fprintln(w, RenderField("Error", ErrorStyle.Render(data.Error)))
	}
}
