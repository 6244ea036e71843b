// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/cardiochat/internal/model"
)

const classifyBody = `{
	"prediction": {
		"label": "Sick",
		"is_sick": true,
		"prob_sick": 0.8731,
		"prob_normal": 0.1269,
		"threshold": 0.4213,
		"model_repo": "org/cad-mri",
		"model_file": "best.pt",
		"image_size": 224,
		"inference_ms": 41
	},
	"disclaimer": "Medical disclaimer: educational only."
}`

func testImage() model.Image {
	return model.Image{Name: "scan.png", MediaType: "image/png", Data: []byte("\x89PNG\r\n\x1a\nfake")}
}

// =============================================================================
// CLASSIFY
// =============================================================================

func TestClassify_RoundTrip(t *testing.T) {
	var gotFile []byte
	var gotType, gotName string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/classify", r.URL.Path)

		file, header, err := r.FormFile("file")
		if !assert.NoError(t, err) {
			return
		}
		defer file.Close()
		gotFile, _ = io.ReadAll(file)
		gotType = header.Header.Get("Content-Type")
		gotName = header.Filename

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(classifyBody))
	}))
	defer server.Close()

	client := NewClient(server.URL + "/")
	res, err := client.Classify(context.Background(), testImage())
	require.NoError(t, err)

	assert.Equal(t, testImage().Data, gotFile)
	assert.Equal(t, "image/png", gotType)
	assert.Equal(t, "scan.png", gotName)

	want := model.Prediction{
		Label:       model.LabelSick,
		IsSick:      true,
		ProbSick:    0.8731,
		ProbNormal:  0.1269,
		Threshold:   0.4213,
		ModelRepo:   "org/cad-mri",
		ModelFile:   "best.pt",
		ImageSize:   224,
		InferenceMs: 41,
	}
	assert.Equal(t, want, res.Prediction)
	assert.Equal(t, "Medical disclaimer: educational only.", res.Disclaimer)
}

func TestClassify_ErrorBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"detail":"Please upload an image file."}`))
	}))
	defer server.Close()

	_, err := NewClient(server.URL).Classify(context.Background(), testImage())
	var classifyErr *ClassificationError
	require.True(t, errors.As(err, &classifyErr))
	assert.Equal(t, http.StatusBadRequest, classifyErr.Status)
	assert.Equal(t, `{"detail":"Please upload an image file."}`, classifyErr.Error())
	assert.Equal(t, "Please upload an image file.", UserMessage(err))
}

func TestClassify_EmptyErrorBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	_, err := NewClient(server.URL).Classify(context.Background(), testImage())
	require.Error(t, err)
	assert.Equal(t, "Classification failed (500)", err.Error())
}

func TestClassify_NetworkFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	_, err := NewClient(url).Classify(context.Background(), testImage())
	var classifyErr *ClassificationError
	require.True(t, errors.As(err, &classifyErr))
	assert.Equal(t, 0, classifyErr.Status)
	assert.NotNil(t, classifyErr.Err)
}

// =============================================================================
// CHAT
// =============================================================================

func TestChat_Payload(t *testing.T) {
	var payload map[string]json.RawMessage
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		w.Write([]byte(`{"reply":"Hi there","provider":"oss","model":"gpt-oss-120b","disclaimer":"d"}`))
	}))
	defer server.Close()

	user := model.NewUserTurn("Please analyze this cardiac MRI image.").WithImage(testImage())
	pred := &model.Prediction{Label: model.LabelNormal, ProbSick: 0.1, ProbNormal: 0.9, Threshold: 0.5}

	res, err := NewClient(server.URL).Chat(context.Background(), ChatRequest{
		Message:    "What next?",
		History:    []model.Turn{model.NewAssistantTurn("Hello!"), user, model.NewAssistantTurn("  ")},
		Provider:   ProviderOSS,
		Prediction: pred,
	})
	require.NoError(t, err)
	assert.Equal(t, &ChatResponse{Reply: "Hi there", Provider: "oss", Model: "gpt-oss-120b", Disclaimer: "d"}, res)

	assert.JSONEq(t, `"What next?"`, string(payload["message"]))
	assert.JSONEq(t, `"oss"`, string(payload["provider"]))
	// Images are never transmitted, and blank turns are skipped.
	assert.JSONEq(t, `[
		{"role":"assistant","content":"Hello!"},
		{"role":"user","content":"Please analyze this cardiac MRI image."}
	]`, string(payload["history"]))
	assert.Contains(t, string(payload["prediction"]), `"prob_normal":0.9`)
}

func TestChat_OmitsAbsentPrediction(t *testing.T) {
	var raw []byte
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ = io.ReadAll(r.Body)
		w.Write([]byte(`{"reply":"ok","provider":"groq","model":"m","disclaimer":""}`))
	}))
	defer server.Close()

	_, err := NewClient(server.URL).Chat(context.Background(), ChatRequest{Message: "hi"})
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "prediction")
	assert.Contains(t, string(raw), `"provider":"groq"`)
	assert.Contains(t, string(raw), `"history":[]`)
}

func TestChat_ErrorBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		w.Write([]byte("upstream provider unavailable"))
	}))
	defer server.Close()

	_, err := NewClient(server.URL).Chat(context.Background(), ChatRequest{Message: "hi"})
	var chatErr *ChatError
	require.True(t, errors.As(err, &chatErr))
	assert.Equal(t, http.StatusBadGateway, chatErr.Status)
	assert.Equal(t, "upstream provider unavailable", chatErr.Error())
	assert.False(t, errors.Is(err, ErrChatTimeout))
}

func TestChat_Timeout(t *testing.T) {
	aborted := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// The server only notices a client abort once the body is consumed.
		io.Copy(io.Discard, r.Body)
		select {
		case <-r.Context().Done():
			close(aborted)
		case <-time.After(5 * time.Second):
			w.Write([]byte(`{"reply":"late"}`))
		}
	}))
	defer server.Close()

	client := NewClient(server.URL).WithChatTimeout(50 * time.Millisecond)

	start := time.Now()
	_, err := client.Chat(context.Background(), ChatRequest{Message: "hi"})
	require.Error(t, err)
	assert.Less(t, time.Since(start), 2*time.Second)

	var timeoutErr *ChatTimeoutError
	require.True(t, errors.As(err, &timeoutErr))
	assert.True(t, errors.Is(err, ErrChatTimeout))
	assert.Equal(t, 50*time.Millisecond, timeoutErr.Timeout)

	select {
	case <-aborted:
	case <-time.After(2 * time.Second):
		t.Fatal("in-flight request was not aborted")
	}
}

func TestChat_CallerCancelIsNotTimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.Copy(io.Discard, r.Body)
		select {
		case <-r.Context().Done():
		case <-time.After(5 * time.Second):
		}
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	_, err := NewClient(server.URL).Chat(ctx, ChatRequest{Message: "hi"})
	var chatErr *ChatError
	require.True(t, errors.As(err, &chatErr))
	assert.True(t, errors.Is(err, context.Canceled))
	assert.False(t, errors.Is(err, ErrChatTimeout))
}

func TestChat_MessageLimits(t *testing.T) {
	client := NewClient("http://127.0.0.1:1")

	_, err := client.Chat(context.Background(), ChatRequest{Message: strings.Repeat("a", MaxMessageChars+1)})
	assert.True(t, errors.Is(err, ErrMessageTooLong))
	assert.Contains(t, UserMessage(err), "too long")

	_, err = client.Chat(context.Background(), ChatRequest{Message: "   "})
	assert.True(t, errors.Is(err, ErrEmptyMessage))

	assert.NoError(t, CheckMessage(strings.Repeat("é", MaxMessageChars)))
}

func TestBuildHistory_Truncates(t *testing.T) {
	long := strings.Repeat("x", MaxHistoryContentChars+500)
	history := BuildHistory([]model.Turn{model.NewAssistantTurn(long)})
	require.Len(t, history, 1)
	assert.LessOrEqual(t, len([]rune(history[0].Content)), MaxHistoryContentChars)
	assert.Equal(t, "assistant", history[0].Role)
}

// =============================================================================
// HEALTH / CONFIG
// =============================================================================

func TestHealth(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/health", r.URL.Path)
		w.Write([]byte(`{"status":"ok","device":"cpu","model_repo":"org/cad-mri","model_file":"best.pt","image_size":224}`))
	}))
	defer server.Close()

	h, err := NewClient(server.URL).Health(context.Background())
	require.NoError(t, err)
	assert.True(t, h.OK())
	assert.Equal(t, "cpu", h.Device)
	assert.Equal(t, 224, h.ImageSize)
}

func TestHealth_Failure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	_, err := NewClient(server.URL).Health(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "503")
}

func TestNewClient_BaseURL(t *testing.T) {
	assert.Equal(t, DefaultBaseURL, NewClient("").BaseURL())
	assert.Equal(t, "https://api.example.org", NewClient("https://api.example.org/").BaseURL())
	assert.Equal(t, DefaultChatTimeout, NewClient("").ChatTimeout())
	assert.Equal(t, DefaultChatTimeout, NewClient("").WithChatTimeout(0).ChatTimeout())
}

func TestParseProvider(t *testing.T) {
	tests := []struct {
		in      string
		want    Provider
		wantErr bool
	}{
		{"groq", ProviderGroq, false},
		{"GROK", ProviderGroq, false},
		{"", ProviderGroq, false},
		{" oss ", ProviderOSS, false},
		{"openai", "", true},
	}
	for _, tt := range tests {
		got, err := ParseProvider(tt.in)
		if tt.wantErr {
			assert.ErrorIs(t, err, ErrUnknownProvider, tt.in)
			continue
		}
		assert.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
	assert.Equal(t, ProviderOSS, ProviderGroq.Next())
	assert.Equal(t, ProviderGroq, ProviderOSS.Next())
}

func TestUserMessage(t *testing.T) {
	assert.Equal(t, "", UserMessage(nil))
	assert.Equal(t, "plain", UserMessage(&ChatError{Message: "plain"}))
	assert.Equal(t, "field required; too short",
		UserMessage(&ChatError{Message: `{"detail":[{"msg":"field required"},{"msg":"too short"}]}`}))
	assert.Contains(t, UserMessage(&ChatTimeoutError{Timeout: time.Minute}), "1m0s")
}
