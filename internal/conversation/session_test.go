// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package conversation

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/cardiochat/internal/api"
	"github.com/jeranaias/cardiochat/internal/config"
	"github.com/jeranaias/cardiochat/internal/model"
	"github.com/jeranaias/cardiochat/internal/postprocess"
)

// =============================================================================
// FAKE BACKEND
// =============================================================================

type fakeBackend struct {
	mu          sync.Mutex
	classifyErr error
	chatErr     error
	prediction  model.Prediction
	reply       string
	chatReqs    []api.ChatRequest
	classified  int
	block       chan struct{}
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		prediction: model.Prediction{
			Label: model.LabelSick, IsSick: true, ProbSick: 0.87, ProbNormal: 0.13,
			Threshold: 0.42, ModelRepo: "org/cad", ModelFile: "w.pt", ImageSize: 224, InferenceMs: 30,
		},
		reply: "Here is what that means.",
	}
}

func (f *fakeBackend) Classify(ctx context.Context, img model.Image) (*api.ClassifyResponse, error) {
	f.mu.Lock()
	f.classified++
	err, pred := f.classifyErr, f.prediction
	f.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return &api.ClassifyResponse{Prediction: pred, Disclaimer: "d"}, nil
}

func (f *fakeBackend) Chat(ctx context.Context, r api.ChatRequest) (*api.ChatResponse, error) {
	f.mu.Lock()
	f.chatReqs = append(f.chatReqs, r)
	err, reply, block := f.chatErr, f.reply, f.block
	f.mu.Unlock()

	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return nil, &api.ChatError{Message: ctx.Err().Error(), Err: ctx.Err()}
		}
	}
	if err != nil {
		return nil, err
	}
	return &api.ChatResponse{Reply: reply, Provider: string(r.Provider), Model: "test-model", Disclaimer: "disclaimer"}, nil
}

func (f *fakeBackend) lastChat(t *testing.T) api.ChatRequest {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	require.NotEmpty(t, f.chatReqs)
	return f.chatReqs[len(f.chatReqs)-1]
}

func scan() model.Image {
	return model.Image{Name: "scan.png", MediaType: "image/png", Data: []byte{0x89, 'P', 'N', 'G'}}
}

// =============================================================================
// CONSTRUCTION
// =============================================================================

func TestNew_SeedsGreeting(t *testing.T) {
	s := New(newFakeBackend(), Options{})
	snap := s.Snapshot()

	require.Len(t, snap.Turns, 1)
	assert.Equal(t, model.RoleAssistant, snap.Turns[0].Role)
	assert.Equal(t, config.DefaultGreeting, snap.Turns[0].Content)
	assert.Equal(t, StateIdle, snap.State)
	assert.Equal(t, api.ProviderGroq, snap.Provider)
	assert.Nil(t, snap.Prediction)
}

// =============================================================================
// TEXT PATH
// =============================================================================

func TestSubmitText_Success(t *testing.T) {
	backend := newFakeBackend()
	s := New(backend, Options{})
	before := len(s.Snapshot().Turns)

	reply, err := s.SubmitText(context.Background(), "  what   is\tCAD?  ")
	require.NoError(t, err)
	assert.Equal(t, "Here is what that means.", reply.Content)

	snap := s.Snapshot()
	assert.Len(t, snap.Turns, before+2)
	assert.Equal(t, "what is CAD?", snap.Turns[before].Content)
	assert.Equal(t, StateIdle, snap.State)
	assert.False(t, snap.Loading)
	assert.Equal(t, "disclaimer", snap.Disclaimer)
	assert.Equal(t, "test-model", snap.Model)

	req := backend.lastChat(t)
	assert.Equal(t, "what is CAD?", req.Message)
	require.Len(t, req.History, before, "history excludes the new message")
	assert.Nil(t, req.Prediction)
}

func TestSubmitText_FailureKeepsUserTurn(t *testing.T) {
	backend := newFakeBackend()
	backend.chatErr = &api.ChatError{Status: 502, Message: "upstream down"}
	s := New(backend, Options{})
	before := len(s.Snapshot().Turns)

	_, err := s.SubmitText(context.Background(), "hello")
	require.Error(t, err)

	snap := s.Snapshot()
	assert.Len(t, snap.Turns, before+1)
	last, _ := snap.LastTurn()
	assert.Equal(t, model.RoleUser, last.Role)
	assert.Equal(t, "hello", last.Content)
	assert.Equal(t, StateError, snap.State)
	assert.Equal(t, "upstream down", snap.Error)
	assert.False(t, snap.Loading)

	// The session stays interactive.
	backend.chatErr = nil
	_, err = s.SubmitText(context.Background(), "again")
	require.NoError(t, err)
	assert.Equal(t, StateIdle, s.Snapshot().State)
	assert.Empty(t, s.Snapshot().Error)
}

func TestSubmitText_Timeout(t *testing.T) {
	backend := newFakeBackend()
	backend.chatErr = &api.ChatTimeoutError{Timeout: 60 * time.Second}
	s := New(backend, Options{})

	_, err := s.SubmitText(context.Background(), "hello")
	assert.ErrorIs(t, err, api.ErrChatTimeout)
	assert.Contains(t, s.Snapshot().Error, "1m0s")
	assert.Len(t, s.Snapshot().Turns, 2)
}

func TestSubmitText_Empty(t *testing.T) {
	s := New(newFakeBackend(), Options{})
	seq := s.Snapshot().Seq

	_, err := s.SubmitText(context.Background(), " \n\t ")
	assert.ErrorIs(t, err, ErrEmptyMessage)
	assert.Equal(t, seq, s.Snapshot().Seq)
	assert.Len(t, s.Snapshot().Turns, 1)
}

func TestSubmitText_TooLong(t *testing.T) {
	backend := newFakeBackend()
	s := New(backend, Options{})

	_, err := s.SubmitText(context.Background(), strings.Repeat("a", api.MaxMessageChars+1))
	assert.ErrorIs(t, err, api.ErrMessageTooLong)
	assert.Len(t, s.Snapshot().Turns, 1)
	assert.Contains(t, s.Snapshot().Error, "too long")
	assert.Empty(t, backend.chatReqs)
}

func TestSubmitText_AttachesPrediction(t *testing.T) {
	backend := newFakeBackend()
	s := New(backend, Options{})
	p := backend.prediction
	s.SetPrediction(&p)

	_, err := s.SubmitText(context.Background(), "and now?")
	require.NoError(t, err)
	req := backend.lastChat(t)
	require.NotNil(t, req.Prediction)
	assert.Equal(t, p, *req.Prediction)

	s.ClearPrediction()
	_, err = s.SubmitText(context.Background(), "without")
	require.NoError(t, err)
	assert.Nil(t, backend.lastChat(t).Prediction)
}

func TestSubmit_BusyWhileLoading(t *testing.T) {
	backend := newFakeBackend()
	backend.block = make(chan struct{})
	s := New(backend, Options{})

	done := make(chan error, 1)
	go func() {
		_, err := s.SubmitText(context.Background(), "first")
		done <- err
	}()
	require.Eventually(t, s.Loading, time.Second, 5*time.Millisecond)
	assert.Equal(t, StateAwaitingReply, s.Snapshot().State)

	_, err := s.SubmitText(context.Background(), "second")
	assert.ErrorIs(t, err, ErrBusy)
	_, err = s.SubmitImage(context.Background(), scan(), "")
	assert.ErrorIs(t, err, ErrBusy)

	close(backend.block)
	require.NoError(t, <-done)
	assert.Len(t, s.Snapshot().Turns, 3)
}

// =============================================================================
// IMAGE PATH
// =============================================================================

func TestSubmitImage_Success(t *testing.T) {
	backend := newFakeBackend()
	s := New(backend, Options{})
	_, err := s.SubmitText(context.Background(), "hi")
	require.NoError(t, err)
	before := s.Snapshot()

	_, err = s.SubmitImage(context.Background(), scan(), "")
	require.NoError(t, err)

	snap := s.Snapshot()
	require.Len(t, snap.Turns, len(before.Turns)+2)
	user := snap.Turns[len(before.Turns)]
	assert.Equal(t, DefaultImagePrompt, user.Content)
	assert.Equal(t, "Please analyze this cardiac MRI image.", user.Content)
	assert.True(t, user.HasImage())
	assert.Equal(t, model.RoleAssistant, snap.Turns[len(snap.Turns)-1].Role)

	require.NotNil(t, snap.Prediction)
	assert.Equal(t, backend.prediction, *snap.Prediction)

	req := backend.lastChat(t)
	assert.Equal(t, "I just uploaded a cardiac MRI scan. Can you explain what this means?", req.Message)
	assert.Equal(t, before.Turns, req.History)
	require.NotNil(t, req.Prediction)
	assert.Equal(t, backend.prediction, *req.Prediction)
}

func TestSubmitImage_WithText(t *testing.T) {
	backend := newFakeBackend()
	s := New(backend, Options{})

	_, err := s.SubmitImage(context.Background(), scan(), "  is this  bad? ")
	require.NoError(t, err)

	assert.Equal(t, "is this bad?", s.Snapshot().Turns[1].Content)
	assert.Equal(t, "I just uploaded a cardiac MRI scan. is this bad?", backend.lastChat(t).Message)
}

func TestSubmitImage_ClassifyFailureRollsBack(t *testing.T) {
	backend := newFakeBackend()
	backend.classifyErr = &api.ClassificationError{Status: 400, Message: "Please upload an image file."}
	s := New(backend, Options{})
	before := s.Snapshot()

	_, err := s.SubmitImage(context.Background(), scan(), "look")
	require.Error(t, err)

	snap := s.Snapshot()
	assert.Equal(t, before.Turns, snap.Turns)
	assert.Equal(t, StateError, snap.State)
	assert.Equal(t, "Please upload an image file.", snap.Error)
	assert.Nil(t, snap.Prediction)
	assert.Empty(t, backend.chatReqs)
}

func TestSubmitImage_ChatFailureRollsBack(t *testing.T) {
	backend := newFakeBackend()
	s := New(backend, Options{})
	_, err := s.SubmitText(context.Background(), "hi")
	require.NoError(t, err)
	before := s.Snapshot()

	backend.chatErr = &api.ChatTimeoutError{Timeout: time.Minute}
	_, err = s.SubmitImage(context.Background(), scan(), "")
	require.ErrorIs(t, err, api.ErrChatTimeout)

	snap := s.Snapshot()
	assert.Equal(t, before.Turns, snap.Turns)
	assert.Equal(t, StateError, snap.State)
	require.NotNil(t, snap.Prediction, "the new prediction stays current")
	assert.Equal(t, backend.prediction, *snap.Prediction)
}

func TestSubmitImage_RejectsNonImage(t *testing.T) {
	s := New(newFakeBackend(), Options{})
	_, err := s.SubmitImage(context.Background(), model.Image{Name: "a.txt", MediaType: "text/plain", Data: []byte("x")}, "")
	assert.ErrorIs(t, err, ErrNoImage)
	assert.Len(t, s.Snapshot().Turns, 1)
}

func TestSubmitImage_StateWhileClassifying(t *testing.T) {
	backend := newFakeBackend()
	backend.block = make(chan struct{})
	s := New(backend, Options{})

	done := make(chan error, 1)
	go func() {
		_, err := s.SubmitImage(context.Background(), scan(), "")
		done <- err
	}()

	require.Eventually(t, func() bool {
		backend.mu.Lock()
		defer backend.mu.Unlock()
		return len(backend.chatReqs) == 1
	}, time.Second, 5*time.Millisecond)

	snap := s.Snapshot()
	assert.Equal(t, StateAwaitingClassification, snap.State)
	assert.True(t, snap.State.Pending())
	assert.Len(t, snap.Turns, 2, "the tentative turn is visible while pending")

	close(backend.block)
	require.NoError(t, <-done)
}

// =============================================================================
// NEW CHAT
// =============================================================================

func TestNewChat_Idempotent(t *testing.T) {
	backend := newFakeBackend()
	s := New(backend, Options{})
	_, err := s.SubmitImage(context.Background(), scan(), "")
	require.NoError(t, err)
	backend.chatErr = errors.New("boom")
	_, _ = s.SubmitText(context.Background(), "fails")
	require.Equal(t, StateError, s.Snapshot().State)

	for i := 0; i < 3; i++ {
		s.NewChat()
		snap := s.Snapshot()
		require.Len(t, snap.Turns, 1)
		assert.Equal(t, model.RoleAssistant, snap.Turns[0].Role)
		assert.Equal(t, config.DefaultResetGreeting, snap.Turns[0].Content)
		assert.Nil(t, snap.Prediction)
		assert.Empty(t, snap.Error)
		assert.Equal(t, StateIdle, snap.State)
	}
}

func TestNewChat_DiscardsInFlight(t *testing.T) {
	backend := newFakeBackend()
	backend.block = make(chan struct{})
	s := New(backend, Options{ResetGreeting: "fresh"})

	done := make(chan error, 1)
	go func() {
		_, err := s.SubmitText(context.Background(), "slow question")
		done <- err
	}()
	require.Eventually(t, s.Loading, time.Second, 5*time.Millisecond)

	s.NewChat()
	err := <-done
	assert.True(t, IsDiscarded(err))

	snap := s.Snapshot()
	require.Len(t, snap.Turns, 1)
	assert.Equal(t, "fresh", snap.Turns[0].Content)
	assert.False(t, snap.Loading)
	assert.Equal(t, StateIdle, snap.State)
}

// =============================================================================
// PROVIDER, PROCESSING, SUBSCRIPTIONS
// =============================================================================

func TestSetProvider(t *testing.T) {
	backend := newFakeBackend()
	s := New(backend, Options{})

	require.NoError(t, s.SetProvider("grok"))
	assert.Equal(t, api.ProviderGroq, s.Provider())
	require.NoError(t, s.SetProvider(api.ProviderOSS))
	assert.Error(t, s.SetProvider("gemini"))
	assert.Equal(t, api.ProviderOSS, s.Provider())

	_, err := s.SubmitText(context.Background(), "hi")
	require.NoError(t, err)
	assert.Equal(t, api.ProviderOSS, backend.lastChat(t).Provider)
}

func TestReplyPostProcessing(t *testing.T) {
	backend := newFakeBackend()
	backend.reply = "## **Summary**\nBased on the clinical findings, all is well."

	processed := New(backend, Options{Processor: postprocess.New(postprocess.Config{Enabled: true})})
	reply, err := processed.SubmitText(context.Background(), "hi")
	require.NoError(t, err)
	assert.Equal(t, "Summary\n\nLooking at this image, all is well.", reply.Content)

	raw := New(backend, Options{})
	reply, err = raw.SubmitText(context.Background(), "hi")
	require.NoError(t, err)
	assert.Equal(t, backend.reply, reply.Content)
}

func TestSubscribe(t *testing.T) {
	s := New(newFakeBackend(), Options{})
	ch, unsubscribe := s.Subscribe()

	_, err := s.SubmitText(context.Background(), "hi")
	require.NoError(t, err)

	select {
	case seq := <-ch:
		assert.Equal(t, s.Snapshot().Seq, seq)
	case <-time.After(time.Second):
		t.Fatal("no notification")
	}

	unsubscribe()
	unsubscribe()
	_, ok := <-ch
	assert.False(t, ok)
}

func TestClose(t *testing.T) {
	s := New(newFakeBackend(), Options{})
	ch, _ := s.Subscribe()
	require.NoError(t, s.Close())
	require.NoError(t, s.Close())

	_, ok := <-ch
	assert.False(t, ok)
	_, err := s.SubmitText(context.Background(), "hi")
	assert.ErrorIs(t, err, ErrClosed)
}
