// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package conversation holds the chat transcript and drives each turn
// through the backend.
//
// A text turn is appended before the request and kept if the request fails.
// An image turn is appended tentatively, the image is classified, the chat
// request is sent with the new prediction, and the tentative turn is removed
// by ID if either call fails. NewChat resets the session from any state and
// discards results still in flight.
package conversation

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"

	"github.com/jeranaias/cardiochat/internal/api"
	"github.com/jeranaias/cardiochat/internal/config"
	"github.com/jeranaias/cardiochat/internal/model"
	"github.com/jeranaias/cardiochat/internal/postprocess"
	"github.com/jeranaias/cardiochat/internal/util"
)

// Backend is the remote side of a session. *api.Client implements it.
type Backend interface {
	Classify(ctx context.Context, img model.Image) (*api.ClassifyResponse, error)
	Chat(ctx context.Context, r api.ChatRequest) (*api.ChatResponse, error)
}

// Options configures a Session.
type Options struct {
	// Greeting seeds a new session. Empty means config.DefaultGreeting.
	Greeting string

	// ResetGreeting seeds the session after NewChat. Empty means
	// config.DefaultResetGreeting.
	ResetGreeting string

	// Provider is the initial provider. Empty means groq.
	Provider api.Provider

	// Processor rewrites replies. Nil passes them through.
	Processor *postprocess.Processor
}

// Session is one conversation. It is safe for concurrent use; the loading
// flag admits one request at a time.
type Session struct {
	backend       Backend
	processor     *postprocess.Processor
	greeting      string
	resetGreeting string

	mu         sync.Mutex
	turns      []model.Turn
	prediction *model.Prediction
	provider   api.Provider
	state      State
	loading    bool
	errMsg     string
	disclaimer string
	modelName  string
	epoch      uint64
	seq        uint64
	cancel     context.CancelFunc
	subs       map[chan uint64]struct{}
	closed     bool
}

// New creates a session seeded with the greeting turn.
func New(backend Backend, opts Options) *Session {
	if opts.Greeting == "" {
		opts.Greeting = config.DefaultGreeting
	}
	if opts.ResetGreeting == "" {
		opts.ResetGreeting = config.DefaultResetGreeting
	}
	if opts.Provider == "" {
		opts.Provider = api.ProviderGroq
	}
	if opts.Processor == nil {
		opts.Processor = postprocess.Passthrough()
	}

	return &Session{
		backend:       backend,
		processor:     opts.Processor,
		greeting:      opts.Greeting,
		resetGreeting: opts.ResetGreeting,
		turns:         []model.Turn{model.NewAssistantTurn(opts.Greeting)},
		provider:      opts.Provider,
		state:         StateIdle,
		subs:          make(map[chan uint64]struct{}),
	}
}

// =============================================================================
// SUBMISSIONS
// =============================================================================

// begin admits a request. The caller's turn is appended and the history
// before it is returned. Caller must not hold s.mu.
func (s *Session) begin(ctx context.Context, state State, turn model.Turn) (context.Context, []model.Turn, uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, nil, 0, ErrClosed
	}
	if s.loading {
		return nil, nil, 0, ErrBusy
	}

	history := make([]model.Turn, len(s.turns))
	copy(history, s.turns)

	s.turns = append(s.turns, turn)
	s.loading = true
	s.state = state
	s.errMsg = ""

	reqCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.changedLocked()
	return reqCtx, history, s.epoch, nil
}

// finishLocked ends the admitted request. Caller holds s.mu.
func (s *Session) finishLocked() {
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	s.loading = false
}

// failLocked records err as the session error. Caller holds s.mu.
func (s *Session) failLocked(err error) {
	s.finishLocked()
	s.state = StateError
	s.errMsg = api.UserMessage(err)
	s.changedLocked()
}

// appendReplyLocked appends the processed assistant reply. Caller holds s.mu.
func (s *Session) appendReplyLocked(resp *api.ChatResponse) model.Turn {
	reply := model.NewAssistantTurn(s.processor.Process(util.NormalizeText(resp.Reply)))
	s.turns = append(s.turns, reply)
	s.disclaimer = resp.Disclaimer
	s.modelName = resp.Model
	s.finishLocked()
	s.state = StateIdle
	s.changedLocked()
	return reply
}

// SubmitText sends a text message. Whitespace is collapsed; an empty message
// returns ErrEmptyMessage without any change. The user turn is kept when the
// request fails. On success the assistant turn is returned.
func (s *Session) SubmitText(ctx context.Context, text string) (model.Turn, error) {
	message := util.CollapseSpace(util.NormalizeText(text))
	if message == "" {
		return model.Turn{}, ErrEmptyMessage
	}
	if err := api.CheckMessage(message); err != nil {
		s.reject(err)
		return model.Turn{}, err
	}

	user := model.NewUserTurn(message)
	reqCtx, history, epoch, err := s.begin(ctx, StateAwaitingReply, user)
	if err != nil {
		return model.Turn{}, err
	}

	s.mu.Lock()
	req := api.ChatRequest{
		Message:    message,
		History:    history,
		Provider:   s.provider,
		Prediction: s.prediction.Clone(),
	}
	s.mu.Unlock()

	resp, err := s.backend.Chat(reqCtx, req)

	s.mu.Lock()
	defer s.mu.Unlock()
	if epoch != s.epoch {
		return model.Turn{}, ErrDiscarded
	}
	if err != nil {
		log.Printf("conversation: chat failed: %v", err)
		s.failLocked(err)
		return model.Turn{}, err
	}
	return s.appendReplyLocked(resp), nil
}

// SubmitImage sends an image, optionally with text, as one logical turn:
// classify, make the result current, then chat about it. The user turn is
// appended at once and removed again if either call fails. The prediction
// stays current even when the chat call fails.
func (s *Session) SubmitImage(ctx context.Context, img model.Image, text string) (model.Turn, error) {
	if !img.IsImage() || len(img.Data) == 0 {
		return model.Turn{}, ErrNoImage
	}

	message := util.CollapseSpace(util.NormalizeText(text))
	content := message
	question := message
	if message == "" {
		content = DefaultImagePrompt
		question = DefaultImageQuestion
	}
	chatMessage := ImageChatPrefix + question
	if err := api.CheckMessage(chatMessage); err != nil {
		s.reject(err)
		return model.Turn{}, err
	}

	tentative := model.NewUserTurn(content).WithImage(img)
	reqCtx, history, epoch, err := s.begin(ctx, StateAwaitingClassification, tentative)
	if err != nil {
		return model.Turn{}, err
	}

	classified, err := s.backend.Classify(reqCtx, img)

	s.mu.Lock()
	if epoch != s.epoch {
		s.mu.Unlock()
		return model.Turn{}, ErrDiscarded
	}
	if err != nil {
		log.Printf("conversation: classify failed: %v", err)
		s.rollbackLocked(tentative.ID)
		s.failLocked(err)
		s.mu.Unlock()
		return model.Turn{}, err
	}
	prediction := classified.Prediction.Clone()
	s.prediction = prediction.Clone()
	s.changedLocked()
	req := api.ChatRequest{
		Message:    chatMessage,
		History:    history,
		Provider:   s.provider,
		Prediction: prediction,
	}
	s.mu.Unlock()

	resp, err := s.backend.Chat(reqCtx, req)

	s.mu.Lock()
	defer s.mu.Unlock()
	if epoch != s.epoch {
		return model.Turn{}, ErrDiscarded
	}
	if err != nil {
		log.Printf("conversation: chat after classify failed: %v", err)
		s.rollbackLocked(tentative.ID)
		s.failLocked(err)
		return model.Turn{}, err
	}
	return s.appendReplyLocked(resp), nil
}

// rollbackLocked removes the turn with id. Caller holds s.mu.
func (s *Session) rollbackLocked(id string) {
	for i := len(s.turns) - 1; i >= 0; i-- {
		if s.turns[i].ID == id {
			s.turns = append(s.turns[:i:i], s.turns[i+1:]...)
			return
		}
	}
}

// reject records a validation failure without touching the transcript.
func (s *Session) reject(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.loading || s.closed {
		return
	}
	s.state = StateError
	s.errMsg = api.UserMessage(err)
	s.changedLocked()
}

// =============================================================================
// RESET AND CONTEXT
// =============================================================================

// NewChat returns the session to idle with a single fresh greeting turn,
// clearing the error and the prediction. A request in flight is cancelled
// and its result discarded.
func (s *Session) NewChat() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}

	s.finishLocked()
	s.epoch++
	s.turns = []model.Turn{model.NewAssistantTurn(s.resetGreeting)}
	s.prediction = nil
	s.errMsg = ""
	s.disclaimer = ""
	s.state = StateIdle
	s.changedLocked()
}

// ClearError dismisses the error message.
func (s *Session) ClearError() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateError {
		return
	}
	s.state = StateIdle
	s.errMsg = ""
	s.changedLocked()
}

// SetPrediction makes p the classification context for later turns.
func (s *Session) SetPrediction(p *model.Prediction) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prediction = p.Clone()
	s.changedLocked()
}

// ClearPrediction drops the classification context.
func (s *Session) ClearPrediction() {
	s.SetPrediction(nil)
}

// Prediction returns a copy of the classification context, or nil.
func (s *Session) Prediction() *model.Prediction {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.prediction.Clone()
}

// SetProvider selects the chat provider for later turns.
func (s *Session) SetProvider(p api.Provider) error {
	parsed, err := api.ParseProvider(string(p))
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.provider = parsed
	s.changedLocked()
	return nil
}

// Provider returns the chat provider.
func (s *Session) Provider() api.Provider {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.provider
}

// Loading reports whether a request is in flight.
func (s *Session) Loading() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loading
}

// Snapshot returns a copy of the session.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	turns := make([]model.Turn, len(s.turns))
	copy(turns, s.turns)
	return Snapshot{
		Turns:      turns,
		Prediction: s.prediction.Clone(),
		Provider:   s.provider,
		State:      s.state,
		Loading:    s.loading,
		Error:      s.errMsg,
		Disclaimer: s.disclaimer,
		Model:      s.modelName,
		Seq:        s.seq,
	}
}

// =============================================================================
// SUBSCRIPTIONS
// =============================================================================

// Subscribe returns a channel that receives the latest Seq after each
// change. Slow readers see only the newest value. The returned func
// unsubscribes.
func (s *Session) Subscribe() (<-chan uint64, func()) {
	ch := make(chan uint64, 1)

	s.mu.Lock()
	if s.closed {
		close(ch)
		s.mu.Unlock()
		return ch, func() {}
	}
	s.subs[ch] = struct{}{}
	s.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			if _, ok := s.subs[ch]; ok {
				delete(s.subs, ch)
				close(ch)
			}
		})
	}
}

// changedLocked bumps Seq and notifies subscribers. Caller holds s.mu.
func (s *Session) changedLocked() {
	s.seq++
	for ch := range s.subs {
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- s.seq:
		default:
		}
	}
}

// Close cancels any request in flight and closes all subscriptions.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.finishLocked()
	s.epoch++
	s.closed = true
	for ch := range s.subs {
		delete(s.subs, ch)
		close(ch)
	}
	return nil
}

// String describes the session for debug logs.
func (s *Session) String() string {
	snap := s.Snapshot()
	return fmt.Sprintf("session{state=%s turns=%d provider=%s prediction=%t}",
		snap.State, len(snap.Turns), snap.Provider, snap.Prediction != nil)
}

// IsDiscarded reports whether err means the result was dropped by NewChat
// or Close.
func IsDiscarded(err error) bool {
	return errors.Is(err, ErrDiscarded)
}
