// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/cardiochat/internal/api"
	"github.com/jeranaias/cardiochat/internal/config"
	"github.com/jeranaias/cardiochat/internal/conversation"
	"github.com/jeranaias/cardiochat/internal/model"
	"github.com/jeranaias/cardiochat/internal/upload"
	"github.com/jeranaias/cardiochat/internal/ui/styles"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

type fakeBackend struct {
	classifyErr error
	chatErr     error
}

func (f *fakeBackend) Classify(ctx context.Context, img model.Image) (*api.ClassifyResponse, error) {
	if f.classifyErr != nil {
		return nil, f.classifyErr
	}
	return &api.ClassifyResponse{
		Prediction: model.Prediction{Label: model.LabelSick, IsSick: true, ProbSick: 0.873, ProbNormal: 0.127, Threshold: 0.5},
		Disclaimer: "Not a diagnosis.",
	}, nil
}

func (f *fakeBackend) Chat(ctx context.Context, r api.ChatRequest) (*api.ChatResponse, error) {
	if f.chatErr != nil {
		return nil, f.chatErr
	}
	return &api.ChatResponse{Reply: "Reply to: " + r.Message, Model: "m", Disclaimer: "Not a diagnosis."}, nil
}

type fixture struct {
	backend *fakeBackend
	session *conversation.Session
	uploads *upload.Controller
	model   Model
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	backend := &fakeBackend{}
	session := conversation.New(backend, conversation.Options{})
	uploads := upload.NewController(backend, nil)
	m := New(Options{
		Session:        session,
		Uploads:        uploads,
		Theme:          styles.NewTheme(styles.ModeDark),
		ShowDisclaimer: true,
	})
	t.Cleanup(func() {
		m.Shutdown()
		session.Close()
		uploads.Close()
	})

	f := &fixture{backend: backend, session: session, uploads: uploads, model: m}
	f.update(tea.WindowSizeMsg{Width: 100, Height: 40})
	return f
}

func (f *fixture) update(msg tea.Msg) tea.Cmd {
	next, cmd := f.model.Update(msg)
	f.model = next.(Model)
	return cmd
}

func (f *fixture) key(k tea.KeyType) tea.Cmd {
	return f.update(tea.KeyMsg{Type: k})
}

func (f *fixture) typeText(s string) {
	f.update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)})
}

func pngImage(t *testing.T) model.Image {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewGray(image.Rect(0, 0, 4, 4))))
	return model.Image{Name: "scan.png", MediaType: "image/png", Data: buf.Bytes()}
}

// =============================================================================
// TESTS
// =============================================================================

func TestView_ShowsGreeting(t *testing.T) {
	f := newFixture(t)
	view := f.model.View()
	assert.Contains(t, view, "cardiochat")
	assert.Contains(t, view, "Groq API")
	assert.Contains(t, f.model.viewport.View(), "Assistant")
}

func TestSend_EmptyDraftIsNoop(t *testing.T) {
	f := newFixture(t)
	assert.Nil(t, f.key(tea.KeyEnter))
	assert.False(t, f.model.thinking.IsActive())
}

func TestSend_Text(t *testing.T) {
	f := newFixture(t)
	f.typeText("what is CAD?")
	assert.Equal(t, "what is CAD?", f.model.input.Value())

	cmd := f.key(tea.KeyEnter)
	require.NotNil(t, cmd)
	assert.Empty(t, f.model.input.Value())
	assert.True(t, f.model.thinking.IsActive())

	f.update(submitTextCmd(context.Background(), f.session, "what is CAD?")())
	assert.False(t, f.model.thinking.IsActive())

	snap := f.session.Snapshot()
	require.Len(t, snap.Turns, 3)
	assert.Equal(t, "Reply to: what is CAD?", snap.Turns[2].Content)
	assert.Contains(t, f.model.viewport.View(), "what is CAD?")
}

func TestSend_ImageSuccessClearsSelection(t *testing.T) {
	f := newFixture(t)
	img := pngImage(t)
	require.NoError(t, f.uploads.Select(img))
	assert.Contains(t, f.model.View(), "[img] scan.png")

	require.NotNil(t, f.key(tea.KeyEnter))
	f.update(submitImageCmd(context.Background(), f.session, img, "")())

	assert.False(t, f.uploads.Snapshot().HasImage())
	snap := f.session.Snapshot()
	require.Len(t, snap.Turns, 3)
	assert.Equal(t, conversation.DefaultImagePrompt, snap.Turns[1].Content)
	assert.Contains(t, f.model.View(), "Current ML: Sick (prob_sick 87.3%)")
}

func TestSend_ImageFailureKeepsSelection(t *testing.T) {
	f := newFixture(t)
	f.backend.classifyErr = &api.ClassificationError{Status: 500, Message: "model not loaded"}
	img := pngImage(t)
	require.NoError(t, f.uploads.Select(img))

	f.key(tea.KeyEnter)
	f.update(submitImageCmd(context.Background(), f.session, img, "")())

	assert.True(t, f.uploads.Snapshot().HasImage())
	assert.Len(t, f.session.Snapshot().Turns, 1)
	assert.Contains(t, f.model.View(), "model not loaded")
}

func TestSend_DiscardedResultIsIgnored(t *testing.T) {
	f := newFixture(t)
	f.typeText("hello")
	f.key(tea.KeyEnter)
	f.key(tea.KeyCtrlN)
	assert.False(t, f.model.thinking.IsActive())

	f.update(SubmitDoneMsg{Err: conversation.ErrDiscarded})
	assert.Len(t, f.session.Snapshot().Turns, 1)
}

func TestProviderToggle(t *testing.T) {
	f := newFixture(t)
	f.key(tea.KeyCtrlP)
	assert.Equal(t, api.ProviderOSS, f.session.Provider())
	assert.Equal(t, api.ProviderOSS, f.model.statusBar.Provider)
	f.key(tea.KeyCtrlP)
	assert.Equal(t, api.ProviderGroq, f.session.Provider())
}

func TestNewChat(t *testing.T) {
	f := newFixture(t)
	f.update(submitTextCmd(context.Background(), f.session, "hi")())
	require.Len(t, f.session.Snapshot().Turns, 3)

	f.key(tea.KeyCtrlN)
	snap := f.session.Snapshot()
	require.Len(t, snap.Turns, 1)
	assert.Equal(t, config.DefaultResetGreeting, snap.Turns[0].Content)
}

func TestPathPrompt(t *testing.T) {
	f := newFixture(t)
	path := filepath.Join(t.TempDir(), "study.png")
	require.NoError(t, os.WriteFile(path, pngImage(t).Data, 0600))

	f.key(tea.KeyCtrlO)
	require.True(t, f.model.prompting)
	f.typeText(path)
	f.key(tea.KeyEnter)

	assert.False(t, f.model.prompting)
	st := f.uploads.Snapshot()
	require.True(t, st.HasImage())
	assert.Equal(t, "study.png", st.Selection.Image.Name)
	assert.Empty(t, f.model.input.Value())
}

func TestPathPrompt_MissingFile(t *testing.T) {
	f := newFixture(t)
	f.key(tea.KeyCtrlO)
	f.typeText(filepath.Join(t.TempDir(), "nope.png"))
	f.key(tea.KeyEnter)

	assert.False(t, f.uploads.Snapshot().HasImage())
	assert.Contains(t, f.model.uiErr, "failed to open image")
}

func TestPathPrompt_EscCancels(t *testing.T) {
	f := newFixture(t)
	f.key(tea.KeyCtrlO)
	cmd := f.key(tea.KeyEsc)
	assert.False(t, f.model.prompting)
	assert.False(t, f.model.quitting)
	_ = cmd
}

func TestPaste_TextGoesToDraft(t *testing.T) {
	f := newFixture(t)
	f.update(PasteMsg{Text: "just words"})
	assert.Equal(t, "just words", f.model.input.Value())
	assert.False(t, f.uploads.Snapshot().HasImage())
}

func TestPaste_Path(t *testing.T) {
	f := newFixture(t)
	path := filepath.Join(t.TempDir(), "my scan.png")
	require.NoError(t, os.WriteFile(path, pngImage(t).Data, 0600))

	f.update(PasteMsg{Text: "'" + path + "'"})
	assert.True(t, f.uploads.Snapshot().HasImage())
	assert.Empty(t, f.model.input.Value())
}

func TestPaste_ClipboardError(t *testing.T) {
	f := newFixture(t)
	f.update(PasteMsg{Err: errors.New("no xclip")})
	assert.Contains(t, f.model.uiErr, "no xclip")
}

func TestClassifyOnly(t *testing.T) {
	f := newFixture(t)
	f.key(tea.KeyCtrlK)
	assert.Contains(t, f.model.uiErr, "Select an image")

	require.NoError(t, f.uploads.Select(pngImage(t)))
	require.NotNil(t, f.key(tea.KeyCtrlK))
	f.update(classifyCmd(context.Background(), f.uploads)())

	pred := f.session.Prediction()
	require.NotNil(t, pred)
	assert.Equal(t, model.LabelSick, pred.Label)
	view := f.model.View()
	assert.Contains(t, view, "Threshold")
	assert.Contains(t, view, "Not a diagnosis.")

	f.key(tea.KeyCtrlL)
	assert.Nil(t, f.session.Prediction())
	assert.False(t, f.uploads.Snapshot().HasImage())
	assert.NotContains(t, f.model.View(), "Current ML")
}

func TestClassifyOnly_StaleResultCleared(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.uploads.Select(pngImage(t)))
	f.key(tea.KeyCtrlK)
	f.update(classifyCmd(context.Background(), f.uploads)())
	require.NotNil(t, f.session.Prediction())

	path := filepath.Join(t.TempDir(), "b.png")
	require.NoError(t, os.WriteFile(path, pngImage(t).Data, 0600))
	f.update(DropMsg{Path: path})
	assert.Nil(t, f.session.Prediction(), "new image keeps old prediction")
	assert.NotContains(t, f.model.View(), "Current ML")

	f.key(tea.KeyCtrlK)
	f.update(classifyCmd(context.Background(), f.uploads)())
	require.NotNil(t, f.session.Prediction())

	f.backend.classifyErr = errors.New("boom")
	f.key(tea.KeyCtrlK)
	f.update(classifyCmd(context.Background(), f.uploads)())
	assert.Nil(t, f.session.Prediction())
	assert.Equal(t, "boom", f.uploads.Snapshot().Error)
	assert.NotContains(t, f.model.View(), "Current ML")
}

func TestPaste_ImageClearsPrediction(t *testing.T) {
	f := newFixture(t)
	f.session.SetPrediction(&model.Prediction{Label: model.LabelNormal, ProbSick: 0.1, ProbNormal: 0.9, Threshold: 0.5})

	path := filepath.Join(t.TempDir(), "c.png")
	require.NoError(t, os.WriteFile(path, pngImage(t).Data, 0600))
	f.update(PasteMsg{Text: path})
	assert.True(t, f.uploads.Snapshot().HasImage())
	assert.Nil(t, f.session.Prediction())
}

func TestRemoveImage(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.uploads.Select(pngImage(t)))
	f.key(tea.KeyCtrlR)
	assert.False(t, f.uploads.Snapshot().HasImage())
}

func TestDropMsg(t *testing.T) {
	f := newFixture(t)
	path := filepath.Join(t.TempDir(), "drop.png")
	require.NoError(t, os.WriteFile(path, pngImage(t).Data, 0600))

	f.update(DropMsg{Path: path})
	assert.True(t, f.uploads.Snapshot().HasImage())
	assert.Equal(t, "Dropped drop.png", f.model.notice)
}

func TestNoticeExpires(t *testing.T) {
	f := newFixture(t)
	f.key(tea.KeyCtrlP)
	require.NotEmpty(t, f.model.notice)

	f.update(noticeExpiredMsg{id: f.model.noticeID - 1})
	assert.NotEmpty(t, f.model.notice)
	f.update(noticeExpiredMsg{id: f.model.noticeID})
	assert.Empty(t, f.model.notice)
}

func TestQuit(t *testing.T) {
	f := newFixture(t)
	cmd := f.key(tea.KeyEsc)
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())
	assert.Empty(t, f.model.View())
	assert.Error(t, f.model.ctx.Err())
}

func TestHealthSummary(t *testing.T) {
	assert.Equal(t, "offline", healthSummary(HealthMsg{Err: errors.New("refused")}))
	assert.Equal(t, "online (cuda)", healthSummary(HealthMsg{Health: &api.HealthResponse{Status: "ok", Device: "cuda"}}))
	assert.Equal(t, "online", healthSummary(HealthMsg{Health: &api.HealthResponse{Status: "ok"}}))
	assert.Equal(t, "degraded", healthSummary(HealthMsg{Health: &api.HealthResponse{Status: "degraded"}}))

	f := newFixture(t)
	f.update(HealthMsg{Health: &api.HealthResponse{Status: "ok", Device: "cpu"}})
	assert.Equal(t, "online (cpu)", f.model.statusBar.Backend)
}

func TestLastReply(t *testing.T) {
	_, ok := lastReply(nil)
	assert.False(t, ok)
	reply, ok := lastReply([]model.Turn{model.NewAssistantTurn("a"), model.NewUserTurn("q")})
	assert.True(t, ok)
	assert.Equal(t, "a", reply)
}

func TestHelpToggle(t *testing.T) {
	f := newFixture(t)
	f.key(tea.KeyF1)
	assert.True(t, f.model.showHelp)
	assert.Contains(t, f.model.View(), "classify only")
}
