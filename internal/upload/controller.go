// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package upload

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sync"

	"github.com/jeranaias/cardiochat/internal/api"
	"github.com/jeranaias/cardiochat/internal/model"
)

// Error variables for selection and classification.
var (
	// ErrSelectionIgnored is returned for non-image input. Callers should
	// not show it to the user.
	ErrSelectionIgnored = errors.New("selection ignored: not an image")

	// ErrNoImage indicates RunClassification was called without a selection.
	ErrNoImage = errors.New("no image selected")

	// ErrBusy indicates a classification is already in flight.
	ErrBusy = errors.New("classification already in progress")

	// ErrTooLarge indicates the file exceeds the configured size limit.
	ErrTooLarge = errors.New("image too large")

	// ErrSuperseded indicates the selection changed or was cleared while
	// its classification was in flight; the result was discarded.
	ErrSuperseded = errors.New("selection changed during classification")
)

// DefaultMaxBytes is the selection size limit when none is configured.
const DefaultMaxBytes = 20 << 20

// Classifier classifies one image. *api.Client implements it.
type Classifier interface {
	Classify(ctx context.Context, img model.Image) (*api.ClassifyResponse, error)
}

// Selection is the chosen image and its preview.
type Selection struct {
	Image   model.Image
	Preview *Preview
}

// State is a point-in-time copy of the controller's fields.
type State struct {
	Selection  *Selection
	Prediction *model.Prediction
	Disclaimer string
	Error      string
	Loading    bool
}

// HasImage reports whether an image is selected.
func (s State) HasImage() bool {
	return s.Selection != nil
}

// Controller normalizes file picks, drops and pastes into one selected
// image, owns its preview, and runs the classifier on it.
// A Controller is safe for concurrent use.
type Controller struct {
	classifier Classifier
	store      PreviewStore
	maxBytes   int64

	mu         sync.Mutex
	selection  *Selection
	prediction *model.Prediction
	disclaimer string
	errMsg     string
	loading    bool
	generation uint64
	closed     bool
}

// NewController creates a controller. A nil store keeps previews in memory.
func NewController(classifier Classifier, store PreviewStore) *Controller {
	if store == nil {
		store = memoryPreviewStore{}
	}
	return &Controller{
		classifier: classifier,
		store:      store,
		maxBytes:   DefaultMaxBytes,
	}
}

// WithMaxBytes sets the size limit for selected files.
func (c *Controller) WithMaxBytes(n int64) *Controller {
	if n > 0 {
		c.maxBytes = n
	}
	return c
}

// =============================================================================
// SELECTION
// =============================================================================

// Select makes img the current selection. Non-image input is ignored and
// leaves the state unchanged. The previous preview is released before the
// new one is created. A new selection clears the previous result and error.
func (c *Controller) Select(img model.Image) error {
	if !img.IsImage() || len(img.Data) == 0 {
		log.Printf("upload: ignored %q (%s)", img.Name, img.MediaType)
		return ErrSelectionIgnored
	}
	if int64(len(img.Data)) > c.maxBytes {
		return fmt.Errorf("%w: %s (limit %d MB)", ErrTooLarge, img.HumanSize(), c.maxBytes>>20)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrSelectionIgnored
	}

	c.releaseLocked()

	sel := &Selection{Image: img.Clone()}
	preview, err := c.store.Create(sel.Image)
	if err != nil {
		log.Printf("upload: preview failed for %q: %v", img.Name, err)
	} else {
		sel.Preview = preview
	}

	c.selection = sel
	c.prediction = nil
	c.disclaimer = ""
	c.errMsg = ""
	c.generation++
	log.Printf("upload: selected %q (%s, %s)", img.Name, img.MediaType, img.HumanSize())
	return nil
}

// SelectFile reads the file at path and selects it.
func (c *Controller) SelectFile(path string) error {
	img, err := c.readImage(path)
	if err != nil {
		return err
	}
	return c.Select(img)
}

// Drop selects the first dropped path. As with a browser drop, only the
// first item is considered.
func (c *Controller) Drop(paths []string) error {
	if len(paths) == 0 {
		return ErrSelectionIgnored
	}
	return c.SelectFile(paths[0])
}

// Paste selects an image from pasted text: a data:image URL, or a file
// path (quoted, escaped, or file://). Anything else is ignored.
func (c *Controller) Paste(text string) error {
	data, mediaType, err := decodeDataURL(text)
	if err == nil {
		return c.Select(model.Image{
			Name:      "pasted" + extensionFor(mediaType),
			MediaType: mediaType,
			Data:      data,
		})
	}
	if !errors.Is(err, errNotDataURL) {
		log.Printf("upload: %v", err)
		return ErrSelectionIgnored
	}

	paths := pastedPaths(text)
	if len(paths) == 0 {
		return ErrSelectionIgnored
	}
	if info, statErr := os.Stat(paths[0]); statErr != nil || info.IsDir() {
		return ErrSelectionIgnored
	}
	return c.Drop(paths)
}

// readImage loads path, enforcing the size limit and image media type.
func (c *Controller) readImage(path string) (model.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return model.Image{}, fmt.Errorf("failed to open image: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return model.Image{}, fmt.Errorf("failed to stat image: %w", err)
	}
	if info.IsDir() {
		return model.Image{}, ErrSelectionIgnored
	}
	if info.Size() > c.maxBytes {
		return model.Image{}, fmt.Errorf("%w: %s is %d MB (limit %d MB)", ErrTooLarge, filepath.Base(path), info.Size()>>20, c.maxBytes>>20)
	}

	data, err := io.ReadAll(io.LimitReader(f, c.maxBytes+1))
	if err != nil {
		return model.Image{}, fmt.Errorf("failed to read image: %w", err)
	}

	name := filepath.Base(path)
	mediaType := DetectMediaType(name, data)
	if !model.IsImageMediaType(mediaType) {
		log.Printf("upload: ignored %q (%s)", name, mediaType)
		return model.Image{}, ErrSelectionIgnored
	}
	return model.Image{Name: name, MediaType: mediaType, Data: data}, nil
}

// releaseLocked releases the current preview. Caller holds c.mu.
func (c *Controller) releaseLocked() {
	if c.selection == nil || c.selection.Preview == nil {
		return
	}
	if err := c.store.Release(c.selection.Preview); err != nil {
		log.Printf("upload: %v", err)
	}
	c.selection.Preview = nil
}

// Remove drops the selection and its preview, keeping any result.
func (c *Controller) Remove() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.releaseLocked()
	c.selection = nil
	c.generation++
}

// Take returns the selected image and clears the selection. It is used
// once the image has been handed to the conversation.
func (c *Controller) Take() (model.Image, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.selection == nil {
		return model.Image{}, false
	}
	img := c.selection.Image
	c.releaseLocked()
	c.selection = nil
	c.generation++
	return img, true
}

// Current returns a copy of the selected image.
func (c *Controller) Current() (model.Image, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.selection == nil {
		return model.Image{}, false
	}
	return c.selection.Image.Clone(), true
}

// Clear resets selection, preview, result and error together.
func (c *Controller) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.releaseLocked()
	c.selection = nil
	c.prediction = nil
	c.disclaimer = ""
	c.errMsg = ""
	c.generation++
}

// Close releases the preview. The controller accepts no selections afterwards.
func (c *Controller) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.releaseLocked()
	c.selection = nil
	c.closed = true
	c.generation++
	return nil
}

// =============================================================================
// CLASSIFICATION
// =============================================================================

// RunClassification classifies the selected image. It returns ErrNoImage
// without a selection and ErrBusy while a call is in flight; neither changes
// state. On success the prediction is stored and the error cleared. On
// failure any stale prediction is cleared and the error message stored.
func (c *Controller) RunClassification(ctx context.Context) (*model.Prediction, error) {
	c.mu.Lock()
	if c.selection == nil {
		c.mu.Unlock()
		return nil, ErrNoImage
	}
	if c.loading {
		c.mu.Unlock()
		return nil, ErrBusy
	}
	c.loading = true
	c.errMsg = ""
	img := c.selection.Image.Clone()
	gen := c.generation
	c.mu.Unlock()

	res, err := c.classifier.Classify(ctx, img)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.loading = false

	if gen != c.generation {
		return nil, ErrSuperseded
	}
	if err != nil {
		c.prediction = nil
		c.disclaimer = ""
		c.errMsg = api.UserMessage(err)
		return nil, err
	}

	c.prediction = res.Prediction.Clone()
	c.disclaimer = res.Disclaimer
	c.errMsg = ""
	return res.Prediction.Clone(), nil
}

// Loading reports whether a classification is in flight.
func (c *Controller) Loading() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loading
}

// Snapshot returns a copy of the current state.
func (c *Controller) Snapshot() State {
	c.mu.Lock()
	defer c.mu.Unlock()

	st := State{
		Prediction: c.prediction.Clone(),
		Disclaimer: c.disclaimer,
		Error:      c.errMsg,
		Loading:    c.loading,
	}
	if c.selection != nil {
		sel := *c.selection
		if sel.Preview != nil {
			p := *sel.Preview
			sel.Preview = &p
		}
		st.Selection = &sel
	}
	return st
}
