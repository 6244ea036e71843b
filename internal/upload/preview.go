// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package upload

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"image"
	_ "image/gif"  // register decoder for DecodeConfig
	_ "image/jpeg" // register decoder for DecodeConfig
	_ "image/png"  // register decoder for DecodeConfig
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"golang.org/x/crypto/blake2b"

	"github.com/jeranaias/cardiochat/internal/model"
)

// Preview is the derived, displayable resource for a selected image.
type Preview struct {
	// URL addresses the preview, e.g. a file:// URL a terminal can open.
	URL string

	// Name and MediaType describe the source image.
	Name      string
	MediaType string
	Size      int

	// Width and Height are zero when the format cannot be decoded.
	Width  int
	Height int

	// Fingerprint is a short blake2b digest of the image bytes.
	Fingerprint string

	path string
}

// Dimensions returns "WxH", or "" when unknown.
func (p *Preview) Dimensions() string {
	if p == nil || p.Width == 0 || p.Height == 0 {
		return ""
	}
	return fmt.Sprintf("%dx%d", p.Width, p.Height)
}

// PreviewStore creates and releases preview resources. Every preview
// returned by Create must be passed to Release exactly once.
type PreviewStore interface {
	Create(img model.Image) (*Preview, error)
	Release(p *Preview) error
}

// Fingerprint returns the first 8 bytes of the blake2b-256 digest, hex encoded.
func Fingerprint(data []byte) string {
	sum := blake2b.Sum256(data)
	return hex.EncodeToString(sum[:8])
}

// describe fills the metadata shared by every store.
func describe(img model.Image) *Preview {
	p := &Preview{
		Name:        img.Name,
		MediaType:   img.MediaType,
		Size:        img.Size(),
		Fingerprint: Fingerprint(img.Data),
	}
	if cfg, _, err := image.DecodeConfig(bytes.NewReader(img.Data)); err == nil {
		p.Width, p.Height = cfg.Width, cfg.Height
	}
	return p
}

// TempPreviewStore writes each preview to its own file in a private
// temporary directory and deletes it on release.
type TempPreviewStore struct {
	mu   sync.Mutex
	dir  string
	live map[string]struct{}
}

// NewTempPreviewStore creates a store under parent, or the system temp dir
// when parent is empty.
func NewTempPreviewStore(parent string) (*TempPreviewStore, error) {
	dir, err := os.MkdirTemp(parent, "cardiochat-preview-")
	if err != nil {
		return nil, fmt.Errorf("failed to create preview directory: %w", err)
	}
	return &TempPreviewStore{dir: dir, live: make(map[string]struct{})}, nil
}

// Create writes the image and returns its preview.
func (s *TempPreviewStore) Create(img model.Image) (*Preview, error) {
	p := describe(img)

	ext := filepath.Ext(img.Name)
	if ext == "" {
		ext = extensionFor(img.MediaType)
	}
	f, err := os.CreateTemp(s.dir, "preview-*"+ext)
	if err != nil {
		return nil, fmt.Errorf("failed to create preview: %w", err)
	}
	if _, err := f.Write(img.Data); err != nil {
		f.Close()
		os.Remove(f.Name())
		return nil, fmt.Errorf("failed to write preview: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return nil, fmt.Errorf("failed to write preview: %w", err)
	}

	p.path = f.Name()
	p.URL = (&url.URL{Scheme: "file", Path: filepath.ToSlash(p.path)}).String()

	s.mu.Lock()
	s.live[p.path] = struct{}{}
	s.mu.Unlock()
	return p, nil
}

// Release deletes the preview file. Releasing twice is a no-op.
func (s *TempPreviewStore) Release(p *Preview) error {
	if p == nil || p.path == "" {
		return nil
	}
	s.mu.Lock()
	_, ok := s.live[p.path]
	delete(s.live, p.path)
	s.mu.Unlock()
	if !ok {
		return nil
	}
	if err := os.Remove(p.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to release preview: %w", err)
	}
	return nil
}

// Live returns the number of previews not yet released.
func (s *TempPreviewStore) Live() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.live)
}

// Dir returns the store's directory.
func (s *TempPreviewStore) Dir() string {
	return s.dir
}

// Close removes the store directory and anything left in it.
func (s *TempPreviewStore) Close() error {
	s.mu.Lock()
	s.live = make(map[string]struct{})
	s.mu.Unlock()
	return os.RemoveAll(s.dir)
}

// memoryPreviewStore keeps no resources; previews carry metadata only.
// It is used when a temp directory cannot be created.
type memoryPreviewStore struct{}

func (memoryPreviewStore) Create(img model.Image) (*Preview, error) {
	p := describe(img)
	p.URL = "preview:" + p.Fingerprint
	return p, nil
}

func (memoryPreviewStore) Release(*Preview) error { return nil }

func extensionFor(mediaType string) string {
	switch strings.ToLower(mediaType) {
	case "image/png":
		return ".png"
	case "image/jpeg":
		return ".jpg"
	case "image/gif":
		return ".gif"
	case "image/webp":
		return ".webp"
	case "image/bmp":
		return ".bmp"
	case "image/tiff":
		return ".tiff"
	default:
		return ".img"
	}
}
