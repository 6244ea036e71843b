// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"fmt"
	"strings"
)

// Image is raw image bytes plus the metadata needed to upload them.
type Image struct {
	Name      string // file name sent in the multipart body
	MediaType string // e.g. "image/png"
	Data      []byte
}

// IsImage reports whether the media type names an image.
func (i Image) IsImage() bool {
	return IsImageMediaType(i.MediaType)
}

// Size returns the image size in bytes.
func (i Image) Size() int {
	return len(i.Data)
}

// Clone returns a deep copy so callers cannot alias the byte slice.
func (i Image) Clone() Image {
	data := make([]byte, len(i.Data))
	copy(data, i.Data)
	return Image{Name: i.Name, MediaType: i.MediaType, Data: data}
}

// HumanSize formats the size for display (e.g. "1.2 MB").
func (i Image) HumanSize() string {
	n := float64(len(i.Data))
	switch {
	case n >= 1<<20:
		return fmt.Sprintf("%.1f MB", n/(1<<20))
	case n >= 1<<10:
		return fmt.Sprintf("%.1f KB", n/(1<<10))
	default:
		return fmt.Sprintf("%d B", len(i.Data))
	}
}

// IsImageMediaType reports whether mediaType is image/*.
// Parameters such as "; charset=" are ignored.
func IsImageMediaType(mediaType string) bool {
	mt := strings.ToLower(strings.TrimSpace(mediaType))
	if semi := strings.IndexByte(mt, ';'); semi >= 0 {
		mt = strings.TrimSpace(mt[:semi])
	}
	return strings.HasPrefix(mt, "image/") && len(mt) > len("image/")
}
