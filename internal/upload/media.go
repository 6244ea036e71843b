// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package upload

import (
	"encoding/base64"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"net/url"
	"path/filepath"
	"strings"
)

// errNotDataURL is returned by decodeDataURL for text without a data: prefix.
var errNotDataURL = errors.New("not a data URL")

// imageExtensions covers the formats the classifier accepts, independent of
// the host's mime tables. Go's built-in table has no BMP or TIFF entries.
var imageExtensions = map[string]string{
	".png":  "image/png",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".gif":  "image/gif",
	".webp": "image/webp",
	".bmp":  "image/bmp",
	".tif":  "image/tiff",
	".tiff": "image/tiff",
}

// typeByExtension returns the media type for ext (with leading dot), or "".
func typeByExtension(ext string) string {
	ext = strings.ToLower(ext)
	if t, ok := imageExtensions[ext]; ok {
		return t
	}
	return mime.TypeByExtension(ext)
}

// DetectMediaType picks the media type of a file: from its extension when
// known, else by sniffing the content.
func DetectMediaType(name string, data []byte) string {
	if ext := filepath.Ext(name); ext != "" {
		if t := typeByExtension(ext); t != "" {
			if mt, _, err := mime.ParseMediaType(t); err == nil {
				return mt
			}
			return t
		}
	}
	if len(data) == 0 {
		return "application/octet-stream"
	}
	mt, _, err := mime.ParseMediaType(http.DetectContentType(data))
	if err != nil {
		return "application/octet-stream"
	}
	return mt
}

// decodeDataURL decodes "data:<type>[;base64],<payload>". The media type
// from the header is returned, or a sniffed one when the header has none.
func decodeDataURL(s string) (data []byte, mediaType string, err error) {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "data:") {
		return nil, "", errNotDataURL
	}
	comma := strings.IndexByte(s, ',')
	if comma < 0 {
		return nil, "", fmt.Errorf("malformed data URL: missing ','")
	}

	meta, payload := s[len("data:"):comma], s[comma+1:]
	isBase64 := false
	if strings.HasSuffix(meta, ";base64") {
		isBase64 = true
		meta = strings.TrimSuffix(meta, ";base64")
	}
	if semi := strings.IndexByte(meta, ';'); semi >= 0 {
		meta = meta[:semi]
	}
	mediaType = strings.ToLower(strings.TrimSpace(meta))

	if isBase64 {
		payload = strings.Map(func(r rune) rune {
			if r == '\n' || r == '\r' || r == ' ' || r == '\t' {
				return -1
			}
			return r
		}, payload)
		data, err = base64.StdEncoding.DecodeString(payload)
		if err != nil {
			if d, err2 := base64.RawStdEncoding.DecodeString(payload); err2 == nil {
				data, err = d, nil
			} else if d, err2 := base64.URLEncoding.DecodeString(payload); err2 == nil {
				data, err = d, nil
			}
		}
		if err != nil {
			return nil, "", fmt.Errorf("malformed data URL: %w", err)
		}
	} else {
		unescaped, err := url.PathUnescape(payload)
		if err != nil {
			return nil, "", fmt.Errorf("malformed data URL: %w", err)
		}
		data = []byte(unescaped)
	}

	if mediaType == "" {
		mediaType = DetectMediaType("", data)
	}
	return data, mediaType, nil
}

// pastedPaths extracts file paths from pasted or dropped text. Terminals
// paste dropped files as paths that may be quoted, backslash-escaped, or
// file:// URLs, one or more per line.
func pastedPaths(text string) []string {
	var paths []string
	for _, line := range strings.Split(strings.TrimSpace(text), "\n") {
		for _, field := range splitShellWords(strings.TrimSpace(line)) {
			if p := normalizePath(field); p != "" {
				paths = append(paths, p)
			}
		}
	}
	return paths
}

// splitShellWords splits on unquoted whitespace, honouring single quotes,
// double quotes and backslash escapes.
func splitShellWords(s string) []string {
	var (
		words   []string
		cur     strings.Builder
		quote   rune
		escaped bool
		inWord  bool
	)
	for _, r := range s {
		switch {
		case escaped:
			cur.WriteRune(r)
			escaped = false
		case r == '\\' && quote != '\'':
			escaped = true
			inWord = true
		case quote != 0:
			if r == quote {
				quote = 0
			} else {
				cur.WriteRune(r)
			}
		case r == '\'' || r == '"':
			quote = r
			inWord = true
		case r == ' ' || r == '\t':
			if inWord {
				words = append(words, cur.String())
				cur.Reset()
				inWord = false
			}
		default:
			cur.WriteRune(r)
			inWord = true
		}
	}
	if inWord {
		words = append(words, cur.String())
	}
	return words
}

// normalizePath turns a file:// URL into a path and cleans the result.
func normalizePath(s string) string {
	if s == "" {
		return ""
	}
	if strings.HasPrefix(s, "file://") {
		u, err := url.Parse(s)
		if err != nil || u.Path == "" {
			return ""
		}
		s = u.Path
	}
	return filepath.Clean(s)
}
