// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package commands

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadAttachment(t *testing.T) {
	dir := t.TempDir()

	// The extension lies; the content decides.
	path := filepath.Join(dir, "photo.jpg")
	require.NoError(t, os.WriteFile(path, pngHeader, 0600))

	att, err := LoadAttachment(path)
	require.NoError(t, err)
	assert.Equal(t, "image/png", att.MIMEType)
	raw, err := att.Bytes()
	require.NoError(t, err)
	assert.Equal(t, pngHeader, raw)
}

func TestLoadAttachment_TooLarge(t *testing.T) {
	path := filepath.Join(t.TempDir(), "huge.png")
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, f.Truncate(MaxAttachmentBytes+1))
	require.NoError(t, f.Close())

	_, err = LoadAttachment(path)
	assert.ErrorIs(t, err, ErrAttachmentTooLarge)
	assert.Contains(t, err.Error(), "limit 20 MB")
}

func TestLoadAttachment_Errors(t *testing.T) {
	dir := t.TempDir()

	_, err := LoadAttachment(filepath.Join(dir, "missing.png"))
	assert.ErrorIs(t, err, os.ErrNotExist)

	_, err = LoadAttachment(dir)
	assert.Error(t, err)

	gif := filepath.Join(dir, "a.gif")
	require.NoError(t, os.WriteFile(gif, []byte("GIF89a\x01\x00\x01\x00"), 0600))
	att, err := LoadAttachment(gif)
	require.NoError(t, err)
	assert.Equal(t, "image/gif", att.MIMEType)
}
