// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package commands

import (
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"

	"github.com/jeranaias/parley/internal/model"
)

// MaxAttachmentBytes caps image attachments at 20 MiB, the inline request
// limit of the hosted APIs.
const MaxAttachmentBytes = 20 << 20

// attachmentTypes lists the image MIME types the gateways accept inline.
var attachmentTypes = map[string]bool{
	"image/png":  true,
	"image/jpeg": true,
	"image/gif":  true,
	"image/webp": true,
}

var (
	// ErrAttachmentTooLarge is returned for files over MaxAttachmentBytes.
	ErrAttachmentTooLarge = &CommandError{Message: "attachment too large"}

	// ErrUnsupportedAttachment is returned for files that are not a
	// supported image type.
	ErrUnsupportedAttachment = &CommandError{Message: "unsupported attachment type"}
)

// LoadAttachment reads an image file. The MIME type is sniffed from the
// content, not taken from the extension.
func LoadAttachment(path string) (*model.Attachment, error) {
	path = expandHome(strings.TrimSpace(path))

	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "open attachment")
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, errors.Wrap(err, "stat attachment")
	}
	if info.IsDir() {
		return nil, errors.Errorf("%s is a directory", path)
	}
	if info.Size() > MaxAttachmentBytes {
		return nil, errors.Wrapf(ErrAttachmentTooLarge, "%s is %s (limit %s)",
			filepath.Base(path), formatFileSize(info.Size()), formatFileSize(MaxAttachmentBytes))
	}

	raw, err := io.ReadAll(io.LimitReader(f, MaxAttachmentBytes+1))
	if err != nil {
		return nil, errors.Wrap(err, "read attachment")
	}
	if len(raw) > MaxAttachmentBytes {
		return nil, errors.Wrapf(ErrAttachmentTooLarge, "%s grew while reading", filepath.Base(path))
	}

	mimeType := http.DetectContentType(raw)
	if !attachmentTypes[mimeType] {
		return nil, errors.Wrapf(ErrUnsupportedAttachment, "%s (supported: png, jpeg, gif, webp)", mimeType)
	}
	return model.NewAttachment(mimeType, raw), nil
}

func expandHome(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, strings.TrimPrefix(path, "~"))
		}
	}
	return path
}
