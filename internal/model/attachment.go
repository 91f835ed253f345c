// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"encoding/base64"
	"encoding/json"
	"strings"

	"github.com/pkg/errors"
)

// ErrInvalidAttachment is returned when an attachment cannot be decoded.
var ErrInvalidAttachment = errors.New("invalid attachment")

// Attachment is an inline image carried by a user message. It is persisted as
// a data URI ("data:image/png;base64,....") so the stored document stays a
// plain JSON string field.
type Attachment struct {
	MIMEType string
	// Data is the base64 payload without the data-URI prefix.
	Data string
}

// NewAttachment encodes raw image bytes.
func NewAttachment(mimeType string, raw []byte) *Attachment {
	return &Attachment{
		MIMEType: mimeType,
		Data:     base64.StdEncoding.EncodeToString(raw),
	}
}

// ParseDataURI splits a base64 data URI into MIME type and payload.
func ParseDataURI(uri string) (*Attachment, error) {
	rest, ok := strings.CutPrefix(uri, "data:")
	if !ok {
		return nil, errors.Wrap(ErrInvalidAttachment, "missing data: prefix")
	}
	header, payload, ok := strings.Cut(rest, ",")
	if !ok {
		return nil, errors.Wrap(ErrInvalidAttachment, "missing payload separator")
	}
	mimeType, ok := strings.CutSuffix(header, ";base64")
	if !ok {
		return nil, errors.Wrap(ErrInvalidAttachment, "payload is not base64 encoded")
	}
	if mimeType == "" {
		return nil, errors.Wrap(ErrInvalidAttachment, "missing MIME type")
	}
	return &Attachment{MIMEType: mimeType, Data: payload}, nil
}

// Validate reports whether the attachment can be stored and read back. The
// MIME type must be set and free of the ',' separator, and the payload must
// not be empty.
func (a *Attachment) Validate() error {
	switch {
	case strings.TrimSpace(a.MIMEType) == "":
		return errors.Wrap(ErrInvalidAttachment, "missing MIME type")
	case strings.Contains(a.MIMEType, ","):
		return errors.Wrapf(ErrInvalidAttachment, "malformed MIME type %q", a.MIMEType)
	case a.Data == "":
		return errors.Wrap(ErrInvalidAttachment, "empty payload")
	}
	return nil
}

// DataURI returns the attachment in data-URI form.
func (a *Attachment) DataURI() string {
	return "data:" + a.MIMEType + ";base64," + a.Data
}

// Bytes decodes the payload.
func (a *Attachment) Bytes() ([]byte, error) {
	raw, err := base64.StdEncoding.DecodeString(a.Data)
	if err != nil {
		return nil, errors.Wrapf(ErrInvalidAttachment, "decode %s payload: %v", a.MIMEType, err)
	}
	return raw, nil
}

// MarshalJSON encodes the attachment as a data-URI string.
func (a *Attachment) MarshalJSON() ([]byte, error) {
	return json.Marshal(a.DataURI())
}

// UnmarshalJSON decodes a data-URI string.
func (a *Attachment) UnmarshalJSON(data []byte) error {
	var uri string
	if err := json.Unmarshal(data, &uri); err != nil {
		return errors.Wrap(ErrInvalidAttachment, err.Error())
	}
	parsed, err := ParseDataURI(uri)
	if err != nil {
		return err
	}
	*a = *parsed
	return nil
}
