package services

import (
	"encoding/base64"
	"net/http"
	"strings"
)

// ImageInput is an image passed to the model as inline data
type ImageInput struct {
	Data     []byte
	MIMEType string
}

var allowedImageTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/webp": true,
	"image/heic": true,
	"image/heif": true,
}

// DecodeImageInput accepts raw base64 or a data URL ("data:image/png;base64,...").
// mimeType is used when the payload does not carry one; otherwise the type is sniffed.
func DecodeImageInput(field, payload, mimeType string, maxBytes int) (ImageInput, error) {
	payload = strings.TrimSpace(payload)
	if payload == "" {
		return ImageInput{}, &ValidationError{Field: field, Reason: "image is required"}
	}

	if strings.HasPrefix(payload, "data:") {
		comma := strings.Index(payload, ",")
		if comma == -1 {
			return ImageInput{}, &ValidationError{Field: field, Reason: "malformed data URL"}
		}
		header := payload[len("data:"):comma]
		if semi := strings.Index(header, ";"); semi != -1 {
			header = header[:semi]
		}
		if header != "" {
			mimeType = header
		}
		payload = payload[comma+1:]
	}

	data, err := decodeBase64(payload)
	if err != nil {
		return ImageInput{}, &ValidationError{Field: field, Reason: "invalid base64 image data"}
	}
	return NewImageInput(field, data, mimeType, maxBytes)
}

// decodeBase64 accepts standard or URL-safe base64, padded or not
func decodeBase64(payload string) ([]byte, error) {
	data, err := base64.StdEncoding.DecodeString(payload)
	if err == nil {
		return data, nil
	}
	unpadded := strings.TrimRight(payload, "=")
	for _, enc := range []*base64.Encoding{base64.RawStdEncoding, base64.RawURLEncoding} {
		if data, err = enc.DecodeString(unpadded); err == nil {
			return data, nil
		}
	}
	return nil, err
}

// NewImageInput validates raw image bytes. An empty mimeType is sniffed from the data.
func NewImageInput(field string, data []byte, mimeType string, maxBytes int) (ImageInput, error) {
	if len(data) == 0 {
		return ImageInput{}, &ValidationError{Field: field, Reason: "image is empty"}
	}
	if maxBytes > 0 && len(data) > maxBytes {
		return ImageInput{}, &ValidationError{Field: field, Reason: "image is too large"}
	}

	if mimeType == "" || mimeType == "application/octet-stream" {
		mimeType = http.DetectContentType(data)
	}
	mimeType = strings.ToLower(strings.TrimSpace(mimeType))
	if !allowedImageTypes[mimeType] {
		return ImageInput{}, &ValidationError{Field: field, Reason: "unsupported image type " + mimeType}
	}

	return ImageInput{Data: data, MIMEType: mimeType}, nil
}

// DataURL encodes the image as a data URL, used when storage is unavailable
func (i ImageInput) DataURL() string {
	return "data:" + i.MIMEType + ";base64," + base64.StdEncoding.EncodeToString(i.Data)
}
