package plaintext

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"mime"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"github.com/kirillkom/contract-risk-assistant/internal/core/domain"
)

const binarySniffBytes = 512

var (
	bomUTF8    = []byte{0xEF, 0xBB, 0xBF}
	bomUTF16LE = []byte{0xFF, 0xFE}
	bomUTF16BE = []byte{0xFE, 0xFF}
)

// Extractor decodes plain-text uploads. Binary formats are rejected with
// ErrUnsupportedContent.
type Extractor struct{}

func NewExtractor() *Extractor {
	return &Extractor{}
}

func (e *Extractor) Extract(ctx context.Context, fileName, mimeType string, raw []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if !acceptsMime(mimeType) {
		return "", domain.WrapError(domain.ErrUnsupportedContent, "extract text",
			fmt.Errorf("%s has unsupported type %s", fileName, mimeType))
	}
	if len(raw) == 0 {
		return "", domain.WrapError(domain.ErrUnsupportedContent, "extract text", errors.New("empty file"))
	}

	text, err := decodeText(raw)
	if err != nil {
		return "", domain.WrapError(domain.ErrUnsupportedContent, "decode text", err)
	}
	if looksBinary(text) {
		return "", domain.WrapError(domain.ErrUnsupportedContent, "extract text",
			fmt.Errorf("%s does not look like text", fileName))
	}
	return normalizeNewlines(text), nil
}

func acceptsMime(mimeType string) bool {
	if strings.TrimSpace(mimeType) == "" {
		return true
	}
	mediaType, _, err := mime.ParseMediaType(mimeType)
	if err != nil {
		return false
	}
	return strings.HasPrefix(mediaType, "text/") || mediaType == "application/octet-stream"
}

func decodeText(data []byte) (string, error) {
	switch {
	case bytes.HasPrefix(data, bomUTF8) && utf8.Valid(data[len(bomUTF8):]):
		return string(data[len(bomUTF8):]), nil
	case bytes.HasPrefix(data, bomUTF16LE):
		return decodeWith(unicode.UTF16(unicode.LittleEndian, unicode.UseBOM).NewDecoder(), data)
	case bytes.HasPrefix(data, bomUTF16BE):
		return decodeWith(unicode.UTF16(unicode.BigEndian, unicode.UseBOM).NewDecoder(), data)
	case utf8.Valid(data):
		return string(data), nil
	default:
		// a UTF-8 BOM over invalid bytes falls through here with the BOM kept out
		return decodeWith(charmap.Windows1252.NewDecoder(), bytes.TrimPrefix(data, bomUTF8))
	}
}

func decodeWith(t transform.Transformer, data []byte) (string, error) {
	decoded, _, err := transform.Bytes(t, data)
	if err != nil {
		return "", err
	}
	return string(decoded), nil
}

func looksBinary(text string) bool {
	sample := text
	if len(sample) > binarySniffBytes {
		sample = sample[:binarySniffBytes]
	}
	control := 0
	total := 0
	for _, r := range sample {
		total++
		if r == 0 {
			return true
		}
		if r < 0x20 && r != '\n' && r != '\r' && r != '\t' && r != '\f' {
			control++
		}
	}
	return total > 0 && control*10 > total
}

func normalizeNewlines(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	return strings.ReplaceAll(text, "\r", "\n")
}
