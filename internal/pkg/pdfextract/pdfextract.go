package pdfextract

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"
)

const excerptRunes = 280

// Stats summarizes the extractable text of a PDF. It is merged into the
// document metadata blob at upload so listings can show a preview without
// touching the processing backend.
type Stats struct {
	Pages     int    `json:"pages"`
	TextChars int    `json:"text_chars"`
	Excerpt   string `json:"excerpt,omitempty"`
}

// ExtractText extracts plain text from the PDF in b. Returns empty string and
// nil error when the PDF has no extractable text. The parser panics on some
// malformed files; those surface as errors.
func ExtractText(b []byte) (_ string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("pdf parse panic: %v", r)
		}
	}()
	if len(b) == 0 {
		return "", nil
	}
	reader, err := pdf.NewReader(bytes.NewReader(b), int64(len(b)))
	if err != nil {
		return "", err
	}
	plain, err := reader.GetPlainText()
	if err != nil {
		return "", err
	}
	out, err := io.ReadAll(plain)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

// Describe returns text statistics for the PDF in b, or nil if b is not a
// readable PDF. The processing backend owns real extraction; this only feeds
// the metadata preview.
func Describe(b []byte) (stats *Stats) {
	defer func() {
		if recover() != nil {
			stats = nil
		}
	}()
	if len(b) == 0 {
		return nil
	}
	reader, err := pdf.NewReader(bytes.NewReader(b), int64(len(b)))
	if err != nil {
		return nil
	}
	text, err := ExtractText(b)
	if err != nil {
		text = ""
	}
	text = strings.Join(strings.Fields(text), " ")
	return &Stats{
		Pages:     reader.NumPage(),
		TextChars: utf8.RuneCountInString(text),
		Excerpt:   truncateRunes(text, excerptRunes),
	}
}

func truncateRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
