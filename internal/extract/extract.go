package extract

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"
)

const (
	mimePDF  = "application/pdf"
	mimeDOCX = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
)

// DefaultExcerptRunes bounds the text handed to the classifier.
const DefaultExcerptRunes = 4000

// ErrUnsupported is returned when no text can be pulled from the content type.
var ErrUnsupported = errors.New("unsupported content type")

// Excerpt returns at most maxRunes of whitespace-collapsed text from data.
// Supported types are PDF, DOCX and plain text (text/*, JSON, CSV).
func Excerpt(ctx context.Context, data []byte, mimeType string, fileName string, maxRunes int) (string, error) {
	text, err := ExtractTextFromBytes(ctx, data, mimeType, fileName)
	if err != nil {
		return "", err
	}
	if maxRunes <= 0 {
		maxRunes = DefaultExcerptRunes
	}
	return truncateRunes(collapseSpace(text), maxRunes), nil
}

// ExtractTextFromBytes extracts text from an in-memory payload.
func ExtractTextFromBytes(ctx context.Context, data []byte, mimeType string, fileName string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	normalized := normalizeMimeType(mimeType, fileName, data)
	switch {
	case normalized == mimePDF:
		return extractPDF(data)
	case normalized == mimeDOCX:
		return extractDOCX(data)
	case isPlainText(normalized):
		if !utf8.Valid(data) {
			return "", fmt.Errorf("%w: %s is not valid utf-8", ErrUnsupported, normalized)
		}
		return string(data), nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupported, normalized)
	}
}

func isPlainText(mime string) bool {
	switch {
	case strings.HasPrefix(mime, "text/"):
		return true
	case mime == "application/json", mime == "application/xml", mime == "application/csv":
		return true
	}
	return false
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func truncateRunes(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	runes := []rune(s)
	return string(runes[:max])
}

func extractPDF(data []byte) (string, error) {
	reader := bytes.NewReader(data)
	pdfReader, err := pdf.NewReader(reader, int64(len(data)))
	if err != nil {
		return "", err
	}
	plain, err := pdfReader.GetPlainText()
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, plain); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func extractDOCX(data []byte) (string, error) {
	if len(data) == 0 {
		return "", errors.New("empty docx data")
	}
	readerAt := bytes.NewReader(data)
	zr, err := zip.NewReader(readerAt, int64(len(data)))
	if err != nil {
		return "", err
	}

	var docFile *zip.File
	for _, f := range zr.File {
		name := strings.ReplaceAll(f.Name, "\\", "/")
		if name == "word/document.xml" {
			docFile = f
			break
		}
	}
	if docFile == nil {
		return "", errors.New("document.xml file not found")
	}

	rc, err := docFile.Open()
	if err != nil {
		return "", err
	}
	defer rc.Close()

	raw, err := io.ReadAll(rc)
	if err != nil {
		return "", err
	}

	return stripDocxXML(string(raw)), nil
}

func stripDocxXML(raw string) string {
	decoder := xml.NewDecoder(strings.NewReader(raw))
	var buf strings.Builder
	for {
		tok, err := decoder.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return raw
		}
		switch t := tok.(type) {
		case xml.CharData:
			buf.WriteString(string(t))
		case xml.EndElement:
			if t.Name.Local == "p" || t.Name.Local == "br" {
				if last := buf.Len(); last > 0 {
					buf.WriteString("\n")
				}
			}
		}
	}
	return strings.TrimSpace(buf.String())
}

func normalizeMimeType(mimeType string, fileName string, data []byte) string {
	clean := strings.ToLower(strings.TrimSpace(strings.Split(mimeType, ";")[0]))
	if clean == "" || clean == "application/octet-stream" || clean == "binary/octet-stream" {
		if byExt := mimeFromExt(fileName); byExt != "" {
			return byExt
		}
		return clean
	}
	if clean != "application/zip" {
		return clean
	}

	if mapped := mapOOXMLFromZip(data); mapped != "" {
		return mapped
	}

	ext := strings.ToLower(filepath.Ext(fileName))
	switch ext {
	case ".docx":
		return mimeDOCX
	case ".xlsx":
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	case ".pptx":
		return "application/vnd.openxmlformats-officedocument.presentationml.presentation"
	default:
		return clean
	}
}

func mapOOXMLFromZip(data []byte) string {
	if len(data) == 0 {
		return ""
	}
	readerAt := bytes.NewReader(data)
	zr, err := zip.NewReader(readerAt, int64(len(data)))
	if err != nil {
		return ""
	}
	for _, f := range zr.File {
		name := strings.ReplaceAll(f.Name, "\\", "/")
		switch name {
		case "word/document.xml":
			return mimeDOCX
		case "xl/workbook.xml":
			return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
		case "ppt/presentation.xml":
			return "application/vnd.openxmlformats-officedocument.presentationml.presentation"
		}
	}
	return ""
}

func mimeFromExt(fileName string) string {
	switch strings.ToLower(filepath.Ext(fileName)) {
	case ".pdf":
		return mimePDF
	case ".docx":
		return mimeDOCX
	case ".txt", ".md":
		return "text/plain"
	case ".csv":
		return "text/csv"
	}
	return ""
}
