// Package extract turns uploaded document bytes into plain text.
package extract

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"strings"

	"github.com/dslipak/pdf"
)

// MaxFileSize is the hard limit for text extraction input.
const MaxFileSize = 50 * 1024 * 1024

// Result holds extracted text and its measurements.
type Result struct {
	Text      string
	WordCount int
	PageCount int
	Method    string
}

// Extractor converts raw document bytes into plain text.
type Extractor struct{}

func NewExtractor() *Extractor {
	return &Extractor{}
}

// Extract dispatches on file type. Supported types: pdf, docx, txt, md.
func (e *Extractor) Extract(data []byte, fileType string) (*Result, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("empty document")
	}
	if len(data) > MaxFileSize {
		return nil, fmt.Errorf("document exceeds size limit of %d bytes", MaxFileSize)
	}

	switch strings.ToLower(strings.TrimPrefix(fileType, ".")) {
	case "pdf":
		return extractPDF(data)
	case "docx":
		return extractDOCX(data)
	case "txt", "md", "text":
		return extractPlain(data)
	default:
		return nil, fmt.Errorf("unsupported file type: %s", fileType)
	}
}

func extractPlain(data []byte) (*Result, error) {
	text := string(data)
	return &Result{
		Text:      text,
		WordCount: countWords(text),
		PageCount: 1,
		Method:    "plain",
	}, nil
}

func extractPDF(data []byte) (*Result, error) {
	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("failed to open PDF: %w", err)
	}

	var buf bytes.Buffer
	b, err := r.GetPlainText()
	if err != nil {
		return nil, fmt.Errorf("failed to read PDF text: %w", err)
	}
	if _, err := buf.ReadFrom(b); err != nil {
		return nil, fmt.Errorf("failed to read PDF text: %w", err)
	}

	text := buf.String()
	return &Result{
		Text:      text,
		WordCount: countWords(text),
		PageCount: r.NumPage(),
		Method:    "pdf",
	}, nil
}

// extractDOCX unzips the document and strips tags from word/document.xml.
func extractDOCX(data []byte) (*Result, error) {
	r, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("failed to open DOCX zip: %w", err)
	}

	var documentXML *zip.File
	for _, f := range r.File {
		if f.Name == "word/document.xml" {
			documentXML = f
			break
		}
	}
	if documentXML == nil {
		return nil, fmt.Errorf("invalid docx: missing word/document.xml")
	}

	rc, err := documentXML.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	decoder := xml.NewDecoder(rc)
	var textBuilder strings.Builder
	pageCount := 1

	for {
		token, err := decoder.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}

		switch t := token.(type) {
		case xml.StartElement:
			if t.Name.Local == "p" {
				textBuilder.WriteString("\n")
			}
			if t.Name.Local == "tab" {
				textBuilder.WriteString("\t")
			}
			// Explicit page breaks are the only page signal a docx carries
			if t.Name.Local == "br" {
				for _, attr := range t.Attr {
					if attr.Name.Local == "type" && attr.Value == "page" {
						pageCount++
					}
				}
			}
		case xml.CharData:
			textBuilder.Write(t)
		}
	}

	text := textBuilder.String()
	return &Result{
		Text:      text,
		WordCount: countWords(text),
		PageCount: pageCount,
		Method:    "docx",
	}, nil
}

func countWords(text string) int {
	return len(strings.Fields(text))
}
