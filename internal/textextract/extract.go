// Package textextract turns uploaded documents into plain text with word and
// page counts. It never touches storage or the network.
package textextract

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	pdf "github.com/ledongthuc/pdf"
)

var (
	ErrUnsupportedType = errors.New("unsupported file type")
	ErrEmptyFile       = errors.New("empty file")
	ErrTooLarge        = errors.New("document too large")
)

// maxDocumentXML caps the inflated size of word/document.xml.
var maxDocumentXML int64 = 50 << 20

const (
	TypePDF  = "pdf"
	TypeDOCX = "docx"
	TypeTXT  = "txt"
	TypeMD   = "md"
	TypeHTML = "html"
)

type Result struct {
	FileType  string
	Text      string
	WordCount int
	PageCount int
}

var (
	spaceRun   = regexp.MustCompile(`[ \t\f\v]+`)
	blankLines = regexp.MustCompile(`\n{3,}`)
)

// Extract sniffs the content first and falls back to the file extension.
func Extract(filename string, data []byte) (*Result, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%s: %w", filename, ErrEmptyFile)
	}

	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(filename), "."))

	var (
		res *Result
		err error
	)
	switch {
	case isPDF(data):
		res, err = extractPDF(data)
	case isZip(data):
		res, err = extractDOCX(data)
	case ext == "html" || ext == "htm" || looksLikeHTML(data):
		res, err = extractHTML(data)
	case ext == "txt" || ext == "md" || ext == "markdown" || isProbablyText(data):
		ft := TypeTXT
		if ext == "md" || ext == "markdown" {
			ft = TypeMD
		}
		res = &Result{FileType: ft, Text: normalize(string(data)), PageCount: 1}
	case ext == "pdf" || ext == "docx":
		return nil, fmt.Errorf("%s claims %s but content does not match: %w", filename, ext, ErrUnsupportedType)
	default:
		return nil, fmt.Errorf("%s: %w", filename, ErrUnsupportedType)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to extract %s: %w", filename, err)
	}

	res.WordCount = len(strings.Fields(res.Text))
	return res, nil
}

func isPDF(b []byte) bool {
	return len(b) >= 5 && string(b[:5]) == "%PDF-"
}

func isZip(b []byte) bool {
	return len(b) >= 4 && b[0] == 'P' && b[1] == 'K' && b[2] == 3 && b[3] == 4
}

func looksLikeHTML(b []byte) bool {
	head := strings.ToLower(strings.TrimSpace(string(b[:min(len(b), 2048)])))
	return strings.HasPrefix(head, "<!doctype html") || strings.HasPrefix(head, "<html")
}

func isProbablyText(b []byte) bool {
	sample := b[:min(len(b), 4096)]
	if bytes.IndexByte(sample, 0) >= 0 {
		return false
	}
	// A multi-byte rune may be cut at the sample boundary.
	if len(b) > len(sample) {
		for i := 0; i < utf8.UTFMax-1 && !utf8.Valid(sample); i++ {
			sample = sample[:len(sample)-1]
		}
	}
	return utf8.Valid(sample)
}

// extractPDF recovers from reader panics, which the pdf package raises on
// some malformed files.
func extractPDF(data []byte) (res *Result, err error) {
	defer func() {
		if p := recover(); p != nil {
			res, err = nil, fmt.Errorf("pdf parse panic: %v", p)
		}
	}()

	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("pdf reader: %w", err)
	}

	plain, err := r.GetPlainText()
	if err != nil {
		return nil, fmt.Errorf("pdf plaintext: %w", err)
	}
	b, err := io.ReadAll(plain)
	if err != nil {
		return nil, fmt.Errorf("pdf read: %w", err)
	}

	return &Result{
		FileType:  TypePDF,
		Text:      normalize(string(b)),
		PageCount: r.NumPage(),
	}, nil
}

func extractDOCX(data []byte) (*Result, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("zip reader: %w", err)
	}

	var doc *zip.File
	for _, f := range zr.File {
		if f.Name == "word/document.xml" {
			doc = f
			break
		}
	}
	if doc == nil {
		return nil, fmt.Errorf("zip is not a docx: %w", ErrUnsupportedType)
	}

	if doc.UncompressedSize64 > uint64(maxDocumentXML) {
		return nil, fmt.Errorf("document.xml inflates to %d bytes: %w", doc.UncompressedSize64, ErrTooLarge)
	}

	rc, err := doc.Open()
	if err != nil {
		return nil, fmt.Errorf("open document.xml: %w", err)
	}
	defer rc.Close()

	limited := &io.LimitedReader{R: rc, N: maxDocumentXML + 1}
	text, pages, err := wordprocessingText(limited)
	if limited.N <= 0 {
		return nil, fmt.Errorf("document.xml exceeds %d bytes: %w", maxDocumentXML, ErrTooLarge)
	}
	if err != nil {
		return nil, err
	}

	return &Result{FileType: TypeDOCX, Text: normalize(text), PageCount: pages}, nil
}

// wordprocessingText collects <w:t> runs, breaking lines at paragraph ends
// and counting explicit page breaks.
func wordprocessingText(r io.Reader) (string, int, error) {
	dec := xml.NewDecoder(r)
	var out strings.Builder
	pages := 1
	inText := false

	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", 0, fmt.Errorf("decode document.xml: %w", err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "t":
				inText = true
			case "tab":
				out.WriteByte('\t')
			case "br":
				for _, a := range t.Attr {
					if a.Name.Local == "type" && a.Value == "page" {
						pages++
					}
				}
				out.WriteByte('\n')
			case "lastRenderedPageBreak":
				pages++
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "t":
				inText = false
			case "p":
				out.WriteByte('\n')
			}
		case xml.CharData:
			if inText {
				out.Write(t)
			}
		}
	}

	return out.String(), pages, nil
}

func extractHTML(data []byte) (*Result, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("html parse: %w", err)
	}

	doc.Find("script, style, nav, footer, header, aside, noscript").Remove()

	var parts []string
	if title := strings.TrimSpace(doc.Find("title").First().Text()); title != "" {
		parts = append(parts, title)
	}
	doc.Find("h1, h2, h3, h4, h5, h6, p, li, td, pre, blockquote").Each(func(_ int, s *goquery.Selection) {
		if s.ParentsFiltered("p, li, td, blockquote").Length() > 0 {
			return
		}
		if text := strings.TrimSpace(s.Text()); text != "" {
			parts = append(parts, text)
		}
	})
	if len(parts) == 0 {
		parts = append(parts, doc.Find("body").Text())
	}

	return &Result{FileType: TypeHTML, Text: normalize(strings.Join(parts, "\n")), PageCount: 1}, nil
}

// normalize collapses runs of spaces, trims each line and keeps at most one
// blank line between paragraphs.
func normalize(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")

	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSpace(spaceRun.ReplaceAllString(line, " "))
	}
	s = strings.Join(lines, "\n")
	s = blankLines.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}
