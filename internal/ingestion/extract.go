package ingestion

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/gabriel-vasile/mimetype"
	"github.com/ledongthuc/pdf"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
)

// Format is a supported document type
type Format string

const (
	FormatPDF  Format = "pdf"
	FormatDOCX Format = "docx"
	FormatTXT  Format = "txt"
)

// MaxDocumentBytes bounds accepted uploads.
const MaxDocumentBytes = 10 << 20

const docxMIME = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"

var (
	// ErrUnsupportedFormat is returned for extensions other than pdf, docx and txt.
	ErrUnsupportedFormat = errors.New("unsupported file format")
	// ErrEmptyDocument is returned when a document yields no text.
	ErrEmptyDocument = errors.New("document contains no extractable text")
)

// ExtractError describes a failed text extraction.
type ExtractError struct {
	Format  Format
	Message string
	Cause   error
}

func (e *ExtractError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("extract %s: %s: %v", e.Format, e.Message, e.Cause)
	}
	return fmt.Sprintf("extract %s: %s", e.Format, e.Message)
}

func (e *ExtractError) Unwrap() error {
	return e.Cause
}

// legacyEncodings are tried in order for text that is not valid UTF-8.
var legacyEncodings = []encoding.Encoding{charmap.Windows1252, charmap.ISO8859_1}

// FormatFromName maps a file name to its Format by extension.
func FormatFromName(name string) (Format, error) {
	switch strings.ToLower(strings.TrimPrefix(filepath.Ext(name), ".")) {
	case "pdf":
		return FormatPDF, nil
	case "docx":
		return FormatDOCX, nil
	case "txt", "text":
		return FormatTXT, nil
	default:
		return "", ErrUnsupportedFormat
	}
}

// ExtractText returns the raw text of a document. The sniffed content type
// must agree with the declared format.
func ExtractText(data []byte, format Format) (string, error) {
	if len(data) > MaxDocumentBytes {
		return "", &ExtractError{Format: format, Message: fmt.Sprintf("document exceeds %d bytes", MaxDocumentBytes)}
	}

	mt := mimetype.Detect(data)
	if err := checkSniffedType(mt, format); err != nil {
		return "", err
	}

	var (
		text string
		err  error
	)
	switch format {
	case FormatPDF:
		text, err = pdfText(data)
	case FormatDOCX:
		text, err = docxText(data)
	case FormatTXT:
		text, err = decodeText(data)
	default:
		return "", &ExtractError{Format: format, Message: "cannot extract", Cause: ErrUnsupportedFormat}
	}
	if err != nil {
		return "", &ExtractError{Format: format, Message: "cannot extract", Cause: err}
	}
	if strings.TrimSpace(text) == "" {
		return "", &ExtractError{Format: format, Message: "cannot extract", Cause: ErrEmptyDocument}
	}
	return text, nil
}

func checkSniffedType(mt *mimetype.MIME, format Format) error {
	var ok bool
	switch format {
	case FormatPDF:
		ok = sniffedAs(mt, "application/pdf")
	case FormatDOCX:
		ok = sniffedAs(mt, docxMIME, "application/zip")
	case FormatTXT:
		ok = !sniffedAs(mt, "application/pdf", "application/zip")
	default:
		return &ExtractError{Format: format, Message: "cannot extract", Cause: ErrUnsupportedFormat}
	}
	if !ok {
		return &ExtractError{Format: format, Message: fmt.Sprintf("content looks like %s", mt.String())}
	}
	return nil
}

// sniffedAs reports whether mt or any of its parents matches one of mimes.
func sniffedAs(mt *mimetype.MIME, mimes ...string) bool {
	for m := mt; m != nil; m = m.Parent() {
		for _, want := range mimes {
			if m.Is(want) {
				return true
			}
		}
	}
	return false
}

func pdfText(data []byte) (text string, err error) {
	// the pdf reader panics on some malformed cross-reference tables
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("malformed pdf: %v", r)
		}
	}()
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("open pdf: %w", err)
	}
	plain, err := reader.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("read pdf text: %w", err)
	}
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, plain); err != nil {
		return "", fmt.Errorf("read pdf text: %w", err)
	}
	return buf.String(), nil
}

func decodeText(data []byte) (string, error) {
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))
	if utf8.Valid(data) {
		return string(data), nil
	}
	var lastErr error
	for _, enc := range legacyEncodings {
		decoded, err := enc.NewDecoder().Bytes(data)
		if err != nil {
			lastErr = err
			continue
		}
		if !bytes.ContainsRune(decoded, utf8.RuneError) {
			return string(decoded), nil
		}
	}
	if lastErr == nil {
		lastErr = errors.New("unrecognized text encoding")
	}
	return "", lastErr
}

// docxText returns body paragraphs in order followed by the text of every
// table cell, one per line.
func docxText(data []byte) (string, error) {
	archive, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("open docx: %w", err)
	}
	var body *zip.File
	for _, f := range archive.File {
		if f.Name == "word/document.xml" {
			body = f
			break
		}
	}
	if body == nil {
		return "", errors.New("word/document.xml not found")
	}
	rc, err := body.Open()
	if err != nil {
		return "", fmt.Errorf("open document.xml: %w", err)
	}
	defer func() { _ = rc.Close() }()

	paragraphs, cells, err := walkDocument(xml.NewDecoder(rc))
	if err != nil {
		return "", err
	}
	return strings.Join(append(paragraphs, cells...), "\n"), nil
}

func walkDocument(dec *xml.Decoder) (paragraphs, cells []string, err error) {
	var (
		tableDepth int
		para       strings.Builder
		inPara     bool
		inText     bool
		cell       []string
	)
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			return paragraphs, cells, nil
		}
		if err != nil {
			return nil, nil, fmt.Errorf("parse document.xml: %w", err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "tbl":
				tableDepth++
			case "tc":
				if tableDepth == 1 {
					cell = cell[:0]
				}
			case "p":
				inPara = true
				para.Reset()
			case "t":
				inText = true
			case "tab":
				if inPara {
					para.WriteByte('\t')
				}
			case "br", "cr":
				if inPara {
					para.WriteByte('\n')
				}
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "tbl":
				tableDepth--
			case "tc":
				if tableDepth == 1 {
					cells = append(cells, strings.Join(cell, "\n"))
				}
			case "p":
				inPara = false
				if tableDepth == 0 {
					paragraphs = append(paragraphs, para.String())
				} else {
					cell = append(cell, para.String())
				}
			case "t":
				inText = false
			}
		case xml.CharData:
			if inText && inPara {
				para.Write(t)
			}
		}
	}
}
