package entity

import "strings"

// UploadedDocument is one submitted file. Content is never modified once constructed.
type UploadedDocument struct {
	Filename string
	Content  []byte
}

// NewUploadedDocument copies content so later writes by the caller do not leak into the batch.
func NewUploadedDocument(filename string, content []byte) *UploadedDocument {
	buf := make([]byte, len(content))
	copy(buf, content)
	return &UploadedDocument{Filename: filename, Content: buf}
}

type SegmentKind string

const (
	SegmentText  SegmentKind = "text"
	SegmentTable SegmentKind = "table"
)

// Segment is a run of text or table rows from a single page.
type Segment struct {
	Page int         `json:"page"`
	Kind SegmentKind `json:"kind"`
	Text string      `json:"text"`
}

// ParsedContent is the ordered text derived from one UploadedDocument.
type ParsedContent struct {
	Segments []Segment `json:"segments"`
	Pages    int       `json:"pages"`
	Method   string    `json:"method"` // "pdf_text" or "ocr"
	Warnings []string  `json:"warnings,omitempty"`
}

// Text joins all segments in order. Table segments already hold rows formatted as "a | b | c".
func (p ParsedContent) Text() string {
	var b strings.Builder
	for _, s := range p.Segments {
		t := strings.TrimSpace(s.Text)
		if t == "" {
			continue
		}
		if b.Len() > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(t)
	}
	return b.String()
}

// Empty reports whether no extractable text was found.
func (p ParsedContent) Empty() bool {
	return strings.TrimSpace(p.Text()) == ""
}
