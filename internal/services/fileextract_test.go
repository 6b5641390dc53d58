package services

import (
	"archive/zip"
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"knowledgegpt-backend/internal/models"
)

func buildDOCX(t *testing.T, documentXML string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create("word/document.xml")
	require.NoError(t, err)
	_, err = w.Write([]byte(documentXML))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func TestFileExtractService_TXT(t *testing.T) {
	s := NewFileExtractService()
	text, err := s.ExtractText("notes.TXT", []byte("  first line  \r\n\r\n\r\n\tsecond line\n"))
	require.NoError(t, err)
	assert.Equal(t, "first line\n\nsecond line", text)
}

func TestFileExtractService_DOCX(t *testing.T) {
	doc := `<w:document><w:body>` +
		`<w:p><w:r><w:t>Cells &amp; tissues</w:t></w:r></w:p>` +
		`<w:p><w:r><w:t>Line one</w:t><w:br/><w:t>Line two</w:t></w:r></w:p>` +
		`</w:body></w:document>`

	text, err := NewFileExtractService().ExtractText("lecture.docx", buildDOCX(t, doc))
	require.NoError(t, err)
	assert.Equal(t, "Cells & tissues\nLine one\nLine two", text)
}

func TestFileExtractService_Rejects(t *testing.T) {
	s := NewFileExtractService()

	tests := []struct {
		name     string
		filename string
		data     []byte
	}{
		{"unsupported extension", "slides.pptx", []byte("x")},
		{"empty text", "empty.txt", []byte(" \n\n ")},
		{"invalid utf8", "bin.txt", []byte{0xff, 0xfe, 0xfd}},
		{"corrupt pdf", "broken.pdf", []byte("not a pdf")},
		{"corrupt docx", "broken.docx", []byte("not a zip")},
		{"docx without body", "empty.docx", buildDOCX(t, "")},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := s.ExtractText(tc.filename, tc.data)
			assert.ErrorIs(t, err, models.ErrInvalidInput)
		})
	}
}
