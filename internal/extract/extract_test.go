package extract

import (
	"archive/zip"
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ragstack/ragchat/internal/config"
	"github.com/ragstack/ragchat/internal/models"
)

func testExtractor() *Extractor {
	return New(config.IngestConfig{MaxUploadMB: 1, MaxPDFPages: 10})
}

func TestTextPassthroughFormats(t *testing.T) {
	e := testExtractor()
	for _, ft := range []string{models.FileTypeTXT, models.FileTypeMD, models.FileTypeCSV} {
		out, err := e.Text(ft, []byte("hello, world\nsecond line"))
		require.NoError(t, err, ft)
		assert.Equal(t, "hello, world\nsecond line", out)
	}
}

func TestTextRejectsInvalidUTF8(t *testing.T) {
	e := testExtractor()
	_, err := e.Text(models.FileTypeTXT, []byte{0xff, 0xfe, 0x00})
	assert.ErrorIs(t, err, ErrNotText)
}

func TestTextRejectsUnsupportedType(t *testing.T) {
	e := testExtractor()
	_, err := e.Text("xlsx", []byte("data"))
	assert.ErrorIs(t, err, ErrUnsupportedFileType)
}

func TestTextRejectsOversizedFile(t *testing.T) {
	e := testExtractor()
	_, err := e.Text(models.FileTypeTXT, make([]byte, 2<<20))
	assert.ErrorIs(t, err, ErrTooLarge)
}

func buildDocx(t *testing.T, documentXML string) []byte {
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

func TestDocxExtractsParagraphs(t *testing.T) {
	raw := buildDocx(t, `<?xml version="1.0"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">
  <w:body>
    <w:p><w:r><w:t>First </w:t></w:r><w:r><w:t>paragraph.</w:t></w:r></w:p>
    <w:p><w:r><w:t>Second paragraph.</w:t></w:r></w:p>
  </w:body>
</w:document>`)

	e := testExtractor()
	out, err := e.Text(models.FileTypeDOCX, raw)
	require.NoError(t, err)
	assert.Contains(t, out, "First paragraph.")
	assert.Contains(t, out, "Second paragraph.")

	first := strings.Index(out, "First paragraph.")
	second := strings.Index(out, "Second paragraph.")
	nl := strings.Index(out[first:second], "\n")
	assert.GreaterOrEqual(t, nl, 0, "paragraph boundary becomes a newline")
}

func TestDocxMissingDocumentXML(t *testing.T) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create("word/other.xml")
	require.NoError(t, err)
	_, err = w.Write([]byte("<x/>"))
	require.NoError(t, err)
	require.NoError(t, zw.Close())

	e := testExtractor()
	_, err = e.Text(models.FileTypeDOCX, buf.Bytes())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "document.xml not found")
}

func TestDocxRejectsNonZip(t *testing.T) {
	e := testExtractor()
	_, err := e.Text(models.FileTypeDOCX, []byte("not a zip archive"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "open docx")
}
