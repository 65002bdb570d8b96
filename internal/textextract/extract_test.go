package textextract

import (
	"archive/zip"
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildDOCX(t *testing.T, documentXML string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)

	w, err := zw.Create("[Content_Types].xml")
	require.NoError(t, err)
	_, err = w.Write([]byte(`<?xml version="1.0"?><Types/>`))
	require.NoError(t, err)

	w, err = zw.Create("word/document.xml")
	require.NoError(t, err)
	_, err = w.Write([]byte(documentXML))
	require.NoError(t, err)

	require.NoError(t, zw.Close())
	return buf.Bytes()
}

const sampleDocument = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">
  <w:body>
    <w:p><w:r><w:t>Unsere Werte</w:t></w:r></w:p>
    <w:p><w:r><w:t xml:space="preserve">Wir geben </w:t></w:r><w:r><w:t>offenes Feedback.</w:t></w:r></w:p>
    <w:p><w:r><w:br w:type="page"/></w:r></w:p>
    <w:p><w:r><w:t>Seite zwei.</w:t></w:r></w:p>
  </w:body>
</w:document>`

func TestExtract_DOCX(t *testing.T) {
	res, err := Extract("werte.docx", buildDOCX(t, sampleDocument))
	require.NoError(t, err)

	assert.Equal(t, TypeDOCX, res.FileType)
	assert.Equal(t, "Unsere Werte\nWir geben offenes Feedback.\n\nSeite zwei.", res.Text)
	assert.Equal(t, 8, res.WordCount)
	assert.Equal(t, 2, res.PageCount)
}

func TestExtract_DOCXInflationIsCapped(t *testing.T) {
	prev := maxDocumentXML
	maxDocumentXML = 4 << 10
	t.Cleanup(func() { maxDocumentXML = prev })

	run := `<w:p><w:r><w:t>` + strings.Repeat("a", 64<<10) + `</w:t></w:r></w:p>`
	doc := strings.Replace(sampleDocument, "<w:body>", "<w:body>"+run, 1)
	data := buildDOCX(t, doc)
	require.Less(t, len(data), 4<<10, "compresses below the cap")

	_, err := Extract("bomb.docx", data)
	assert.ErrorIs(t, err, ErrTooLarge)

	res, err := Extract("werte.docx", buildDOCX(t, sampleDocument))
	require.NoError(t, err)
	assert.Equal(t, 2, res.PageCount)
}

func TestExtract_ZipWithoutDocumentIsUnsupported(t *testing.T) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create("notes.txt")
	require.NoError(t, err)
	_, _ = w.Write([]byte("hi"))
	require.NoError(t, zw.Close())

	_, err = Extract("archive.zip", buf.Bytes())
	assert.ErrorIs(t, err, ErrUnsupportedType)
}

func TestExtract_HTML(t *testing.T) {
	html := `<!DOCTYPE html>
<html><head><title>Feedback-Leitfaden</title><style>p{color:red}</style></head>
<body>
<nav>Menu</nav>
<h1>Feedback geben</h1>
<p>Konkret   und <b>zeitnah</b>.</p>
<ul><li>Ich-Botschaften</li></ul>
<script>alert(1)</script>
</body></html>`

	res, err := Extract("guide.html", []byte(html))
	require.NoError(t, err)

	assert.Equal(t, TypeHTML, res.FileType)
	assert.Equal(t, "Feedback-Leitfaden\nFeedback geben\nKonkret und zeitnah.\nIch-Botschaften", res.Text)
	assert.NotContains(t, res.Text, "alert")
	assert.NotContains(t, res.Text, "Menu")
}

func TestExtract_PlainText(t *testing.T) {
	res, err := Extract("notes.md", []byte("# Ziele\r\n\r\n\r\n\r\n-  Delegieren   lernen  \n"))
	require.NoError(t, err)

	assert.Equal(t, TypeMD, res.FileType)
	assert.Equal(t, "# Ziele\n\n- Delegieren lernen", res.Text)
	assert.Equal(t, 5, res.WordCount)
	assert.Equal(t, 1, res.PageCount)

	res, err = Extract("README", []byte("Größe und Übung"))
	require.NoError(t, err)
	assert.Equal(t, TypeTXT, res.FileType)
	assert.Equal(t, 3, res.WordCount)
}

func TestExtract_Errors(t *testing.T) {
	_, err := Extract("empty.txt", nil)
	assert.ErrorIs(t, err, ErrEmptyFile)

	_, err = Extract("image.png", []byte{0x89, 'P', 'N', 'G', 0x00, 0x01})
	assert.ErrorIs(t, err, ErrUnsupportedType)

	_, err = Extract("fake.pdf", []byte{0x00, 0x01, 0x02, 0x03})
	assert.ErrorIs(t, err, ErrUnsupportedType)
}

func TestExtract_CorruptPDF(t *testing.T) {
	_, err := Extract("broken.pdf", []byte("%PDF-1.4\nnot really a pdf"))
	assert.Error(t, err)
}
