package extract

import (
	"archive/zip"
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtract_PlainText(t *testing.T) {
	e := NewExtractor()

	res, err := e.Extract([]byte("This mutual non-disclosure agreement is entered into by the parties."), "txt")
	require.NoError(t, err)

	assert.Equal(t, "plain", res.Method)
	assert.Equal(t, 11, res.WordCount)
	assert.Equal(t, 1, res.PageCount)
	assert.Contains(t, res.Text, "non-disclosure")
}

func TestExtract_Markdown(t *testing.T) {
	e := NewExtractor()

	res, err := e.Extract([]byte("# Agreement\n\nSome terms here."), "md")
	require.NoError(t, err)
	assert.Equal(t, "plain", res.Method)
	assert.Equal(t, 4, res.WordCount)
}

func TestExtract_EmptyInput(t *testing.T) {
	e := NewExtractor()

	_, err := e.Extract(nil, "txt")
	assert.Error(t, err)
}

func TestExtract_UnsupportedType(t *testing.T) {
	e := NewExtractor()

	_, err := e.Extract([]byte("data"), "rtf")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported file type")
}

func TestExtract_DOCX(t *testing.T) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create("word/document.xml")
	require.NoError(t, err)
	_, err = w.Write([]byte(`<?xml version="1.0"?><document><body><p><r><t>Termination for convenience requires thirty days notice.</t></r></p></body></document>`))
	require.NoError(t, err)
	require.NoError(t, zw.Close())

	e := NewExtractor()
	res, err := e.Extract(buf.Bytes(), "docx")
	require.NoError(t, err)

	assert.Equal(t, "docx", res.Method)
	assert.Contains(t, res.Text, "Termination for convenience")
	assert.Equal(t, 7, res.WordCount)
}

func TestExtract_DOCX_MissingDocumentXML(t *testing.T) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create("word/styles.xml")
	require.NoError(t, err)
	_, err = w.Write([]byte("<styles/>"))
	require.NoError(t, err)
	require.NoError(t, zw.Close())

	e := NewExtractor()
	_, err = e.Extract(buf.Bytes(), "docx")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "missing word/document.xml")
}

func TestCountWords(t *testing.T) {
	assert.Equal(t, 0, countWords(""))
	assert.Equal(t, 0, countWords("   \n\t "))
	assert.Equal(t, 3, countWords("one  two\nthree"))
}

func TestExtract_FileTypeNormalization(t *testing.T) {
	e := NewExtractor()

	res, err := e.Extract([]byte("hello world"), ".TXT")
	require.NoError(t, err)
	assert.Equal(t, 2, res.WordCount)

	longText := strings.Repeat("word ", 30)
	res, err = e.Extract([]byte(longText), "text")
	require.NoError(t, err)
	assert.Equal(t, 30, res.WordCount)
}
