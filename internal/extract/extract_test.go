package extract

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"testing"

	"github.com/cuttothechaseo/ai-finance-sub001/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRunner struct {
	stdout []byte
	stderr []byte
	err    error

	name string
	args []string
	// pdf holds the temp file's contents as seen during the call
	pdf []byte
}

func (f *fakeRunner) Run(_ context.Context, name string, args ...string) ([]byte, []byte, error) {
	f.name = name
	f.args = args
	if len(args) >= 2 {
		f.pdf, _ = os.ReadFile(args[len(args)-2])
	}
	return f.stdout, f.stderr, f.err
}

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestDetectType(t *testing.T) {
	tests := []struct {
		fileType string
		fileName string
		want     string
	}{
		{"application/pdf", "", TypePDF},
		{"PDF", "", TypePDF},
		{".docx", "", TypeDOCX},
		{"application/vnd.openxmlformats-officedocument.wordprocessingml.document", "", TypeDOCX},
		{"text/plain", "", TypeTXT},
		{"", "resume.MD", TypeMD},
		{"application/octet-stream", "cv.pdf", TypePDF},
		{"", "resume.markdown", TypeMD},
		{"image/png", "scan.png", ""},
	}

	for _, tt := range tests {
		t.Run(tt.fileType+"|"+tt.fileName, func(t *testing.T) {
			assert.Equal(t, tt.want, DetectType(tt.fileType, tt.fileName))
		})
	}
}

func TestExtractor_PlainText(t *testing.T) {
	e := NewWithRunner(config.ExtractConfig{MaxChars: 20000}, &fakeRunner{}, discard())

	data := []byte("\xef\xbb\xbfJane Doe\r\n\r\n\r\n\r\nAnalyst\t\tGoldman   Sachs  \r\n")
	got, err := e.Extract(context.Background(), "txt", "resume.txt", data)
	require.NoError(t, err)
	assert.Equal(t, "Jane Doe\n\nAnalyst Goldman Sachs", got)
}

func TestExtractor_TruncatesToMaxChars(t *testing.T) {
	e := NewWithRunner(config.ExtractConfig{MaxChars: 5}, &fakeRunner{}, discard())

	got, err := e.Extract(context.Background(), "md", "", []byte("héllo world"))
	require.NoError(t, err)
	assert.Equal(t, "héllo", got)
}

func TestExtractor_EmptyText(t *testing.T) {
	e := NewWithRunner(config.ExtractConfig{}, &fakeRunner{}, discard())

	_, err := e.Extract(context.Background(), "txt", "", []byte("  \n\t \r\n"))
	assert.ErrorIs(t, err, ErrEmptyText)
}

func TestExtractor_UnsupportedType(t *testing.T) {
	e := NewWithRunner(config.ExtractConfig{}, &fakeRunner{}, discard())

	_, err := e.Extract(context.Background(), "image/png", "scan.png", []byte{0x89, 'P', 'N', 'G'})
	assert.ErrorIs(t, err, ErrUnsupportedType)
}

func TestExtractor_PDFPlaceholderWithoutTool(t *testing.T) {
	runner := &fakeRunner{}
	e := NewWithRunner(config.ExtractConfig{}, runner, discard())

	got, err := e.Extract(context.Background(), "pdf", "jane.pdf", []byte("%PDF-1.7"))
	require.NoError(t, err)
	assert.Contains(t, got, "PDF resume \"jane.pdf\"")
	assert.Empty(t, runner.name, "no command runs without pdftotext configured")
}

func TestExtractor_WordPlaceholder(t *testing.T) {
	e := NewWithRunner(config.ExtractConfig{}, &fakeRunner{}, discard())

	got, err := e.Extract(context.Background(), "docx", "jane.docx", []byte("PK..."))
	require.NoError(t, err)
	assert.Contains(t, got, "Word resume")
}

func TestExtractor_PDFWithPdftotext(t *testing.T) {
	runner := &fakeRunner{stdout: []byte("Jane Doe\fPage two\n")}
	e := NewWithRunner(config.ExtractConfig{PdftotextPath: "/usr/bin/pdftotext"}, runner, discard())

	got, err := e.Extract(context.Background(), "application/pdf", "jane.pdf", []byte("%PDF-1.7 body"))
	require.NoError(t, err)
	assert.Equal(t, "Jane Doe\nPage two", got)

	assert.Equal(t, "/usr/bin/pdftotext", runner.name)
	assert.Equal(t, []string{"-layout", "-enc", "UTF-8", "-eol", "unix"}, runner.args[:5])
	assert.Equal(t, "-", runner.args[len(runner.args)-1])
	assert.Equal(t, []byte("%PDF-1.7 body"), runner.pdf)
}

func TestExtractor_PDFToolFailure(t *testing.T) {
	runner := &fakeRunner{err: errors.New("exit status 1"), stderr: []byte("Syntax Error: broken xref")}
	e := NewWithRunner(config.ExtractConfig{PdftotextPath: "pdftotext"}, runner, discard())

	_, err := e.Extract(context.Background(), "pdf", "jane.pdf", []byte("%PDF"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "pdftotext failed")
	assert.Contains(t, err.Error(), "broken xref")
}

func TestNormalize(t *testing.T) {
	assert.Equal(t, "", Normalize(""))
	assert.Equal(t, "a b\n\nc", Normalize("a \t b   \n\n\n\n\nc   "))
}
