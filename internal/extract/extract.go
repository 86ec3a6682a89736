// Package extract turns an uploaded resume file into plain text.
package extract

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/cuttothechaseo/ai-finance-sub001/internal/config"
)

const (
	TypePDF  = "pdf"
	TypeDOC  = "doc"
	TypeDOCX = "docx"
	TypeTXT  = "txt"
	TypeMD   = "md"
	TypeRTF  = "rtf"
)

var (
	ErrEmptyText       = errors.New("no text could be extracted from the resume")
	ErrUnsupportedType = errors.New("unsupported resume file type")
)

// Runner lets tests stub external commands.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) (stdout, stderr []byte, err error)
}

type execRunner struct {
	logger *slog.Logger
}

func (r execRunner) Run(ctx context.Context, name string, args ...string) ([]byte, []byte, error) {
	start := time.Now()

	cmd := exec.CommandContext(ctx, name, args...)
	var out, errb bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &errb

	err := cmd.Run()
	if err != nil {
		r.logger.Error("exec failed",
			slog.String("cmd", name),
			slog.Duration("duration", time.Since(start)),
			slog.String("error", err.Error()),
			slog.String("stderr", truncate(errb.String(), 8<<10)),
		)
	} else {
		r.logger.Debug("exec ok",
			slog.String("cmd", name),
			slog.Duration("duration", time.Since(start)),
			slog.Int("stdout_bytes", out.Len()),
		)
	}

	return out.Bytes(), errb.Bytes(), err
}

// Extractor picks an extraction strategy by file type.
type Extractor struct {
	cfg    config.ExtractConfig
	runner Runner
	logger *slog.Logger
}

func New(cfg config.ExtractConfig, logger *slog.Logger) *Extractor {
	return NewWithRunner(cfg, execRunner{logger: logger}, logger)
}

func NewWithRunner(cfg config.ExtractConfig, runner Runner, logger *slog.Logger) *Extractor {
	return &Extractor{cfg: cfg, runner: runner, logger: logger}
}

// DetectType maps a declared file type (extension or MIME type) to one of
// the Type constants, falling back to the file name's extension.
func DetectType(fileType, fileName string) string {
	t := strings.ToLower(strings.TrimSpace(fileType))
	switch t {
	case "application/pdf":
		return TypePDF
	case "application/msword":
		return TypeDOC
	case "application/vnd.openxmlformats-officedocument.wordprocessingml.document":
		return TypeDOCX
	case "text/plain":
		return TypeTXT
	case "text/markdown":
		return TypeMD
	case "application/rtf", "text/rtf":
		return TypeRTF
	}

	t = strings.TrimPrefix(t, ".")
	switch t {
	case TypePDF, TypeDOC, TypeDOCX, TypeTXT, TypeMD, TypeRTF:
		return t
	}

	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(fileName)), ".")
	switch ext {
	case TypePDF, TypeDOC, TypeDOCX, TypeTXT, TypeMD, TypeRTF:
		return ext
	case "markdown":
		return TypeMD
	}

	return ""
}

// Extract returns normalized resume text for data of the given type.
func (e *Extractor) Extract(ctx context.Context, fileType, fileName string, data []byte) (string, error) {
	kind := DetectType(fileType, fileName)

	var text string
	switch kind {
	case TypeTXT, TypeMD, TypeRTF:
		text = decodeText(data)
	case TypePDF:
		var err error
		text, err = e.pdfText(ctx, fileName, data)
		if err != nil {
			return "", err
		}
	case TypeDOC, TypeDOCX:
		text = placeholder("Word", fileName, len(data))
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedType, fileType)
	}

	text = Normalize(text)
	if text == "" {
		return "", ErrEmptyText
	}

	if e.cfg.MaxChars > 0 {
		text = truncateRunes(text, e.cfg.MaxChars)
	}

	return text, nil
}

func (e *Extractor) pdfText(ctx context.Context, fileName string, data []byte) (string, error) {
	if e.cfg.PdftotextPath == "" {
		return placeholder("PDF", fileName, len(data)), nil
	}

	tmp, err := os.CreateTemp("", "resume-*.pdf")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	defer func() {
		if err := os.Remove(tmp.Name()); err != nil {
			e.logger.Warn("failed to remove temp file", slog.String("path", tmp.Name()), slog.String("error", err.Error()))
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return "", fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("close temp file: %w", err)
	}

	if e.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.cfg.Timeout)
		defer cancel()
	}

	// pdftotext -layout -enc UTF-8 -eol unix <path> -
	out, errb, err := e.runner.Run(ctx, e.cfg.PdftotextPath, "-layout", "-enc", "UTF-8", "-eol", "unix", tmp.Name(), "-")
	if err != nil {
		return "", fmt.Errorf("pdftotext failed: %w: %s", err, truncate(string(errb), 200))
	}

	return string(out), nil
}

func placeholder(kind, fileName string, size int) string {
	name := fileName
	if name == "" {
		name = "resume"
	}
	return fmt.Sprintf("[%s resume %q, %d bytes. Full text extraction is not available for this format; "+
		"analyze based on typical content for the target role and note that the document could not be read in full.]",
		kind, name, size)
}

func decodeText(data []byte) string {
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))
	if utf8.Valid(data) {
		return string(data)
	}
	return strings.ToValidUTF8(string(data), "")
}

var (
	reCRLF       = regexp.MustCompile(`\r\n?`)
	reTabs       = regexp.MustCompile(`\t+`)
	reMultiSpace = regexp.MustCompile(` {2,}`)
	reMultiBlank = regexp.MustCompile(`\n{3,}`)
)

// Normalize collapses noisy whitespace; line breaks are kept.
func Normalize(s string) string {
	if s == "" {
		return s
	}
	s = strings.ReplaceAll(s, "\f", "\n")
	s = reCRLF.ReplaceAllString(s, "\n")
	s = reTabs.ReplaceAllString(s, " ")
	s = reMultiSpace.ReplaceAllString(s, " ")
	s = reMultiBlank.ReplaceAllString(s, "\n\n")

	lines := strings.Split(s, "\n")
	for i := range lines {
		lines[i] = strings.TrimRight(lines[i], " ")
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n])
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "...(truncated)"
}
