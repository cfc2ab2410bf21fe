package ingest

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"xplorer/internal/apperr"
)

// SourceKind says what an e-print payload unpacked into.
type SourceKind int

const (
	// SourceLatex is a directory of LaTeX sources.
	SourceLatex SourceKind = iota
	// SourcePDF is a bare PDF; arXiv serves these for papers submitted
	// without sources.
	SourcePDF
)

// PDFName is the file name a bare-PDF payload is unpacked to.
const PDFName = "paper.pdf"

// Unpack writes an e-print payload into dir and reports what it was: a
// gzipped tar of LaTeX sources, a gzipped single tex file (written as
// main.tex), or a bare PDF (written as PDFName).
func Unpack(payload []byte, dir string) (SourceKind, error) {
	const op = "ingest.Unpack"

	if bytes.HasPrefix(payload, []byte("%PDF")) {
		if err := os.WriteFile(filepath.Join(dir, PDFName), payload, 0o644); err != nil {
			return 0, fmt.Errorf("write pdf: %w", err)
		}
		return SourcePDF, nil
	}

	gz, err := gzip.NewReader(bytes.NewReader(payload))
	if err != nil {
		return 0, apperr.New(apperr.ParseFailure, op, "unrecognized e-print payload")
	}
	raw, err := io.ReadAll(gz)
	if err != nil {
		return 0, apperr.Wrap(apperr.ParseFailure, op, err)
	}

	if err := untar(raw, dir); err == nil {
		return SourceLatex, nil
	}
	// Not a tar: a single gzipped tex file.
	if err := os.WriteFile(filepath.Join(dir, "main.tex"), raw, 0o644); err != nil {
		return 0, fmt.Errorf("write main.tex: %w", err)
	}
	return SourceLatex, nil
}

func untar(data []byte, dir string) error {
	tr := tar.NewReader(bytes.NewReader(data))
	wrote := false
	for {
		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			if wrote {
				// Truncated after real entries: keep what unpacked rather
				// than letting the caller mistake a tar for a single file.
				return nil
			}
			return err
		}

		name := filepath.Clean(hdr.Name)
		if strings.HasPrefix(name, "..") || filepath.IsAbs(name) {
			continue
		}
		dst := filepath.Join(dir, name)

		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(dst, 0o755); err != nil {
				return err
			}
		case tar.TypeReg:
			if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
				return err
			}
			f, err := os.Create(dst)
			if err != nil {
				return err
			}
			if _, err := io.Copy(f, tr); err != nil {
				f.Close()
				return err
			}
			f.Close()
			wrote = true
		}
	}
	if !wrote {
		return errors.New("empty archive")
	}
	return nil
}
