package ingest

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"xplorer/internal/apperr"
	"xplorer/internal/blob"
	"xplorer/internal/docstore"
	"xplorer/internal/images"
	"xplorer/internal/latex"
	"xplorer/internal/paper"
	"xplorer/internal/pdfdoc"
)

// Ingestor runs the full pipeline for one paper: metadata, source download,
// parse (LaTeX first, PDF fallback), and figure archive upload.
type Ingestor struct {
	Client  *Client
	Blobs   *blob.Store
	WorkDir string

	builder *latex.Builder
}

func NewIngestor(client *Client, blobs *blob.Store, workDir string) *Ingestor {
	return &Ingestor{
		Client:  client,
		Blobs:   blobs,
		WorkDir: workDir,
		builder: latex.NewBuilder(latex.DefaultRegistry()),
	}
}

// Ingest fetches and parses one paper. The input may be a raw identifier or
// an abs/pdf URL.
func (ing *Ingestor) Ingest(ctx context.Context, rawID string) (*paper.Record, error) {
	const op = "ingest.Ingestor.Ingest"

	id := CleanID(rawID)
	if id == "" {
		return nil, apperr.New(apperr.ParseFailure, op, "%q is not an arXiv identifier", rawID)
	}
	sid := docstore.SanitizeKey(id)

	meta, err := ing.Client.Metadata(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(ing.WorkDir, 0o755); err != nil {
		return nil, fmt.Errorf("create work dir: %w", err)
	}
	dir, err := os.MkdirTemp(ing.WorkDir, sid+"-*")
	if err != nil {
		return nil, fmt.Errorf("create scratch dir: %w", err)
	}
	defer os.RemoveAll(dir)

	payload, err := ing.Client.DownloadSource(ctx, id)
	if err != nil {
		return nil, err
	}
	kind, err := Unpack(payload, dir)
	if err != nil {
		return nil, err
	}

	var doc *paper.Document
	if kind == SourceLatex {
		doc, err = ing.buildFromLatex(dir, sid, meta.Title)
		if err != nil {
			log.Printf("ingest: latex parse of %s failed, falling back to pdf: %v", id, err)
			doc = nil
		}
	}
	if doc == nil {
		pdfPath := filepath.Join(dir, PDFName)
		if kind != SourcePDF {
			// The e-print was LaTeX but unusable; fetch the rendered PDF.
			data, err := ing.Client.DownloadPDF(ctx, id)
			if err != nil {
				return nil, err
			}
			if err := os.WriteFile(pdfPath, data, 0o644); err != nil {
				return nil, fmt.Errorf("write pdf: %w", err)
			}
		}
		doc, err = ing.buildFromPDF(pdfPath, sid, meta.Title)
		if err != nil {
			return nil, err
		}
	}

	rec := &paper.Record{
		ID:              id,
		Title:           meta.Title,
		Date:            meta.Date,
		Authors:         meta.Authors,
		Abstract:        meta.Abstract,
		CanReadCitation: doc.CanReadCitation(),
		Doc:             doc,
	}
	if doc.HasTableOfContents() {
		rec.TableOfContents = doc.TableOfContents()
	}
	return rec, nil
}

// buildFromLatex parses the unpacked sources and uploads the figure source
// files as one zip archive, rewriting figure paths to archive entry names.
func (ing *Ingestor) buildFromLatex(dir, sid, title string) (*paper.Document, error) {
	const op = "ingest.Ingestor.buildFromLatex"

	doc, err := ing.builder.BuildDocument(dir, title)
	if err != nil {
		return nil, err
	}
	// A flat document means the parse missed the sectioning; the PDF
	// outline is the better source then.
	if len(doc.Root.Subsections) == 0 {
		return nil, apperr.New(apperr.ParseFailure, op, "no sections recognized")
	}

	var paths []string
	for _, fig := range doc.Figures {
		paths = append(paths, fig.Paths...)
	}
	if len(paths) > 0 {
		archive, err := images.PackZip(paths)
		if err != nil {
			return nil, err
		}
		if err := ing.Blobs.Upload(blob.ArchiveKey(sid, "zip"), archive); err != nil {
			return nil, err
		}
		for _, fig := range doc.Figures {
			for i, p := range fig.Paths {
				fig.Paths[i] = filepath.Base(p)
			}
		}
	}
	return doc, nil
}

// buildFromPDF parses a rendered PDF and uploads it whole as the figure
// archive; figure images are cropped from it on demand.
func (ing *Ingestor) buildFromPDF(path, sid, title string) (*paper.Document, error) {
	ex, err := pdfdoc.Extract(path)
	if err != nil {
		return nil, apperr.Wrap(apperr.ParseFailure, "ingest.Ingestor.buildFromPDF", err)
	}
	doc, err := pdfdoc.BuildDocument(ex, nil, title)
	if err != nil {
		return nil, err
	}
	if err := ing.Blobs.UploadFile(blob.ArchiveKey(sid, "pdf"), path); err != nil {
		return nil, err
	}
	return doc, nil
}
