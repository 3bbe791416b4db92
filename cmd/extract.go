package main

import (
	"context"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/vehicle-catalog/internal/fetcher"
	"github.com/sells-group/vehicle-catalog/internal/model"
	"github.com/sells-group/vehicle-catalog/internal/pipeline"
)

var (
	extractBrand  string
	extractTitle  string
	extractExport string
	extractOut    string
)

var extractCmd = &cobra.Command{
	Use:   "extract <file-or-url>...",
	Short: "Extract vehicles from local files or PDF links without scraping",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initPipeline(ctx, envOptions{Mode: "extract"})
		if err != nil {
			return err
		}
		defer env.Close()

		docs, err := loadDocuments(ctx, env.Fetcher, args, extractBrand, extractTitle)
		if err != nil {
			return err
		}

		result, err := env.Pipeline.Process(ctx, docs)
		if err != nil {
			return eris.Wrap(err, "extract: pipeline")
		}
		return finish(ctx, env, result, sinkOptions{Export: extractExport, Out: extractOut})
	},
}

// loadDocuments turns command arguments into raw documents. Local files
// are read directly; anything with a URL scheme is downloaded as a PDF.
// A file is a PDF when it starts with the PDF header, HTML otherwise.
func loadDocuments(ctx context.Context, f pipeline.PDFFetcher, inputs []string, brand, title string) ([]model.RawDocument, error) {
	docs := make([]model.RawDocument, 0, len(inputs))
	for i, in := range inputs {
		doc := model.RawDocument{
			SourceURL: in,
			Index:     i,
			BrandHint: brand,
			TitleHint: title,
		}

		if isRemote(in) {
			if f == nil {
				return nil, eris.Errorf("extract: no fetcher for %s", in)
			}
			data, err := f.FetchPDF(ctx, in)
			if err != nil {
				return nil, eris.Wrapf(err, "extract: fetch %s", in)
			}
			doc.Kind = model.KindPDF
			doc.Payload = data
			docs = append(docs, doc)
			continue
		}

		data, err := os.ReadFile(in)
		if err != nil {
			return nil, eris.Wrapf(err, "extract: read %s", in)
		}
		doc.SourceURL = "file://" + filepath.ToSlash(absPath(in))
		doc.Payload = data
		doc.Kind = model.KindHTML
		if fetcher.IsPDF(data) {
			doc.Kind = model.KindPDF
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

func isRemote(in string) bool {
	u, err := url.Parse(in)
	if err != nil || u.Scheme == "" {
		return false
	}
	switch strings.ToLower(u.Scheme) {
	case "http", "https", "ftp", "file":
		return true
	}
	return false
}

func absPath(p string) string {
	if abs, err := filepath.Abs(p); err == nil {
		return abs
	}
	return p
}

func init() {
	extractCmd.Flags().StringVar(&extractBrand, "brand", "", "brand applied to documents that do not name one")
	extractCmd.Flags().StringVar(&extractTitle, "title", "", "model name applied to documents that do not name one")
	extractCmd.Flags().StringVar(&extractExport, "export", "", "write the catalog to this xlsx file")
	extractCmd.Flags().StringVar(&extractOut, "out", "", "write the result JSON to this file (default stdout)")
	rootCmd.AddCommand(extractCmd)
}
