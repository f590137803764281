package main

import (
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/haiwise/knowledge-cli/internal/chunker"
	"github.com/haiwise/knowledge-cli/internal/index"
	"github.com/haiwise/knowledge-cli/internal/lexical"
	"github.com/haiwise/knowledge-cli/internal/loader"
	"github.com/haiwise/knowledge-cli/internal/model"
)

const loadConcurrency = 8

var indexCmd = &cobra.Command{
	Use:   "index <data-dir>",
	Short: "Build the vector and lexical indexes from a knowledge directory",
	Long:  "Loads every supported file under the directory, cleans and redacts its text, chunks it into knowledge units and builds the configured vector backend plus the lexical index.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		if err := cfg.Validate("index"); err != nil {
			return err
		}

		units, sources, err := loadUnits(cmd, args[0])
		if err != nil {
			return err
		}
		if len(units) == 0 {
			return eris.Errorf("no indexable content under %s", args[0])
		}

		embedder := initEmbedder()

		if cfg.Index.Backend == "qdrant" {
			q, err := index.NewQdrant(cfg.Index.QdrantAddr, cfg.Index.Collection, embedder)
			if err != nil {
				return err
			}
			defer q.Close() //nolint:errcheck
			if err := q.Build(ctx, units); err != nil {
				return err
			}
		} else {
			flat := index.NewFlat(embedder)
			if err := flat.Build(ctx, units); err != nil {
				return err
			}
			if err := flat.Save(cfg.Index.VectorPath); err != nil {
				return err
			}
		}

		lex := lexical.New()
		lex.Build(units)
		if err := lex.Save(cfg.Index.LexicalPath); err != nil {
			return err
		}

		zap.L().Info("index build complete",
			zap.Int("sources", sources),
			zap.Int("units", len(units)),
			zap.String("backend", cfg.Index.Backend),
		)

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(map[string]any{
			"sources": sources,
			"units":   len(units),
			"backend": cfg.Index.Backend,
		})
	},
}

// loadUnits walks the data directory and turns every supported file into
// knowledge units. Files load concurrently; per-file failures are logged
// and skipped so one broken file never aborts the build.
func loadUnits(cmd *cobra.Command, dir string) ([]model.KnowledgeUnit, int, error) {
	var paths []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && loader.Supported(path) {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, 0, eris.Wrapf(err, "walk %s", dir)
	}
	sort.Strings(paths)

	ld := loader.New()
	cleaner := loader.NewCleaner()
	sanitizer := loader.NewSanitizer()
	chk := chunker.New(cfg.Chunk.Size, cfg.Chunk.Overlap)

	// Per-path result slots keep the unit order independent of goroutine
	// scheduling.
	perFile := make([][]model.KnowledgeUnit, len(paths))

	g, ctx := errgroup.WithContext(cmd.Context())
	g.SetLimit(loadConcurrency)
	for i, path := range paths {
		g.Go(func() error {
			doc, err := ld.Load(ctx, path)
			if err != nil {
				if errors.Is(err, loader.ErrUnsupportedFormat) {
					return nil
				}
				zap.L().Warn("skipping unreadable file", zap.String("path", path), zap.Error(err))
				return nil
			}

			text := sanitizer.Sanitize(cleaner.Clean(doc.Content, doc.Language))
			source := filepath.Base(path)
			kind := doc.Language
			if doc.Kind == model.KindDocument {
				kind = "document"
			}
			perFile[i] = chk.Split(text, source, kind)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, 0, err
	}

	var units []model.KnowledgeUnit
	sources := 0
	for _, batch := range perFile {
		if len(batch) > 0 {
			sources++
		}
		units = append(units, batch...)
	}
	return units, sources, nil
}

func init() {
	rootCmd.AddCommand(indexCmd)
}
