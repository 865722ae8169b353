package renpy

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"golang.org/x/sync/errgroup"

	"dreary/internal/atproto"
	"dreary/internal/ledger"
	"dreary/internal/logging"
	"dreary/internal/services"
)

// Writer is the subset of the XRPC client used for uploads.
type Writer interface {
	DID() string
	CreateRecord(ctx context.Context, collection, rkey string, record any) (string, error)
	ApplyWritesBatched(ctx context.Context, writes []atproto.Write, size int, progress atproto.BatchProgress) ([]atproto.WriteResult, error)
}

// UploadResult reports what an upload wrote.
type UploadResult struct {
	ProjectURI string
	Assets     int
	Skipped    int
}

// Uploader writes a game directory to a repository.
type Uploader struct {
	repo        Writer
	blobs       *ledger.Uploader
	batchSize   int
	concurrency int
	logger      *slog.Logger
}

// NewUploader creates an Uploader. Blob uploads run at most concurrency at a time.
func NewUploader(repo Writer, blobs *ledger.Uploader, batchSize, concurrency int, logger *slog.Logger) *Uploader {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Uploader{
		repo:        repo,
		blobs:       blobs,
		batchSize:   batchSize,
		concurrency: concurrency,
		logger:      logging.NewComponentLogger(logger, "renpy"),
	}
}

type assetFile struct {
	fullPath string
	relPath  string
	text     bool
	mimeType string
}

// Upload creates the project record and one asset record per supported file
// under root.
func (u *Uploader) Upload(ctx context.Context, root, name string) (UploadResult, error) {
	var result UploadResult
	if err := ValidateName(name); err != nil {
		return result, services.Wrap(services.ErrValidation, "renpy", "name", err.Error(), nil)
	}
	info, err := os.Stat(root)
	if err != nil || !info.IsDir() {
		return result, services.Wrap(services.ErrValidation, "renpy", "upload", "Enter a valid directory", err)
	}

	files, skipped, err := collectAssets(root)
	if err != nil {
		return result, err
	}
	result.Skipped = skipped

	projectURI, err := u.repo.CreateRecord(ctx, CollectionProject, "", projectRecord{
		Type:      CollectionProject,
		Name:      name,
		CreatedAt: atproto.Now(),
	})
	if err != nil {
		return result, fmt.Errorf("create project record: %w", err)
	}
	result.ProjectURI = projectURI
	u.logger.Info("project record created", logging.String(logging.FieldURI, projectURI))

	records, err := u.draftAssets(ctx, files, projectURI)
	if err != nil {
		return result, err
	}
	if len(records) == 0 {
		u.logger.Info("no records to write")
		return result, nil
	}

	writes := make([]atproto.Write, len(records))
	for i, rec := range records {
		writes[i] = atproto.Create(CollectionAsset, rec)
	}
	results, err := u.repo.ApplyWritesBatched(ctx, writes, u.batchSize, func(done, total int) {
		u.logger.Info("applyWrites complete", logging.Int("batch", done), logging.Int("batches", total))
	})
	if err != nil {
		return result, err
	}
	result.Assets = len(atproto.CreatedURIs(results))
	return result, nil
}

func collectAssets(root string) ([]assetFile, int, error) {
	var files []assetFile
	skipped := 0
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		text, mimeType, ok := assetKind(path)
		if !ok {
			skipped++
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		files = append(files, assetFile{
			fullPath: path,
			relPath:  filepath.ToSlash(rel),
			text:     text,
			mimeType: mimeType,
		})
		return nil
	})
	if err != nil {
		return nil, 0, fmt.Errorf("walk %s: %w", root, err)
	}
	return files, skipped, nil
}

// draftAssets builds asset records in walk order, uploading blobs concurrently.
func (u *Uploader) draftAssets(ctx context.Context, files []assetFile, projectURI string) ([]assetRecord, error) {
	records := make([]assetRecord, len(files))
	createdAt := atproto.Now()
	for i, f := range files {
		records[i] = assetRecord{
			Type:      CollectionAsset,
			Path:      f.relPath,
			Project:   projectURI,
			CreatedAt: createdAt,
		}
		if !f.text {
			continue
		}
		data, err := os.ReadFile(f.fullPath)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", f.relPath, err)
		}
		records[i].Contents = string(data)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(u.concurrency)
	for i, f := range files {
		if f.text {
			continue
		}
		g.Go(func() error {
			blob, err := u.blobs.UploadFileAs(gctx, f.fullPath, f.mimeType)
			if err != nil {
				return fmt.Errorf("upload %s: %w", f.relPath, err)
			}
			records[i].File = blob
			u.logger.Debug("asset uploaded", logging.String("path", f.relPath))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return records, nil
}
