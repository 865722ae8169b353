package renpy

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"dreary/internal/atproto"
	"dreary/internal/logging"
	"dreary/internal/services"
)

// Reader is the subset of the XRPC client used for downloads.
type Reader interface {
	GetRecord(ctx context.Context, repo, collection, rkey string) (*atproto.Record, error)
	ListRecords(ctx context.Context, repo, collection string, fn func(atproto.Record) error) error
	GetBlob(ctx context.Context, did, cid string, w io.Writer) (int64, error)
}

// Connector returns a Reader for the repository hosting did.
type Connector func(ctx context.Context, did string) (Reader, error)

// DownloadResult reports what a download wrote.
type DownloadResult struct {
	Dir      string
	Written  int
	Existing int
	Rejected int
}

// Downloader restores a project from a repository.
type Downloader struct {
	connect Connector
	logger  *slog.Logger
}

// NewDownloader creates a Downloader.
func NewDownloader(connect Connector, logger *slog.Logger) *Downloader {
	return &Downloader{connect: connect, logger: logging.NewComponentLogger(logger, "renpy")}
}

type projectValue struct {
	Name string `json:"name"`
}

type assetValue struct {
	Path     string        `json:"path"`
	Project  string        `json:"project"`
	Contents string        `json:"contents"`
	File     *atproto.Blob `json:"file"`
}

// Download writes every asset of the project at projectURI under
// dir/<project name>/game. Files that already exist are left untouched.
func (d *Downloader) Download(ctx context.Context, dir, projectURI string) (DownloadResult, error) {
	var result DownloadResult
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		return result, services.Wrap(services.ErrValidation, "renpy", "download", "Enter a valid directory", err)
	}
	uri, err := atproto.ParseURI(projectURI)
	if err != nil {
		return result, services.Wrap(services.ErrValidation, "renpy", "download", "AT-URI not provided", err)
	}
	reader, err := d.connect(ctx, uri.DID)
	if err != nil {
		return result, err
	}
	rec, err := reader.GetRecord(ctx, uri.DID, uri.Collection, uri.RKey)
	if err != nil {
		return result, fmt.Errorf("get project record: %w", err)
	}
	var project projectValue
	if err := rec.Decode(&project); err != nil {
		return result, err
	}
	if project.Name == "" {
		return result, services.Wrap(services.ErrValidation, "renpy", "download", "Project record missing required field 'name'", nil)
	}
	if err := ValidateName(project.Name); err != nil {
		return result, services.Wrap(services.ErrValidation, "renpy", "download", "unsafe project name", err)
	}

	gameDir, err := filepath.Abs(filepath.Join(dir, project.Name, "game"))
	if err != nil {
		return result, err
	}
	result.Dir = gameDir
	canonical := uri.String()

	err = reader.ListRecords(ctx, uri.DID, CollectionAsset, func(rec atproto.Record) error {
		var asset assetValue
		if err := rec.Decode(&asset); err != nil {
			logging.WarnWithContext(d.logger, "skipping undecodable asset", "asset_decode_failed",
				logging.String(logging.FieldURI, rec.URI), logging.Error(err))
			return nil
		}
		if asset.Project != canonical {
			return nil
		}
		return d.writeAsset(ctx, reader, uri.DID, gameDir, rec.URI, asset, &result)
	})
	if err != nil {
		return result, err
	}
	d.logger.Info("downloads complete",
		logging.String("dir", gameDir),
		logging.Int("written", result.Written),
		logging.Int("existing", result.Existing))
	return result, nil
}

func (d *Downloader) writeAsset(ctx context.Context, reader Reader, did, gameDir, recURI string, asset assetValue, result *DownloadResult) error {
	if asset.Path == "" {
		logging.WarnWithContext(d.logger, "asset missing required field 'path'", "asset_missing_path",
			logging.String(logging.FieldURI, recURI))
		return nil
	}
	target, ok := SafeJoin(gameDir, asset.Path)
	if !ok {
		result.Rejected++
		logging.WarnWithContext(d.logger, "rejected unsafe asset path", "asset_unsafe_path",
			logging.String(logging.FieldURI, recURI),
			logging.String("path", asset.Path))
		return nil
	}
	if info, err := os.Stat(target); err == nil && info.Mode().IsRegular() {
		result.Existing++
		d.logger.Debug("file already exists, skipping", logging.String("path", asset.Path))
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return fmt.Errorf("create %s: %w", filepath.Dir(target), err)
	}

	switch {
	case asset.File != nil && asset.File.CID() != "":
		if err := downloadBlob(ctx, reader, did, asset.File.CID(), target); err != nil {
			return err
		}
	case asset.Contents != "":
		if err := os.WriteFile(target, []byte(asset.Contents), 0o644); err != nil {
			return fmt.Errorf("write %s: %w", target, err)
		}
	default:
		logging.WarnWithContext(d.logger, "asset has no data to download", "asset_empty",
			logging.String(logging.FieldURI, recURI))
		return nil
	}
	result.Written++
	d.logger.Debug("asset downloaded", logging.String(logging.FieldURI, recURI))
	return nil
}

func downloadBlob(ctx context.Context, reader Reader, did, cid, target string) error {
	tmp := target + ".part"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("create %s: %w", tmp, err)
	}
	_, getErr := reader.GetBlob(ctx, did, cid, f)
	closeErr := f.Close()
	if getErr != nil {
		_ = os.Remove(tmp)
		return getErr
	}
	if closeErr != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("close %s: %w", tmp, closeErr)
	}
	return os.Rename(tmp, target)
}

// SafeJoin joins a slash-separated relative path under root, rejecting paths
// that would escape it.
func SafeJoin(root, rel string) (string, bool) {
	if filepath.IsAbs(rel) || strings.HasPrefix(rel, "/") {
		return "", false
	}
	target := filepath.Join(root, filepath.FromSlash(rel))
	within, err := filepath.Rel(root, target)
	if err != nil || within == "." || within == ".." || strings.HasPrefix(within, ".."+string(filepath.Separator)) {
		return "", false
	}
	return target, true
}
