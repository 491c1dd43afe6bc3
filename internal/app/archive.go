package app

import (
	"archive/tar"
	"compress/gzip"
	"io"
	"os"

	"github.com/go-git/go-git/v5/plumbing/filemode"

	"github.com/dabstractor/jin/internal/jinerr"
	"github.com/dabstractor/jin/internal/layer"
)

// Export serializes target's current tree to a gzipped tarball at
// archivePath (spec SUPPLEMENTED FEATURES `jin export`), so a layer can
// be handed to a teammate without giving them object-store or transport
// access. Uses archive/tar + compress/gzip: no ecosystem archiver
// appeared anywhere in the retrieval pack for this concern.
func (a *App) Export(flags layer.Flags, archivePath string) error {
	ctx, err := a.ActiveContext()
	if err != nil {
		return err
	}
	target, err := layer.Route(flags, ctx, ctx.Project)
	if err != nil {
		return err
	}
	refPath, err := layer.RefPath(target)
	if err != nil {
		return jinerr.Validationf("%v", err)
	}
	tip, err := a.Store.Resolve(refPath)
	if err != nil {
		return jinerr.NotFoundf("layer", target.Key())
	}
	info, err := a.Store.ReadCommit(tip)
	if err != nil {
		return err
	}
	files, err := a.Store.WalkFiles(info.Tree)
	if err != nil {
		return err
	}

	out, err := os.Create(archivePath)
	if err != nil {
		return jinerr.Wrap(err)
	}
	defer out.Close()

	gz := gzip.NewWriter(out)
	tw := tar.NewWriter(gz)

	for path, entry := range files {
		data, err := a.Store.ReadBlob(entry.Hash)
		if err != nil {
			return err
		}
		mode := int64(0o644)
		if entry.Mode == filemode.Executable {
			mode = 0o755
		}
		hdr := &tar.Header{Name: path, Size: int64(len(data)), Mode: mode}
		if err := tw.WriteHeader(hdr); err != nil {
			return jinerr.Wrap(err)
		}
		if _, err := tw.Write(data); err != nil {
			return jinerr.Wrap(err)
		}
	}

	if err := tw.Close(); err != nil {
		return jinerr.Wrap(err)
	}
	return jinerr.Wrap(gz.Close())
}

// Import reads a gzipped tarball written by Export and stages its
// contents against target, so `jin commit` folds the imported layer's
// files into the routed layer as one new commit (spec SUPPLEMENTED
// FEATURES `jin import`).
func (a *App) Import(flags layer.Flags, archivePath string) ([]string, error) {
	in, err := os.Open(archivePath)
	if err != nil {
		return nil, jinerr.Wrap(err)
	}
	defer in.Close()

	gz, err := gzip.NewReader(in)
	if err != nil {
		return nil, jinerr.Wrap(err)
	}
	defer gz.Close()

	ctx, err := a.ActiveContext()
	if err != nil {
		return nil, err
	}
	target, err := layer.Route(flags, ctx, ctx.Project)
	if err != nil {
		return nil, err
	}

	var imported []string
	tr := tar.NewReader(gz)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, jinerr.Wrap(err)
		}
		if hdr.Typeflag != tar.TypeReg {
			continue
		}
		data, err := io.ReadAll(tr)
		if err != nil {
			return nil, jinerr.Wrap(err)
		}
		hash, err := a.Store.WriteBlob(data)
		if err != nil {
			return nil, err
		}
		mode := filemode.Regular
		if hdr.Mode&0o111 != 0 {
			mode = filemode.Executable
		}
		if err := a.Stage.StageAdd(hdr.Name, target, hash, mode); err != nil {
			return nil, err
		}
		imported = append(imported, hdr.Name)
	}
	return imported, nil
}
