package backup

import (
	"archive/tar"
	"compress/gzip"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// packArchive bundles every regular file in srcDir into a gzip-compressed tar
// stream at targetPath and returns the archive's size and SHA256. It writes
// to a temporary sibling and renames on success, so a failed packaging never
// leaves a partial archive at the target path.
func packArchive(srcDir, targetPath string) (int64, string, error) {
	entries, err := os.ReadDir(srcDir)
	if err != nil {
		return 0, "", fmt.Errorf("read working dir: %w", err)
	}

	partial := targetPath + ".partial"
	out, err := os.Create(partial)
	if err != nil {
		return 0, "", fmt.Errorf("create archive: %w", err)
	}

	hash := sha256.New()
	gzw := gzip.NewWriter(io.MultiWriter(out, hash))
	tw := tar.NewWriter(gzw)

	fail := func(err error) (int64, string, error) {
		tw.Close()
		gzw.Close()
		out.Close()
		os.Remove(partial)
		return 0, "", err
	}

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			return fail(fmt.Errorf("stat %s: %w", entry.Name(), err))
		}
		hdr, err := tar.FileInfoHeader(info, "")
		if err != nil {
			return fail(fmt.Errorf("tar header %s: %w", entry.Name(), err))
		}
		hdr.Name = entry.Name()
		if err := tw.WriteHeader(hdr); err != nil {
			return fail(fmt.Errorf("write tar header %s: %w", entry.Name(), err))
		}
		f, err := os.Open(filepath.Join(srcDir, entry.Name()))
		if err != nil {
			return fail(fmt.Errorf("open %s: %w", entry.Name(), err))
		}
		_, err = io.Copy(tw, f)
		f.Close()
		if err != nil {
			return fail(fmt.Errorf("archive %s: %w", entry.Name(), err))
		}
	}

	if err := tw.Close(); err != nil {
		return fail(fmt.Errorf("finalize tar: %w", err))
	}
	if err := gzw.Close(); err != nil {
		return fail(fmt.Errorf("finalize gzip: %w", err))
	}
	if err := out.Close(); err != nil {
		os.Remove(partial)
		return 0, "", fmt.Errorf("close archive: %w", err)
	}

	info, err := os.Stat(partial)
	if err != nil {
		os.Remove(partial)
		return 0, "", fmt.Errorf("stat archive: %w", err)
	}
	if err := os.Rename(partial, targetPath); err != nil {
		os.Remove(partial)
		return 0, "", fmt.Errorf("finalize archive: %w", err)
	}

	return info.Size(), hex.EncodeToString(hash.Sum(nil)), nil
}

// unpackArchive extracts a tar.gz archive into destDir. Entry names are
// flattened to their base name, which also defuses path traversal.
func unpackArchive(archivePath, destDir string) error {
	f, err := os.Open(archivePath)
	if err != nil {
		return fmt.Errorf("open archive: %w", err)
	}
	defer f.Close()

	gzr, err := gzip.NewReader(f)
	if err != nil {
		return fmt.Errorf("read gzip stream: %w", err)
	}
	defer gzr.Close()

	tr := tar.NewReader(gzr)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("read tar entry: %w", err)
		}
		if hdr.Typeflag != tar.TypeReg {
			continue
		}

		name := filepath.Base(hdr.Name)
		if name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
			return fmt.Errorf("unsafe entry name %q", hdr.Name)
		}

		dst, err := os.Create(filepath.Join(destDir, name))
		if err != nil {
			return fmt.Errorf("create %s: %w", name, err)
		}
		_, err = io.Copy(dst, tr)
		if cerr := dst.Close(); err == nil {
			err = cerr
		}
		if err != nil {
			return fmt.Errorf("extract %s: %w", name, err)
		}
	}
	return nil
}

// fileChecksum computes the hex SHA256 of a file's contents. For record
// files this equals the export checksum, since the file is exactly the
// concatenation of the written lines.
func fileChecksum(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	hash := sha256.New()
	if _, err := io.Copy(hash, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(hash.Sum(nil)), nil
}
