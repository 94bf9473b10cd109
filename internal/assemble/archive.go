// SPDX-License-Identifier: MPL-2.0

package assemble

import (
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/klauspost/compress/zip"
)

// zipEpoch is the fixed modification time of generated entries, so identical
// inputs produce identical archives.
var zipEpoch = time.Date(1981, 1, 1, 0, 0, 0, 0, time.UTC)

// entry is a file to place in an archive.
type entry struct {
	// Name is the slash-separated archive path.
	Name string
	// Source is the file on disk.
	Source string
}

// storeUncompressed reports whether name must be stored rather than
// deflated. Native libraries are mapped directly from the APK on device.
func storeUncompressed(name string) bool {
	return strings.HasSuffix(name, ".so") || name == "resources.arsc"
}

// rewriteArchive copies src to dst, replacing entries that share a name with
// one in extra and appending the rest in the given order.
func rewriteArchive(src, dst string, extra []entry) (err error) {
	r, err := zip.OpenReader(src)
	if err != nil {
		return fmt.Errorf("open %s: %w", src, err)
	}
	defer r.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := out.Close(); err == nil {
			err = cerr
		}
	}()

	w := zip.NewWriter(out)
	replaced := make(map[string]bool, len(extra))
	for _, e := range extra {
		replaced[e.Name] = true
	}
	for _, f := range r.File {
		if replaced[f.Name] {
			continue
		}
		if err := w.Copy(f); err != nil {
			return fmt.Errorf("copy %s: %w", f.Name, err)
		}
	}
	for _, e := range extra {
		if err := addFile(w, e); err != nil {
			return err
		}
	}
	return w.Close()
}

// writeArchive creates dst containing entries in order.
func writeArchive(dst string, entries []entry) (err error) {
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := out.Close(); err == nil {
			err = cerr
		}
	}()

	w := zip.NewWriter(out)
	for _, e := range entries {
		if err := addFile(w, e); err != nil {
			return err
		}
	}
	return w.Close()
}

func addFile(w *zip.Writer, e entry) error {
	src, err := os.Open(e.Source)
	if err != nil {
		return fmt.Errorf("open %s: %w", e.Source, err)
	}
	defer src.Close()

	fi, err := src.Stat()
	if err != nil {
		return err
	}
	hdr := &zip.FileHeader{Name: e.Name, Method: zip.Deflate, Modified: zipEpoch}
	hdr.SetMode(fi.Mode())
	if storeUncompressed(e.Name) {
		hdr.Method = zip.Store
	}
	dst, err := w.CreateHeader(hdr)
	if err != nil {
		return fmt.Errorf("add %s: %w", e.Name, err)
	}
	if _, err := io.Copy(dst, src); err != nil {
		return fmt.Errorf("add %s: %w", e.Name, err)
	}
	return nil
}

// treeEntries lists every regular file under root as entries whose names are
// prefix + the slash-separated relative path, in lexical order.
func treeEntries(root, prefix string) ([]entry, error) {
	var out []entry
	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(root, p)
		if err != nil {
			return err
		}
		out = append(out, entry{Name: path.Join(prefix, filepath.ToSlash(rel)), Source: p})
		return nil
	})
	if err != nil {
		return nil, err
	}
	slices.SortFunc(out, func(a, b entry) int { return strings.Compare(a.Name, b.Name) })
	return out, nil
}

// extractArchive unpacks src into dest, rejecting entries that would escape it.
func extractArchive(src, dest string) error {
	r, err := zip.OpenReader(src)
	if err != nil {
		return fmt.Errorf("open %s: %w", src, err)
	}
	defer r.Close()

	dest, err = filepath.Abs(dest)
	if err != nil {
		return err
	}
	for _, f := range r.File {
		target := filepath.Join(dest, f.Name)
		if !strings.HasPrefix(target, dest+string(os.PathSeparator)) {
			return fmt.Errorf("illegal file path in archive: %s", f.Name)
		}
		if f.FileInfo().IsDir() {
			if err := os.MkdirAll(target, 0o755); err != nil {
				return err
			}
			continue
		}
		if err := extractFile(f, target); err != nil {
			return err
		}
	}
	return nil
}

func extractFile(f *zip.File, target string) error {
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return err
	}
	rc, err := f.Open()
	if err != nil {
		return err
	}
	defer rc.Close()

	out, err := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, rc); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

// copyFile copies src to dst with src's permission bits.
func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	fi, err := in.Stat()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, fi.Mode().Perm())
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

// copyTree copies the contents of src into dst.
func copyTree(src, dst string) error {
	return filepath.WalkDir(src, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, p)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)
		if d.IsDir() {
			return os.MkdirAll(target, 0o755)
		}
		return copyFile(p, target)
	})
}
