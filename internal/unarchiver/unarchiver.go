// Package unarchiver implements the external archive unarchiver
// collaborator spec.md §1 describes by interface: stream progress,
// report success or failure, extract an archive into a staging
// directory. Extraction itself is grounded on the teacher's
// extractZip/extractTarGz (cmd/rawrequest-updater/updater_main.go),
// generalized to a common Unarchiver interface, with three additions:
// an optional age passphrase-decryption pre-pass, klauspost/compress
// for the gzip path, and rate-limited progress callbacks in place of
// the teacher's manual ShouldEmitProgress time.Since check.
package unarchiver

import (
	"archive/tar"
	"archive/zip"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"filippo.io/age"
	"github.com/klauspost/compress/gzip"
	"github.com/zeebo/blake3"
	"golang.org/x/time/rate"
)

// ProgressFunc reports extraction progress as a fraction in [0, 1].
// Callers are expected to encode it with protocol.EncodeProgress and
// send an EXTRACTED_WITH_PROGRESS frame.
type ProgressFunc func(fraction float64)

// Unarchiver extracts an archive into a destination directory,
// reporting progress as it goes.
type Unarchiver interface {
	// Extract decompresses src into destDir. password, if non-empty, is
	// treated as an age passphrase the archive was encrypted under
	// before the signature was applied. TarGz decrypts with it; Zip
	// rejects a non-empty password with an error.
	Extract(ctx context.Context, src, destDir, password string, progress ProgressFunc) error
}

// ErrNoSuitableUnarchiver is returned by Select when no registered
// Unarchiver recognizes the archive's file name, matching spec.md §7's
// "no suitable unarchiver" Extraction error kind.
var ErrNoSuitableUnarchiver = errors.New("unarchiver: no suitable unarchiver for archive")

// Select returns the Unarchiver whose format matches archiveFileName's
// suffix.
func Select(archiveFileName string) (Unarchiver, error) {
	lower := strings.ToLower(archiveFileName)
	switch {
	case strings.HasSuffix(lower, ".tar.gz"), strings.HasSuffix(lower, ".tgz"):
		return TarGz{}, nil
	case strings.HasSuffix(lower, ".zip"):
		return Zip{}, nil
	default:
		return nil, ErrNoSuitableUnarchiver
	}
}

// newProgressLimiter returns a rate.Limiter so extraction loops can call
// Allow() per entry without flooding the updater link with one frame
// per file, the rate-limited equivalent of the teacher's ShouldEmitProgress.
func newProgressLimiter() *rate.Limiter {
	return rate.NewLimiter(rate.Every(150*time.Millisecond), 1) // matches updateapplylogic.ProgressEmitInterval
}

// decryptIfNeeded returns a reader over src, transparently age-decrypting
// it first if password is non-empty. The returned reader needs no
// closing of its own; the caller keeps ownership of f and closes it.
func decryptIfNeeded(f *os.File, password string) (io.Reader, error) {
	if password == "" {
		return f, nil
	}
	identity, err := age.NewScryptIdentity(password)
	if err != nil {
		return nil, fmt.Errorf("unarchiver: building passphrase identity: %w", err)
	}
	r, err := age.Decrypt(f, identity)
	if err != nil {
		return nil, fmt.Errorf("unarchiver: decrypting archive: %w", err)
	}
	return r, nil
}

func sanitizeRelativePath(name string) (string, bool) {
	rel := filepath.Clean(name)
	if strings.HasPrefix(rel, "..") || filepath.IsAbs(rel) {
		return "", false
	}
	return rel, true
}

// Fingerprint computes a blake3 digest of every regular file under
// root, in a stable traversal order. It is a diagnostic aid, logged by
// the Stage Controller on successful extraction — not a trust boundary;
// the archive's detached signature is what is actually verified.
func Fingerprint(root string) (string, error) {
	h := blake3.New()
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		f, err := os.Open(path)
		if err != nil {
			return err
		}
		defer f.Close()
		if _, err := io.Copy(h, f); err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("unarchiver: fingerprinting %s: %w", root, err)
	}
	return fmt.Sprintf("%x", h.Sum(nil)), nil
}

// Zip extracts .zip archives.
type Zip struct{}

func (Zip) Extract(ctx context.Context, src, destDir, password string, progress ProgressFunc) error {
	if password != "" {
		return fmt.Errorf("unarchiver: zip archives do not support passphrase decryption")
	}
	r, err := zip.OpenReader(src)
	if err != nil {
		return fmt.Errorf("unarchiver: opening zip: %w", err)
	}
	defer r.Close()

	limiter := newProgressLimiter()
	total := len(r.File)
	for i, f := range r.File {
		if err := ctx.Err(); err != nil {
			return err
		}
		rel, ok := sanitizeRelativePath(f.Name)
		if !ok {
			continue
		}
		target := filepath.Join(destDir, rel)
		if f.FileInfo().IsDir() {
			if err := os.MkdirAll(target, 0o755); err != nil {
				return err
			}
		} else {
			if err := extractZipEntry(f, target); err != nil {
				return err
			}
		}
		if progress != nil && (limiter.Allow() || i == total-1) {
			progress(float64(i+1) / float64(total))
		}
	}
	return nil
}

func extractZipEntry(f *zip.File, target string) error {
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return err
	}
	rc, err := f.Open()
	if err != nil {
		return err
	}
	defer rc.Close()
	out, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, f.Mode())
	if err != nil {
		return err
	}
	defer out.Close()
	_, err = io.Copy(out, rc)
	return err
}

// TarGz extracts .tar.gz / .tgz archives, with an optional age
// passphrase decryption pre-pass.
type TarGz struct{}

func (TarGz) Extract(ctx context.Context, src, destDir, password string, progress ProgressFunc) error {
	f, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("unarchiver: opening archive: %w", err)
	}
	defer f.Close()

	plain, err := decryptIfNeeded(f, password)
	if err != nil {
		return err
	}

	gzr, err := gzip.NewReader(plain)
	if err != nil {
		return fmt.Errorf("unarchiver: opening gzip stream: %w", err)
	}
	defer gzr.Close()

	tr := tar.NewReader(gzr)
	limiter := newProgressLimiter()
	var count int
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return fmt.Errorf("unarchiver: reading tar entry: %w", err)
		}

		rel, ok := sanitizeRelativePath(hdr.Name)
		if !ok {
			continue
		}
		target := filepath.Join(destDir, rel)

		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, 0o755); err != nil {
				return err
			}
		case tar.TypeReg:
			if err := extractTarEntry(tr, target, hdr.Mode); err != nil {
				return err
			}
		default:
			continue
		}

		count++
		if progress != nil && limiter.Allow() {
			// tar streams don't know their entry count up front; report
			// a saturating approximation rather than a bogus 100% early.
			progress(1 - 1/float64(count+1))
		}
	}
	if progress != nil {
		progress(1)
	}
	return nil
}

func extractTarEntry(tr *tar.Reader, target string, mode int64) error {
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return err
	}
	out, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, fs.FileMode(mode))
	if err != nil {
		return err
	}
	defer out.Close()
	_, err = io.Copy(out, tr)
	return err
}
