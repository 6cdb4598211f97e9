package modstore

import (
	"archive/zip"
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// ChecksumError reports an archive whose digest did not match the
// index. The archive is discarded before anything is extracted.
type ChecksumError struct {
	URL      string
	Expected string
	Actual   string
}

func (e *ChecksumError) Error() string {
	return fmt.Sprintf("checksum mismatch for %s: expected %s, got %s", e.URL, e.Expected, e.Actual)
}

// fetch downloads a URL into memory.
func fetch(url string) ([]byte, error) {
	resp, err := http.Get(url)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("GET %s: %s", url, resp.Status)
	}
	return io.ReadAll(resp.Body)
}

// Download fetches a URL and verifies it against an index checksum
// before returning the bytes. Verification always happens before the
// caller can touch the payload.
func Download(url, checksum string) ([]byte, error) {
	body, err := fetch(url)
	if err != nil {
		return nil, err
	}
	if err := verifySHA256(url, body, checksum); err != nil {
		return nil, err
	}
	return body, nil
}

// verifySHA256 checks body against a checksum of the form
// "SHA-256:<hex>". An empty checksum passes; anything else must match
// case-insensitively.
func verifySHA256(url string, body []byte, checksum string) error {
	if checksum == "" {
		return nil
	}
	expected := strings.TrimPrefix(checksum, "SHA-256:")
	sum := sha256.Sum256(body)
	actual := hex.EncodeToString(sum[:])
	if !strings.EqualFold(expected, actual) {
		return &ChecksumError{URL: url, Expected: expected, Actual: actual}
	}
	return nil
}

// downloadAndExtract fetches one archive, verifies its checksum, and
// unpacks it into dest with the archive's single top-level directory
// stripped.
func (s *Store) downloadAndExtract(url, checksum, dest string) error {
	body, err := Download(url, checksum)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(dest, 0o755); err != nil {
		return err
	}

	if strings.HasSuffix(url, ".zip") {
		return ExtractZip(body, dest)
	}
	return extractTar(body, url, dest)
}

// extractTar shells out to the system tar, which handles every
// compression the index uses (.tar.gz, .tar.bz2, .tar.xz). The archive
// is staged in a temp file next to dest so tar can seek.
func extractTar(body []byte, url, dest string) error {
	var flag string
	switch {
	case strings.HasSuffix(url, ".tar.bz2"):
		flag = "-xjf"
	case strings.HasSuffix(url, ".tar.xz"):
		flag = "-xJf"
	default:
		flag = "-xzf"
	}

	tmp := filepath.Join(filepath.Dir(dest), ".kiln_tmp_archive")
	if err := os.WriteFile(tmp, body, 0o644); err != nil {
		return err
	}
	defer os.Remove(tmp)

	cmd := exec.Command("tar", flag, tmp, "--strip-components=1", "-C", dest)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("tar extract failed: %v\n%s", err, out)
	}
	return nil
}

// ExtractZip unpacks a zip archive into dest, preserving unix mode
// bits so toolchain binaries stay executable. The shared top-level
// directory vendor archives carry is stripped; entries outside it,
// and flat archives with no such directory, extract unchanged.
func ExtractZip(body []byte, dest string) error {
	reader, err := zip.NewReader(bytes.NewReader(body), int64(len(body)))
	if err != nil {
		return err
	}

	prefix := zipPrefix(reader.File)
	for _, f := range reader.File {
		name := strings.TrimPrefix(f.Name, prefix)
		if name == "" {
			continue
		}
		target := filepath.Join(dest, filepath.FromSlash(name))
		if !strings.HasPrefix(target, filepath.Clean(dest)+string(filepath.Separator)) {
			return fmt.Errorf("zip entry %q escapes destination", f.Name)
		}

		if f.FileInfo().IsDir() {
			if err := os.MkdirAll(target, 0o755); err != nil {
				return err
			}
			continue
		}

		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return err
		}
		rc, err := f.Open()
		if err != nil {
			return err
		}
		mode := f.Mode() & 0o777
		if mode == 0 {
			mode = 0o644
		}
		w, err := os.OpenFile(target, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, mode)
		if err != nil {
			rc.Close()
			return err
		}
		_, copyErr := io.Copy(w, rc)
		rc.Close()
		if closeErr := w.Close(); copyErr == nil {
			copyErr = closeErr
		}
		if copyErr != nil {
			return copyErr
		}
	}
	return nil
}

// zipPrefix derives the top-level directory to strip from the first
// entry: the entry itself when it is a directory, otherwise everything
// up to and including its first slash. An archive whose first entry
// has no directory component extracts as-is.
func zipPrefix(files []*zip.File) string {
	if len(files) == 0 {
		return ""
	}
	name := files[0].Name
	if strings.HasSuffix(name, "/") {
		return name
	}
	if idx := strings.Index(name, "/"); idx >= 0 {
		return name[:idx+1]
	}
	return ""
}
