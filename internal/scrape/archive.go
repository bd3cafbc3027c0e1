package scrape

import (
	"crypto/md5" //nolint:gosec // file naming, not security
	"encoding/hex"
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"
)

// RawArchive stores fetched listing HTML so extraction can run later,
// including after a resume.
type RawArchive struct {
	dir string
}

// NewRawArchive returns an archive rooted at dir.
func NewRawArchive(dir string) *RawArchive {
	return &RawArchive{dir: dir}
}

// Dir returns the archive directory.
func (a *RawArchive) Dir() string { return a.dir }

// PathFor returns where the page for rawURL is stored.
func (a *RawArchive) PathFor(site, rawURL string) string {
	sum := md5.Sum([]byte(rawURL)) //nolint:gosec
	return filepath.Join(a.dir, site+"_"+hex.EncodeToString(sum[:])[:12]+".html")
}

// Save writes html and returns its path.
func (a *RawArchive) Save(site, rawURL string, html []byte) (string, error) {
	if err := os.MkdirAll(a.dir, 0o755); err != nil {
		return "", eris.Wrapf(err, "raw archive: create %s", a.dir)
	}
	path := a.PathFor(site, rawURL)
	if err := os.WriteFile(path, html, 0o644); err != nil {
		return "", eris.Wrapf(err, "raw archive: write %s", path)
	}
	return path, nil
}

// Load reads an archived page.
func Load(path string) ([]byte, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "raw archive: read %s", path)
	}
	return b, nil
}
