package sitemap

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"

	"github.com/sirupsen/logrus"

	"github.com/Sriram-PR/site-indexer/pkg/utils"
)

// WrittenFile describes one document on disk
type WrittenFile struct {
	Name   string `json:"name"`
	Path   string `json:"path"`
	Bytes  int    `json:"bytes"`
	SHA256 string `json:"sha256"`
}

// WriteResult lists the files written. Err joins every per-file failure.
type WriteResult struct {
	Written []WrittenFile
	Err     error
}

var mainPartRe = regexp.MustCompile(`^` + MainName + `-\d+\.xml$`)

// WriteSet writes every document of set into dir. A failed file does not stop the others.
// Leftovers of the other main-sitemap layout (sitemap.xml vs sitemap-N.xml) are removed so
// readers never mix an old layout with the new one.
func WriteSet(dir string, set *Set, log *logrus.Entry) WriteResult {
	var res WriteResult
	if err := os.MkdirAll(dir, 0755); err != nil {
		res.Err = fmt.Errorf("%w: create output dir %s: %w", utils.ErrFilesystem, dir, err)
		return res
	}

	var errs []error
	keep := make(map[string]bool)
	for _, doc := range set.All() {
		keep[doc.Filename] = true
		path := filepath.Join(dir, doc.Filename)
		if err := os.WriteFile(path, doc.Content, 0644); err != nil {
			log.WithError(err).WithField("file", doc.Filename).Error("Failed to write sitemap")
			errs = append(errs, fmt.Errorf("write %s: %w", doc.Filename, err))
			continue
		}
		res.Written = append(res.Written, WrittenFile{
			Name:   doc.Filename,
			Path:   path,
			Bytes:  len(doc.Content),
			SHA256: utils.SHA256Hex(doc.Content),
		})
	}

	errs = append(errs, pruneStale(dir, keep, log)...)

	for _, f := range res.Written {
		log.WithFields(logrus.Fields{"file": f.Name, "bytes": f.Bytes, "sha256": f.SHA256}).Info("Wrote sitemap")
	}
	if len(errs) > 0 {
		res.Err = fmt.Errorf("%w: %w", utils.ErrFilesystem, errors.Join(errs...))
	}
	return res
}

func pruneStale(dir string, keep map[string]bool, log *logrus.Entry) []error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return []error{fmt.Errorf("list %s: %w", dir, err)}
	}
	var errs []error
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || keep[name] {
			continue
		}
		if name != MainName+".xml" && !mainPartRe.MatchString(name) {
			continue
		}
		if err := os.Remove(filepath.Join(dir, name)); err != nil {
			errs = append(errs, fmt.Errorf("remove stale %s: %w", name, err))
			continue
		}
		log.WithField("file", name).Info("Removed stale sitemap")
	}
	return errs
}
