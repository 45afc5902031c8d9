package discover

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/Sriram-PR/site-indexer/pkg/models"
	"github.com/Sriram-PR/site-indexer/pkg/registry"
	"github.com/Sriram-PR/site-indexer/pkg/utils"
)

const header = "# Generated by site-indexer discover. Review categories and priorities before committing.\n"

// MarshalRegistry renders entries in the registry file format
func MarshalRegistry(pages []models.PageEntry) ([]byte, error) {
	f := registry.File{Pages: make([]registry.PageSpec, 0, len(pages))}
	for _, p := range pages {
		priority := p.Priority
		spec := registry.PageSpec{
			Path:       p.Path,
			Priority:   &priority,
			ChangeFreq: string(p.ChangeFreq),
			Locale:     string(p.Locale),
			Category:   string(p.Category),
			Title:      p.Title,
		}
		if !p.LastModified.IsZero() {
			spec.LastMod = p.LastModified.UTC().Format("2006-01-02")
		}
		f.Pages = append(f.Pages, spec)
	}

	var buf bytes.Buffer
	buf.WriteString(header)
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(f); err != nil {
		return nil, fmt.Errorf("%w: encode registry: %w", utils.ErrParsing, err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("%w: encode registry: %w", utils.ErrParsing, err)
	}
	return buf.Bytes(), nil
}

// WriteRegistry stores entries as registry YAML at path, creating parent directories
func WriteRegistry(path string, pages []models.PageEntry) error {
	data, err := MarshalRegistry(pages)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("%w: create %s: %w", utils.ErrFilesystem, filepath.Dir(path), err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("%w: write %s: %w", utils.ErrFilesystem, path, err)
	}
	return nil
}
