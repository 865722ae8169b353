package library

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Field is an extra metadata entry added while verifying.
type Field struct {
	Key   string
	Value string
}

// Metadata is the editable part of a book record.
type Metadata struct {
	Title     string
	Authors   []string
	PageCount int
	Extra     []Field
}

// Complete reports whether the required title and authors are present.
func (m Metadata) Complete() bool {
	return strings.TrimSpace(m.Title) != "" && len(m.Authors) > 0
}

// ExtractMetadata reads title, authors, and page count from a PDF's document
// information dictionary. Other files yield empty metadata.
func ExtractMetadata(path string) (Metadata, error) {
	if !strings.EqualFold(filepath.Ext(path), ".pdf") {
		return Metadata{}, nil
	}
	f, reader, err := pdf.Open(path)
	if err != nil {
		return Metadata{}, fmt.Errorf("open pdf %s: %w", path, err)
	}
	defer f.Close()

	info := reader.Trailer().Key("Info")
	md := Metadata{
		Title:     titleCase(info.Key("Title").Text()),
		Authors:   splitAuthors(info.Key("Author").Text()),
		PageCount: reader.NumPage(),
	}
	return md, nil
}

func titleCase(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	return cases.Title(language.Und).String(s)
}

func splitAuthors(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if name := titleCase(part); name != "" {
			out = append(out, name)
		}
	}
	return out
}

// splitList splits an edited comma-separated value without changing case.
func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if v := strings.TrimSpace(part); v != "" {
			out = append(out, v)
		}
	}
	return out
}
