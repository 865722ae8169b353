package renpy

import (
	"errors"
	"path/filepath"
	"strings"
	"unicode"

	"dreary/internal/atproto"
)

// Collection NSIDs.
const (
	CollectionProject = "dev.dreary.renpy.project"
	CollectionAsset   = "dev.dreary.renpy.asset"
)

var blobTypes = map[string]string{
	".mp3": "audio/mpeg",
	".png": "image/png",
	".ttf": "font/ttf",
}

var textExts = map[string]bool{
	".rpy": true,
}

// Name validation errors.
var (
	ErrEmptyName      = errors.New("project name is required")
	ErrNameBrackets   = errors.New("project name may not contain the { or [ characters")
	ErrNameSeparators = errors.New(`project name may not contain / or \`)
	ErrNameNonASCII   = errors.New("project name must consist of ASCII characters")
)

// ValidateName applies the Ren'Py launcher's project name rules.
func ValidateName(name string) error {
	switch {
	case strings.TrimSpace(name) == "":
		return ErrEmptyName
	case strings.ContainsAny(name, "[{"):
		return ErrNameBrackets
	case strings.ContainsAny(name, `/\`):
		return ErrNameSeparators
	}
	for _, r := range name {
		if r > unicode.MaxASCII {
			return ErrNameNonASCII
		}
	}
	return nil
}

// assetKind classifies a file by extension.
func assetKind(path string) (text bool, mimeType string, ok bool) {
	ext := filepath.Ext(path)
	if textExts[ext] {
		return true, "", true
	}
	if mt, found := blobTypes[ext]; found {
		return false, mt, true
	}
	return false, "", false
}

type projectRecord struct {
	Type      string `json:"$type"`
	Name      string `json:"name"`
	CreatedAt string `json:"createdAt"`
}

type assetRecord struct {
	Type      string        `json:"$type"`
	Path      string        `json:"path"`
	Project   string        `json:"project"`
	Contents  string        `json:"contents,omitempty"`
	File      *atproto.Blob `json:"file,omitempty"`
	CreatedAt string        `json:"createdAt"`
}
