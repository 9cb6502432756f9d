package collection

import (
	"fmt"

	"github.com/torosent/repeater/internal/har"
	"github.com/torosent/repeater/internal/variables"
)

// FromHAR builds a flat collection from an HTTP archive. Each kept entry
// becomes a top-level request named "<METHOD> <path>".
func FromHAR(archive *har.HAR, opts har.ConvertOptions) (*Collection, error) {
	templates, err := har.Convert(archive, opts)
	if err != nil {
		return nil, err
	}
	if len(templates) == 0 {
		return nil, fmt.Errorf("HAR contains no requests after filtering")
	}
	name := "har"
	if archive.Log.Creator != nil && archive.Log.Creator.Name != "" {
		name = archive.Log.Creator.Name
	}
	return New(name, variables.Set{}, nil, Folder{Requests: templates})
}

// LoadHAR parses a HAR file and converts it with FromHAR.
func LoadHAR(path string, opts har.ConvertOptions) (*Collection, error) {
	archive, err := har.ParseFile(path)
	if err != nil {
		return nil, err
	}
	return FromHAR(archive, opts)
}
