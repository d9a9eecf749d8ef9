package loader

import (
	"bytes"
	"fmt"

	"gopkg.in/yaml.v3"
)

var frontMatterDelimiter = []byte("---")

type frontMatter struct {
	Tags       []string `yaml:"tags"`
	Categories []string `yaml:"categories"`
	ValidTime  *int64   `yaml:"valid_time"`
}

func loadMarkdown(data []byte) ([]Entry, error) {
	meta, body, err := splitFrontMatter(data)
	if err != nil {
		return nil, err
	}
	tmpl := Entry{
		Tags:       meta.Tags,
		Categories: meta.Categories,
		ValidTime:  meta.ValidTime,
	}
	return paragraphs(string(body), tmpl), nil
}

// splitFrontMatter separates a leading YAML block fenced by "---" lines.
func splitFrontMatter(data []byte) (frontMatter, []byte, error) {
	var meta frontMatter
	data = bytes.ReplaceAll(data, []byte("\r\n"), []byte("\n"))

	if !bytes.HasPrefix(data, append(frontMatterDelimiter, '\n')) {
		return meta, data, nil
	}
	rest := data[len(frontMatterDelimiter)+1:]

	end := bytes.Index(rest, append([]byte("\n"), frontMatterDelimiter...))
	if end < 0 {
		return meta, data, nil
	}
	block := rest[:end]
	body := rest[end+1+len(frontMatterDelimiter):]

	if err := yaml.Unmarshal(block, &meta); err != nil {
		return frontMatter{}, nil, fmt.Errorf("parse front matter: %w", err)
	}
	return meta, body, nil
}
