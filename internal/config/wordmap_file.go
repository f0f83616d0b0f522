package config

import (
	"os"

	"gopkg.in/yaml.v3"

	"github.com/voxkeyd/voxkeyd/internal/keystroke"
)

// wordMapFile is the on-disk shape of the optional --word-map YAML file.
// word_mappings preserves declaration order, which becomes the
// WordMap's insertion-order tie-break per spec.md's GLOSSARY entry.
type wordMapFile struct {
	WordMappings   []wordMapEntryFile `yaml:"word_mappings"`
	DiscardPhrases []string           `yaml:"discard_phrases"`
}

type wordMapEntryFile struct {
	Phrase      string `yaml:"phrase"`
	Replacement string `yaml:"replacement"`
}

func loadWordMapFile(path string) ([]keystroke.WordPair, []string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, err
	}

	var parsed wordMapFile
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return nil, nil, err
	}

	pairs := make([]keystroke.WordPair, 0, len(parsed.WordMappings))
	for _, e := range parsed.WordMappings {
		pairs = append(pairs, keystroke.WordPair{Phrase: e.Phrase, Replacement: e.Replacement})
	}
	return pairs, parsed.DiscardPhrases, nil
}
