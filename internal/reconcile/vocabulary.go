package reconcile

import (
	_ "embed"
	"os"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/vehicle-catalog/internal/textnorm"
)

//go:embed vocabulary.yaml
var defaultVocabulary []byte

// Vocabulary holds the word lists used for name normalization.
type Vocabulary struct {
	NoiseWords []string `yaml:"noise_words"`
	TitleNoise []string `yaml:"title_noise"`
	StopWords  []string `yaml:"stop_words"`
	Trims      []string `yaml:"trims"`
	Engines    []string `yaml:"engines"`
	Manual     []string `yaml:"manual"`
	Automatic  []string `yaml:"automatic"`
}

type wordSet map[string]bool

func newWordSet(words []string) wordSet {
	s := make(wordSet, len(words))
	for _, w := range words {
		s[textnorm.Fold(w)] = true
	}
	return s
}

// ParseVocabulary decodes a vocabulary document. Lists missing from data
// keep their built-in values.
func ParseVocabulary(data []byte) (*Vocabulary, error) {
	v, err := builtinVocabulary()
	if err != nil {
		return nil, err
	}
	var wrapper struct {
		Vocabulary Vocabulary `yaml:"vocabulary"`
	}
	if err := yaml.Unmarshal(data, &wrapper); err != nil {
		return nil, eris.Wrap(err, "reconcile: parse vocabulary")
	}
	o := wrapper.Vocabulary
	for _, f := range []struct {
		dst *[]string
		src []string
	}{
		{&v.NoiseWords, o.NoiseWords},
		{&v.TitleNoise, o.TitleNoise},
		{&v.StopWords, o.StopWords},
		{&v.Trims, o.Trims},
		{&v.Engines, o.Engines},
		{&v.Manual, o.Manual},
		{&v.Automatic, o.Automatic},
	} {
		if len(f.src) > 0 {
			*f.dst = f.src
		}
	}
	return v, nil
}

// LoadVocabulary reads an override vocabulary file.
func LoadVocabulary(path string) (*Vocabulary, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "reconcile: read vocabulary %s", path)
	}
	return ParseVocabulary(data)
}

func builtinVocabulary() (*Vocabulary, error) {
	var wrapper struct {
		Vocabulary Vocabulary `yaml:"vocabulary"`
	}
	if err := yaml.Unmarshal(defaultVocabulary, &wrapper); err != nil {
		return nil, eris.Wrap(err, "reconcile: parse built-in vocabulary")
	}
	return &wrapper.Vocabulary, nil
}
