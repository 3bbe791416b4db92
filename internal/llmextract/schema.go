package llmextract

import (
	"bytes"
	"embed"
	"sync"

	"github.com/rotisserie/eris"
	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed schema/*.json
var schemaFS embed.FS

const schemaBase = "https://catalog.local/schema/"

// Entry kinds understood by Decode.
const (
	KindCar          = "car"
	KindCampaign     = "campaign"
	KindTransportCar = "transport_car"
)

type schemaSet struct {
	variant *jsonschema.Schema
	kinds   map[string]*jsonschema.Schema
}

var loadSchemas = sync.OnceValues(compileSchemas)

func compileSchemas() (*schemaSet, error) {
	compiler := jsonschema.NewCompiler()
	names := []string{"variant", KindCar, KindCampaign, KindTransportCar}
	for _, name := range names {
		b, err := schemaFS.ReadFile("schema/" + name + ".json")
		if err != nil {
			return nil, eris.Wrapf(err, "llmextract: read schema %s", name)
		}
		if err := compiler.AddResource(schemaBase+name+".json", bytes.NewReader(b)); err != nil {
			return nil, eris.Wrapf(err, "llmextract: add schema %s", name)
		}
	}

	set := &schemaSet{kinds: make(map[string]*jsonschema.Schema, 3)}
	for _, name := range names {
		s, err := compiler.Compile(schemaBase + name + ".json")
		if err != nil {
			return nil, eris.Wrapf(err, "llmextract: compile schema %s", name)
		}
		if name == "variant" {
			set.variant = s
			continue
		}
		set.kinds[name] = s
	}
	return set, nil
}
