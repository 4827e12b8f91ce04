package verify

import (
	"embed"
	"fmt"
	"strings"
	"sync"

	"github.com/xeipuuv/gojsonschema"
)

//go:embed schemas/*.json
var schemaFS embed.FS

var (
	schemaMu    sync.Mutex
	schemaCache = map[string]*gojsonschema.Schema{}
)

// SchemaNames lists the embedded response schemas.
func SchemaNames() []string {
	entries, _ := schemaFS.ReadDir("schemas")
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, strings.TrimSuffix(e.Name(), ".json"))
	}
	return names
}

func loadSchema(name string) (*gojsonschema.Schema, error) {
	schemaMu.Lock()
	defer schemaMu.Unlock()

	if s, ok := schemaCache[name]; ok {
		return s, nil
	}
	data, err := schemaFS.ReadFile("schemas/" + name + ".json")
	if err != nil {
		return nil, fmt.Errorf("unknown schema %q", name)
	}
	s, err := gojsonschema.NewSchema(gojsonschema.NewBytesLoader(data))
	if err != nil {
		return nil, fmt.Errorf("schema %q: %w", name, err)
	}
	schemaCache[name] = s
	return s, nil
}

// MatchesSchema validates doc against the named embedded schema.
func MatchesSchema(endpoint string, doc any, name, description string) Verdict {
	v := Verdict{
		Check:    description,
		Endpoint: endpoint,
		Expected: "matches schema " + name,
		Status:   StatusFail,
		Kind:     KindSchema,
	}

	s, err := loadSchema(name)
	if err != nil {
		v.Detail = err.Error()
		return v
	}
	result, err := s.Validate(gojsonschema.NewGoLoader(doc))
	if err != nil {
		v.Detail = err.Error()
		return v
	}
	if result.Valid() {
		v.Status = StatusPass
		v.Kind = ""
		return v
	}

	msgs := make([]string, 0, len(result.Errors()))
	for _, e := range result.Errors() {
		msgs = append(msgs, e.String())
	}
	v.Observed = strings.Join(msgs, "; ")
	return v
}
