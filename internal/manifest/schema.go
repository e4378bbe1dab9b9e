package manifest

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"
	"go.yaml.in/yaml/v3"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

//go:embed schema/packages.schema.json
var schemaJSON []byte

const schemaURL = "packages.schema.json"

// Issue is one schema violation in a manifest.
type Issue struct {
	Pointer string // JSON pointer into the document, "" for the root
	Message string
	Keyword string // failing schema keyword, e.g. "pattern"
}

var loadSchema = sync.OnceValues(func() (*jsonschema.Schema, error) {
	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(schemaJSON))
	if err != nil {
		return nil, fmt.Errorf("reading embedded schema: %w", err)
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(schemaURL, doc); err != nil {
		return nil, err
	}
	return compiler.Compile(schemaURL)
})

var issuePrinter = message.NewPrinter(language.English)

// checkSchema returns the schema violations in the YAML document data. A
// nil slice means the document is valid. The error is for documents that
// are not YAML at all.
func checkSchema(data []byte) ([]Issue, error) {
	schema, err := loadSchema()
	if err != nil {
		return nil, fmt.Errorf("loading manifest schema: %w", err)
	}

	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	// Round-trip through JSON so numbers reach the validator as json.Number.
	encoded, err := json.Marshal(jsonCompatible(doc))
	if err != nil {
		return nil, err
	}
	inst, err := jsonschema.UnmarshalJSON(bytes.NewReader(encoded))
	if err != nil {
		return nil, err
	}

	err = schema.Validate(inst)
	if err == nil {
		return nil, nil
	}
	verr, ok := err.(*jsonschema.ValidationError)
	if !ok {
		return nil, err
	}

	var issues []Issue
	collectIssues(verr, &issues)
	if len(issues) == 0 {
		return []Issue{{Message: verr.Error()}}, nil
	}
	return uniqueIssues(issues), nil
}

// collectIssues appends the leaf violations under verr.
func collectIssues(verr *jsonschema.ValidationError, issues *[]Issue) {
	for _, cause := range verr.Causes {
		collectIssues(cause, issues)
	}
	if len(verr.Causes) > 0 || verr.ErrorKind == nil {
		return
	}
	keywords := verr.ErrorKind.KeywordPath()
	if len(keywords) == 0 {
		return
	}
	pointer := ""
	if len(verr.InstanceLocation) > 0 {
		pointer = "/" + strings.Join(verr.InstanceLocation, "/")
	}
	*issues = append(*issues, Issue{
		Pointer: pointer,
		Message: verr.ErrorKind.LocalizedString(issuePrinter),
		Keyword: keywords[len(keywords)-1],
	})
}

// uniqueIssues drops repeats and orders the rest by location.
func uniqueIssues(issues []Issue) []Issue {
	seen := make(map[Issue]bool, len(issues))
	out := issues[:0]
	for _, issue := range issues {
		if !seen[issue] {
			seen[issue] = true
			out = append(out, issue)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Pointer < out[j].Pointer })
	return out
}

// jsonCompatible converts decoded YAML into values encoding/json accepts.
// yaml.v3 yields map[any]any for mappings with non-string keys.
func jsonCompatible(v any) any {
	switch v := v.(type) {
	case map[string]any:
		for key, value := range v {
			v[key] = jsonCompatible(value)
		}
		return v
	case map[any]any:
		m := make(map[string]any, len(v))
		for key, value := range v {
			m[fmt.Sprint(key)] = jsonCompatible(value)
		}
		return m
	case []any:
		for i, value := range v {
			v[i] = jsonCompatible(value)
		}
		return v
	default:
		return v
	}
}
