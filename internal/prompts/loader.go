// Package prompts holds the generation prompts used by the pipeline stages.
// Prompt files are JSON maps of key to template, embedded at compile time.
package prompts

import (
	"embed"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
)

//go:embed *.json
var promptFiles embed.FS

// RecruitingFile is the prompt file used by every pipeline stage.
const RecruitingFile = "recruiting.json"

// Keys in RecruitingFile.
const (
	GenerateQueries   = "generate-queries"
	ScreenCandidates  = "screen-candidates"
	StructureProfiles = "structure-profiles"
	ScoreCandidates   = "score-candidates"
	VerifyBackground  = "verify-background"
	EngageCandidates  = "engage-candidates"
)

// files memoizes each parsed prompt file, keyed by name.
var files sync.Map // string -> func() (map[string]string, error)

// Get returns the template stored under key in filename.
func Get(filename, key string) (string, error) {
	templates, err := load(filename)
	if err != nil {
		return "", err
	}
	tmpl, ok := templates[key]
	if !ok {
		return "", fmt.Errorf("prompt key %q not found in %s", key, filename)
	}
	return tmpl, nil
}

// MustGet is Get for prompts compiled into the binary; a miss is a
// programming error and panics.
func MustGet(filename, key string) string {
	tmpl, err := Get(filename, key)
	if err != nil {
		panic(fmt.Sprintf("prompts: %v", err))
	}
	return tmpl
}

// Render loads key from RecruitingFile and fills its placeholders.
func Render(key string, data map[string]string) string {
	return Format(MustGet(RecruitingFile, key), data)
}

// Format replaces {{.Name}} placeholders with data["Name"]. Placeholders
// without a value stay in place.
func Format(template string, data map[string]string) string {
	pairs := make([]string, 0, len(data)*2)
	for name, value := range data {
		pairs = append(pairs, "{{."+name+"}}", value)
	}
	return strings.NewReplacer(pairs...).Replace(template)
}

// List returns the keys of filename in sorted order.
func List(filename string) ([]string, error) {
	templates, err := load(filename)
	if err != nil {
		return nil, err
	}
	keys := make([]string, 0, len(templates))
	for k := range templates {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, nil
}

func load(filename string) (map[string]string, error) {
	once, _ := files.LoadOrStore(filename, sync.OnceValues(func() (map[string]string, error) {
		raw, err := promptFiles.ReadFile(filename)
		if err != nil {
			return nil, fmt.Errorf("failed to read prompt file %s: %w", filename, err)
		}
		var templates map[string]string
		if err := json.Unmarshal(raw, &templates); err != nil {
			return nil, fmt.Errorf("failed to parse prompt file %s: %w", filename, err)
		}
		return templates, nil
	}))
	return once.(func() (map[string]string, error))()
}
