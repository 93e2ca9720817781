package describe

import (
	"fmt"
	"strings"
)

// Family identifies the API dialect a model name maps to. The mapping is
// resolved once at client construction, never per call.
type Family string

const (
	FamilyAnthropic Family = "anthropic"
	FamilyOllama    Family = "ollama"
)

var familyPrefixes = []struct {
	prefix string
	family Family
}{
	{"claude", FamilyAnthropic},
	{"llava", FamilyOllama},
	{"bakllava", FamilyOllama},
	{"llama", FamilyOllama},
	{"gemma", FamilyOllama},
	{"qwen", FamilyOllama},
	{"moondream", FamilyOllama},
	{"minicpm", FamilyOllama},
}

// ParseFamily resolves a model name to its API family.
func ParseFamily(model string) (Family, error) {
	name := strings.ToLower(strings.TrimSpace(model))
	for _, fp := range familyPrefixes {
		if strings.HasPrefix(name, fp.prefix) {
			return fp.family, nil
		}
	}
	return "", fmt.Errorf("unknown description model %q", model)
}
