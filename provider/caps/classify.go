// Package caps holds the declarative capability matrix, the model-family
// classifier, and the request normalizer that filters a unified request down
// to what one provider endpoint and model pair can actually accept.
package caps

import (
	"strings"

	"github.com/casualjim/modelbridge/provider"
)

// Family is the vendor "shape" a model actually expects, independent of
// which provider endpoint is used to reach it. A gateway may expose a Claude
// model behind an OpenAI-compatible endpoint; requests for it still need
// Claude-family extras.
type Family string

const (
	FamilyOpenAI  Family = "openai"
	FamilyClaude  Family = "claude"
	FamilyGemini  Family = "gemini"
	FamilyCohere  Family = "cohere"
	FamilyUnknown Family = "unknown"
)

// familyPatterns maps model-id prefixes to families. Checked before the
// provider hint so gateway-exposed foreign models resolve correctly.
var familyPatterns = []struct {
	prefix string
	family Family
}{
	{"claude", FamilyClaude},
	{"anthropic.", FamilyClaude},
	{"gemini", FamilyGemini},
	{"models/gemini", FamilyGemini},
	{"gpt", FamilyOpenAI},
	{"chatgpt", FamilyOpenAI},
	{"o1", FamilyOpenAI},
	{"o3", FamilyOpenAI},
	{"o4", FamilyOpenAI},
	{"davinci", FamilyOpenAI},
	{"command", FamilyCohere},
	{"c4ai", FamilyCohere},
}

// Classify resolves the family a model id belongs to. Id patterns are
// consulted first, then the literal provider-type tag. Unknown families make
// the normalizer maximally permissive rather than dropping fields.
func Classify(modelID string, hint provider.Type) Family {
	id := strings.ToLower(strings.TrimSpace(modelID))
	// Gateways commonly prefix ids with a vendor segment ("anthropic/claude-…").
	if idx := strings.LastIndexByte(id, '/'); idx >= 0 && !strings.HasPrefix(id, "models/") {
		id = id[idx+1:]
	}
	for _, p := range familyPatterns {
		if strings.HasPrefix(id, p.prefix) {
			return p.family
		}
	}
	switch hint {
	case provider.TypeOpenAI, provider.TypeResponses:
		return FamilyOpenAI
	case provider.TypeAnthropic:
		return FamilyClaude
	case provider.TypeGemini:
		return FamilyGemini
	case provider.TypeCohere:
		return FamilyCohere
	}
	return FamilyUnknown
}
