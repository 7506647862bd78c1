package caps

import (
	"log/slog"

	"github.com/casualjim/modelbridge/messages"
	"github.com/casualjim/modelbridge/provider"
)

// legacyBagKey is the old nested-container convention for custom parameters.
// It is normalized away at this boundary: its keys are flattened into the
// top-level extension bag (shallow, last-write-wins) and a warning is logged.
const legacyBagKey = "extra_body"

// Normalizer filters a unified request down to the fields the resolved
// provider+model pair can accept.
type Normalizer struct {
	Log *slog.Logger
	_   struct{}
}

// Normalize returns a filtered copy of req and the resolved model family.
//
// Core fields (model id, messages, streaming callbacks, timeout) are always
// retained. Every optional field is kept only if the capability matrix marks
// it supported for the profile's provider type and, when a model descriptor
// is available, the model's own flags do not exclude it. Family-specific
// extras are gated by the resolved family so they apply correctly even when
// the model is reached through a foreign endpoint. Custom extension keys are
// never dropped.
func (n Normalizer) Normalize(req provider.Request, profile provider.Profile, model *provider.Model) (provider.Request, Family) {
	family := Classify(req.Model, profile.Type)
	desc := For(profile.Type)
	if family == FamilyUnknown {
		desc = permissive
	}

	out := req // shallow copy; slices/pointers are treated as read-only

	if !desc.Temperature {
		out.Temperature = nil
	}
	if !desc.TopP {
		out.TopP = nil
	}
	if !desc.TopK {
		out.TopK = nil
	}
	if !desc.Penalties {
		out.PresencePenalty = nil
		out.FrequencyPenalty = nil
	}
	if !desc.Stop {
		out.Stop = nil
	}
	if !desc.MaxTokens {
		out.MaxTokens = nil
	}
	if !desc.LogitBias {
		out.LogitBias = nil
	}
	if !desc.Seed {
		out.Seed = nil
	}
	if !desc.Tools {
		out.Tools = nil
		out.ToolChoice = nil
		out.ParallelToolCalls = nil
	}
	if !desc.ToolChoice {
		out.ToolChoice = nil
	}
	if !desc.ParallelToolCalls {
		out.ParallelToolCalls = nil
	}
	if !desc.ResponseFormat {
		out.ResponseFormat = nil
	}
	if !desc.Thinking {
		out.Thinking = nil
	}
	if !desc.WebSearch {
		out.WebSearch = false
	}
	if !desc.ServiceTier {
		out.ServiceTier = ""
	}

	// Model-level flags restrict further even when the provider generally
	// supports the field.
	if model != nil && model.Capabilities != nil {
		if !model.Capabilities.Tools {
			out.Tools = nil
			out.ToolChoice = nil
			out.ParallelToolCalls = nil
		}
		if !model.Capabilities.Thinking {
			out.Thinking = nil
		}
		if !model.Capabilities.WebSearch {
			out.WebSearch = false
		}
		if !model.Capabilities.Vision {
			out.Messages = stripVisualParts(req.Messages)
		}
	}

	// Family gating: extras that only one vendor shape understands.
	switch family {
	case FamilyOpenAI:
		out.TopK = nil
	case FamilyClaude, FamilyGemini, FamilyCohere:
		out.ServiceTier = ""
		out.LogitBias = nil
	}

	out.Extra = n.mergeExtra(req.Extra)

	return out, family
}

// stripVisualParts removes image and video blocks from the conversation.
// Text, audio, document and tool parts survive, in their original order. The
// input slice is never modified; it is returned as-is when nothing matches.
func stripVisualParts(msgs []messages.Message) []messages.Message {
	changed := false
	out := make([]messages.Message, len(msgs))
	for i, msg := range msgs {
		out[i] = msg
		if len(msg.Content.Parts) == 0 {
			continue
		}
		kept := make([]messages.ContentPart, 0, len(msg.Content.Parts))
		for _, part := range msg.Content.Parts {
			switch part.(type) {
			case messages.ImagePart, messages.VideoPart:
				changed = true
			default:
				kept = append(kept, part)
			}
		}
		out[i].Content.Parts = kept
	}
	if !changed {
		return msgs
	}
	return out
}

// mergeExtra flattens the legacy nested container into a fresh bag. Merge is
// shallow and last-write-wins per key; custom keys are carried through
// verbatim so adapters can transmit them as top-level wire fields.
func (n Normalizer) mergeExtra(extra *provider.Extra) *provider.Extra {
	if extra == nil {
		return nil
	}
	out := provider.NewExtra()
	var nested map[string]any
	for pair := extra.Oldest(); pair != nil; pair = pair.Next() {
		if pair.Key == legacyBagKey {
			if m, ok := pair.Value.(map[string]any); ok {
				nested = m
				continue
			}
		}
		out.Set(pair.Key, pair.Value)
	}
	if nested != nil {
		log := n.Log
		if log == nil {
			log = slog.Default()
		}
		log.Warn("nested custom-parameter container is deprecated, flattening into top-level keys",
			slog.String("key", legacyBagKey))
		for k, v := range nested {
			out.Set(k, v)
		}
	}
	if out.Len() == 0 {
		return nil
	}
	return out
}
