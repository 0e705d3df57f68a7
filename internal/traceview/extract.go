// Package traceview turns the opaque JSON recorded as a trace's output into
// something a reviewer can read: a primary content string with optional
// metadata, or a tabular/query view when the output looks like a SQL result.
// All of it is pure; decoding failures surface to the caller, never panics.
package traceview

import (
	"fmt"
	"strings"
)

// Extracted is the display view of a recognized output shape.
type Extracted struct {
	Content  string         `json:"content"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// A detector inspects one known output shape and returns its extraction, or
// nil when the shape does not apply or yields no text.
type detector func(map[string]any) *Extracted

// Detectors run in priority order; some shapes nest inside others, so the
// order is part of the contract. First non-empty extraction wins.
var detectors = []detector{
	fromChoices,
	fromContentBlocks,
	fromMessages,
	fromContentString,
	fromTextField,
	fromOutputItems,
}

// Extract classifies a decoded output value and returns its primary content.
// It returns nil when the value is not an object or matches no known shape.
// Fields of unexpected type are treated as absent, falling through to the
// next detector.
func Extract(output any) *Extracted {
	obj, ok := output.(map[string]any)
	if !ok {
		return nil
	}
	for _, detect := range detectors {
		if e := detect(obj); e != nil && e.Content != "" {
			if len(e.Metadata) == 0 {
				e.Metadata = nil
			}
			return e
		}
	}
	return nil
}

// fromChoices handles completion-style outputs: chat completions, judge
// evaluations with a rationale, and legacy text completions.
func fromChoices(m map[string]any) *Extracted {
	choices, ok := anySlice(m, "choices")
	if !ok || len(choices) == 0 {
		return nil
	}
	first, ok := choices[0].(map[string]any)
	if !ok {
		return nil
	}

	var content string
	if msg, ok := anyMap(first, "message"); ok {
		if s, ok := stringField(msg, "content"); ok {
			content = s
		} else if blocks, ok := anySlice(msg, "content"); ok {
			content = joinTextBlocks(blocks, "text", "output_text")
		}
	}
	if content == "" {
		if rationale, ok := stringField(first, "rationale"); ok {
			if result, ok := first["result"]; ok {
				content = fmt.Sprintf("**Rating: %v**\n\n%s", result, rationale)
			} else {
				content = rationale
			}
		}
	}
	if content == "" {
		content, _ = stringField(first, "content")
	}
	if content == "" {
		content, _ = stringField(first, "text")
	}
	if content == "" {
		return nil
	}

	meta := collectMeta(m, "id", "model", "object", "usage")
	// finish_reason lives on the choice in modern payloads, but older ones
	// put it at the top level.
	if v, ok := first["finish_reason"]; ok {
		meta["finish_reason"] = v
	} else if v, ok := m["finish_reason"]; ok {
		meta["finish_reason"] = v
	}
	return &Extracted{Content: content, Metadata: meta}
}

// fromContentBlocks handles Claude-style responses whose top-level content is
// an array of typed blocks.
func fromContentBlocks(m map[string]any) *Extracted {
	blocks, ok := anySlice(m, "content")
	if !ok {
		return nil
	}
	content := joinTextBlocks(blocks, "text")
	if content == "" {
		content = joinTextBlocks(blocks, "output_text")
	}
	if content == "" {
		return nil
	}
	meta := collectMeta(m, "id", "model", "type", "object", "role", "usage", "stop_reason", "finish_reason")
	return &Extracted{Content: content, Metadata: meta}
}

// fromMessages handles plain message lists: the first assistant message wins.
func fromMessages(m map[string]any) *Extracted {
	messages, ok := anySlice(m, "messages")
	if !ok {
		return nil
	}
	for _, raw := range messages {
		msg, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		if role, _ := stringField(msg, "role"); role != "assistant" {
			continue
		}
		var content string
		if s, ok := stringField(msg, "content"); ok {
			content = s
		} else if blocks, ok := anySlice(msg, "content"); ok {
			content = joinTextBlocks(blocks, "text", "output_text")
		}
		if content == "" {
			return nil
		}
		return &Extracted{Content: content, Metadata: collectMeta(m, "id", "model")}
	}
	return nil
}

func fromContentString(m map[string]any) *Extracted {
	s, ok := stringField(m, "content")
	if !ok || s == "" {
		return nil
	}
	return &Extracted{Content: s, Metadata: collectMeta(m, "id", "model", "role")}
}

func fromTextField(m map[string]any) *Extracted {
	s, ok := stringField(m, "text")
	if !ok || s == "" {
		return nil
	}
	return &Extracted{Content: s}
}

// fromOutputItems handles agent/tool transcripts: an output array scanned for
// the first assistant message item that yields text.
func fromOutputItems(m map[string]any) *Extracted {
	items, ok := anySlice(m, "output")
	if !ok {
		return nil
	}
	for _, raw := range items {
		item, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		itemType, _ := stringField(item, "type")
		role, _ := stringField(item, "role")
		if itemType != "message" || role != "assistant" {
			continue
		}
		var content string
		if s, ok := stringField(item, "content"); ok {
			content = s
		} else if blocks, ok := anySlice(item, "content"); ok {
			content = joinTextBlocks(blocks, "text", "output_text")
		}
		if content != "" {
			return &Extracted{Content: content, Metadata: collectMeta(m, "id", "model")}
		}
	}
	return nil
}

// joinTextBlocks keeps blocks whose type is one of the given values and that
// carry a text field, joining their texts with newlines in order.
func joinTextBlocks(blocks []any, types ...string) string {
	parts := make([]string, 0, len(blocks))
	for _, raw := range blocks {
		block, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		blockType, _ := stringField(block, "type")
		matched := false
		for _, t := range types {
			if blockType == t {
				matched = true
				break
			}
		}
		if !matched {
			continue
		}
		if text, ok := stringField(block, "text"); ok {
			parts = append(parts, text)
		}
	}
	return strings.Join(parts, "\n")
}

// collectMeta copies the named fields that are actually present. Callers
// expect nil, not an empty map, when nothing was found; Extract normalizes.
func collectMeta(m map[string]any, keys ...string) map[string]any {
	meta := make(map[string]any)
	for _, k := range keys {
		if v, ok := m[k]; ok {
			meta[k] = v
		}
	}
	return meta
}

func stringField(m map[string]any, key string) (string, bool) {
	s, ok := m[key].(string)
	return s, ok
}

func anySlice(m map[string]any, key string) ([]any, bool) {
	v, ok := m[key].([]any)
	return v, ok
}

func anyMap(m map[string]any, key string) (map[string]any, bool) {
	v, ok := m[key].(map[string]any)
	return v, ok
}
