package prompt

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/bryanwahyu/leakwatch/internal/domain/assets"
)

// GetSystemPrompt provides strict directions and schema for JSON output.
func GetSystemPrompt() string {
	return `You review newly published Roblox assets and judge whether they are unreleased Pet Simulator 99 content. You must produce one valid JSON object only (no markdown, no commentary) that follows the schema below. Do not include code fences.

Requirements:
- Output must be a single JSON object.
- verdict is one of: leak, not_leak, unsure.
- confidence is an integer between 0 and 100.
- summary is one or two sentences, plain text.
- Only use the facts given in the prompt. If they are not enough, answer unsure.

Schema (example with empty values):
{
  "verdict": "<leak|not_leak|unsure>",
  "confidence": 0,
  "summary": "<string>"
}`
}

// GetUserPrompt builds a compact user message around one asset and its keyword score.
func GetUserPrompt(a assets.Asset, v assets.Verification) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Asset id: %s\n", a.ID)
	fmt.Fprintf(&b, "Name: %s\n", a.Name)
	if a.Description != "" {
		fmt.Fprintf(&b, "Description: %s\n", a.Description)
	}
	fmt.Fprintf(&b, "Kind: %s\n", a.Kind)
	if a.Rarity != "" {
		fmt.Fprintf(&b, "Rarity: %s\n", a.Rarity)
	}
	fmt.Fprintf(&b, "Published by known developer: %t\n", a.IsDeveloperOrigin)
	fmt.Fprintf(&b, "Keyword score: %d (%s)\n", v.Confidence, strings.Join(v.Reasons, "; "))
	return b.String()
}

// Note matches the schema used by the system prompt.
type Note struct {
	Verdict    string `json:"verdict"`
	Confidence int    `json:"confidence"`
	Summary    string `json:"summary"`
}

// ParseNote decodes the model output and renders it as one line.
func ParseNote(raw string) (string, error) {
	var n Note
	if err := json.Unmarshal([]byte(strings.TrimSpace(raw)), &n); err != nil {
		return "", fmt.Errorf("decode analyst note: %w", err)
	}
	switch n.Verdict {
	case "leak", "not_leak", "unsure":
	default:
		n.Verdict = "unsure"
	}
	if n.Confidence < 0 {
		n.Confidence = 0
	}
	if n.Confidence > 100 {
		n.Confidence = 100
	}
	return fmt.Sprintf("%s (%d%%): %s", strings.ReplaceAll(n.Verdict, "_", " "), n.Confidence, strings.TrimSpace(n.Summary)), nil
}
