package postgres

import (
	"encoding/json"
	"strings"
)

func stringOrDash(s string) string {
	if strings.TrimSpace(s) == "" {
		return "-"
	}
	return s
}

func escapeLikePattern(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

// jsonb tidak menerima teks bebas, jadi yang invalid dibungkus sebagai {"raw": ...}
func jsonOrNil(raw []byte) any {
	if strings.TrimSpace(string(raw)) == "" {
		return nil
	}
	if !json.Valid(raw) {
		b, _ := json.Marshal(map[string]string{"raw": string(raw)})
		return string(b)
	}
	return string(raw)
}
