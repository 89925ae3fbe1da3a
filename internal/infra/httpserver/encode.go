package httpserver

import (
	"fmt"

	"github.com/bryanwahyu/leakwatch/internal/domain/commands"
)

// Envelope is the JSON shape of every router response.
type Envelope struct {
	Kind commands.ResponseKind `json:"kind"`
	Text string                `json:"text"`
	Data any                   `json:"data"`
}

// Encode wraps resp with its kind and chat rendering.
func Encode(resp commands.Response) Envelope {
	var data any
	switch v := resp.(type) {
	case commands.Text:
		data = v
	case commands.UploadPrompt:
		data = v
	case commands.ProcessResult:
		data = v
	case commands.SearchResults:
		data = v
	case commands.Error:
		data = v
	default:
		panic(fmt.Sprintf("httpserver: unknown response %T", resp))
	}
	return Envelope{Kind: resp.Kind(), Text: commands.Render(resp), Data: data}
}
