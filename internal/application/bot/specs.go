package bot

import "github.com/bryanwahyu/leakwatch/internal/domain/commands"

// Specs lists every routed command in help order.
var Specs = []commands.Spec{
	{Name: "help", Summary: "list commands"},
	{Name: "upload", Summary: "start an upload session", Args: []commands.ArgSpec{
		{Name: "kind", Hint: "pet|egg|world|texture|mesh", Aliases: []string{"category"}},
		{Name: "mode", Hint: "asset|script|model|map"},
	}},
	{Name: "discover", Summary: "run a discovery scan now"},
	{Name: "search", Summary: "search discovered assets", Args: []commands.ArgSpec{
		{Name: "query", Required: true},
		{Name: "kind", Hint: "pet|egg|world|texture|mesh", Aliases: []string{"category"}},
		{Name: "page", Hint: "n"},
	}},
	{Name: "leak", Summary: "announce an asset to a channel", Args: []commands.ArgSpec{
		{Name: "id", Required: true, Hint: "asset id"},
		{Name: "channel", Required: true, Hint: "#channel"},
	}},
	{Name: "verify", Summary: "score how likely an asset is real game content", Args: []commands.ArgSpec{
		{Name: "id", Required: true, Hint: "asset id"},
	}},
	{Name: "monitor", Summary: "manage scan targets", Args: []commands.ArgSpec{
		{Name: "action", Required: true, Hint: "add|remove|list"},
		{Name: "id", Hint: "target id"},
		{Name: "kind", Hint: "user|group|place"},
		{Name: "developer", Hint: "true|false"},
		{Name: "name"},
	}},
	{Name: "status", Summary: "scheduler state and fingerprint counts", Args: []commands.ArgSpec{
		{Name: "target", Hint: "target id"},
	}},
}
