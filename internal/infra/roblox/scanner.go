package roblox

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"

	"github.com/bryanwahyu/leakwatch/internal/domain/assets"
)

// Scan implements assets.Scanner. User and group targets are listed through the
// catalog; place targets (universe ids) through their game passes and badges.
func (c *Client) Scan(ctx context.Context, t assets.Target) ([]assets.Asset, error) {
	switch t.Kind {
	case assets.TargetUser, assets.TargetGroup:
		return c.scanCatalog(ctx, t)
	case assets.TargetPlace:
		return c.scanPlace(ctx, t)
	default:
		return nil, fmt.Errorf("%w: unsupported target kind %q", assets.ErrSourceUnavailable, t.Kind)
	}
}

type catalogItem struct {
	ID          int64  `json:"id"`
	ItemType    string `json:"itemType"`
	AssetType   int    `json:"assetType"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

func (c *Client) scanCatalog(ctx context.Context, t assets.Target) ([]assets.Asset, error) {
	creatorType := "User"
	if t.Kind == assets.TargetGroup {
		creatorType = "Group"
	}
	raw, err := c.drain(ctx, "catalog", func(cursor string) string {
		q := url.Values{}
		q.Set("Category", "All")
		q.Set("CreatorTargetId", t.ID)
		q.Set("CreatorType", creatorType)
		q.Set("SortType", "3")
		q.Set("Limit", "30")
		if cursor != "" {
			q.Set("Cursor", cursor)
		}
		return c.cfg.CatalogURL + "/v1/search/items/details?" + q.Encode()
	})
	if err != nil {
		return nil, err
	}

	out := make([]assets.Asset, 0, len(raw))
	for _, r := range raw {
		var it catalogItem
		if err := json.Unmarshal(r, &it); err != nil {
			return nil, fmt.Errorf("%w: decode catalog item: %v", assets.ErrSourceUnavailable, err)
		}
		if it.ItemType != "" && it.ItemType != "Asset" {
			// bundles have their own id space
			continue
		}
		kind, rarity := assets.Classify(it.Name, it.AssetType)
		out = append(out, assets.Asset{
			ID:          strconv.FormatInt(it.ID, 10),
			Kind:        kind,
			Rarity:      rarity,
			Name:        it.Name,
			Description: it.Description,
			Metadata:    r,
		})
	}
	return out, nil
}

type placeItem struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	DisplayName string `json:"displayName"`
	Description string `json:"description"`
}

func (p placeItem) title() string {
	if p.DisplayName != "" {
		return p.DisplayName
	}
	return p.Name
}

func (c *Client) scanPlace(ctx context.Context, t assets.Target) ([]assets.Asset, error) {
	passes, err := c.drain(ctx, "game-passes", func(cursor string) string {
		return fmt.Sprintf("%s/v1/games/%s/game-passes?%s", c.cfg.GamesURL, url.PathEscape(t.ID), listQuery(cursor))
	})
	if err != nil {
		return nil, err
	}
	badges, err := c.drain(ctx, "badges", func(cursor string) string {
		return fmt.Sprintf("%s/v1/universes/%s/badges?%s", c.cfg.BadgesURL, url.PathEscape(t.ID), listQuery(cursor))
	})
	if err != nil {
		return nil, err
	}

	out := make([]assets.Asset, 0, len(passes)+len(badges))
	for _, group := range []struct {
		prefix    string
		assetType int
		raw       []json.RawMessage
	}{
		{"gamepass", assets.AssetTypeGamePass, passes},
		{"badge", assets.AssetTypeBadge, badges},
	} {
		for _, r := range group.raw {
			var it placeItem
			if err := json.Unmarshal(r, &it); err != nil {
				return nil, fmt.Errorf("%w: decode %s: %v", assets.ErrSourceUnavailable, group.prefix, err)
			}
			kind, rarity := assets.Classify(it.title(), group.assetType)
			out = append(out, assets.Asset{
				ID:          fmt.Sprintf("%s:%d", group.prefix, it.ID),
				Kind:        kind,
				Rarity:      rarity,
				Name:        it.title(),
				Description: it.Description,
				Metadata:    r,
			})
		}
	}
	return out, nil
}

func listQuery(cursor string) string {
	q := url.Values{}
	q.Set("limit", "100")
	q.Set("sortOrder", "Asc")
	if cursor != "" {
		q.Set("cursor", cursor)
	}
	return q.Encode()
}
