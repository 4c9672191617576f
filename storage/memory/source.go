package memory

import (
	"context"
	"strings"

	"github.com/poiesic/catalogsync/core"
	"github.com/poiesic/catalogsync/normalize"
	"github.com/poiesic/catalogsync/storage"
)

// Source implements storage.SourceRepository over fixed rows.
// Scopes are evaluated with the same column conventions as the MySQL source.
type Source struct {
	StockX    []map[string]any
	Alias     []map[string]any
	Inventory []core.InventoryUnit
}

var _ storage.SourceRepository = (*Source)(nil)

func (s *Source) Products(ctx context.Context, platform core.Platform, scope storage.SourceScope) ([]core.SourceProduct, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var rows []map[string]any
	var styleCol string
	switch platform {
	case core.PlatformStockX:
		rows, styleCol = s.StockX, "styleId"
	case core.PlatformAlias:
		rows, styleCol = s.Alias, "sku"
	default:
		return nil, core.ErrUnknownPlatform
	}

	hints := s.hints(platform)
	var out []core.SourceProduct
	for _, row := range rows {
		style, _ := row[styleCol].(string)
		keep := false
		switch scope {
		case storage.ScopeAll:
			keep = true
		case storage.ScopeStyled:
			keep = style != ""
		case storage.ScopeUnstyled:
			keep = style == ""
		case storage.ScopeInventoryReferenced:
			_, keep = hints[style]
			keep = keep && style != ""
		default:
			return nil, storage.ErrInvalidQuery
		}
		if keep {
			out = append(out, core.SourceProduct{Platform: platform, Fields: row})
		}
	}
	return out, nil
}

func (s *Source) hints(platform core.Platform) map[string]struct{} {
	out := make(map[string]struct{})
	for _, u := range s.Inventory {
		hint, ok := normalize.ExtractStyleHint(u.RawItemLabel)
		if !ok {
			continue
		}
		if platform == core.PlatformAlias {
			hint = strings.ReplaceAll(hint, "-", " ")
		}
		out[hint] = struct{}{}
	}
	return out
}

func (s *Source) InventoryUnits(ctx context.Context) ([]core.InventoryUnit, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out := make([]core.InventoryUnit, len(s.Inventory))
	copy(out, s.Inventory)
	return out, nil
}

func (s *Source) Close() error { return nil }
