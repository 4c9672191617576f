package transform

import (
	"fmt"

	"github.com/poiesic/catalogsync/core"
	"github.com/poiesic/catalogsync/normalize"
)

// Source column names.
const (
	StockXIDColumn    = "productId"
	StockXNameColumn  = "title"
	StockXStyleColumn = "styleId"
	AliasIDColumn     = "catalogId"
	AliasNameColumn   = "name"
	AliasSKUColumn    = "sku"
	KeywordColumn     = "keywordUsed"
)

// Transform dispatches on the source platform.
func Transform(src core.SourceProduct) (*core.CanonicalProduct, error) {
	switch src.Platform {
	case core.PlatformStockX:
		return FromStockX(src)
	case core.PlatformAlias:
		return FromAlias(src)
	}
	return nil, fmt.Errorf("%w: %q", core.ErrUnknownPlatform, src.Platform)
}

// FromStockX maps a stockx_products row.
func FromStockX(src core.SourceProduct) (*core.CanonicalProduct, error) {
	row := Row(src.Fields)
	attrs := map[string]any{
		"productType": row.attr("productType"),
		"urlKey":      row.attr("urlKey"),
		"brand":       row.attr("brand"),
		"imageLink":   row.attr("imageLink"),
		"gender":      row.attr("productAttributes_gender"),
		"season":      row.attr("productAttributes_season"),
		"releaseDate": row.attr("productAttributes_releaseDate"),
		"colorway":    row.attr("productAttributes_colorway"),
		"color":       row.attr("productAttributes_color"),
		"retailPrice": nil,
	}
	if price, ok := row.Float("productAttributes_retailPrice"); ok {
		attrs["retailPrice"] = price
	}
	return build(core.PlatformStockX, row, StockXIDColumn, StockXNameColumn, row.StringPtr(StockXStyleColumn), attrs)
}

// FromAlias maps an alias_products row. The Alias SKU is its style key.
func FromAlias(src core.SourceProduct) (*core.CanonicalProduct, error) {
	row := Row(src.Fields)
	sku := row.StringPtr(AliasSKUColumn)
	attrs := map[string]any{
		"sku":    row.attr(AliasSKUColumn),
		"gender": row.attr("gender"),
	}
	return build(core.PlatformAlias, row, AliasIDColumn, AliasNameColumn, sku, attrs)
}

func build(platform core.Platform, row Row, idCol, nameCol string, style *string, attrs map[string]any) (*core.CanonicalProduct, error) {
	id, ok := row.String(idCol)
	if !ok {
		return nil, fmt.Errorf("%w: %s.%s", ErrMissingField, platform, idCol)
	}
	name, _ := row.String(nameCol)

	p := &core.CanonicalProduct{
		PlatformID:         id,
		Platform:           platform,
		DisplayName:        normalize.DisplayName(name),
		StyleKeyRaw:        style,
		StyleKeyNormalized: normalize.StyleKeyPtr(style),
		EmbeddingText:      normalize.BuildEmbeddingText(name, style),
		EmbeddingVersion:   normalize.EmbeddingFormatVersion,
		Attributes:         attrs,
		KeywordHint:        row.StringPtr(KeywordColumn),
	}
	if err := core.ValidateProduct(p, 0); err != nil {
		return nil, err
	}
	return p, nil
}
