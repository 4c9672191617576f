package core

import (
	"errors"
	"testing"
)

func TestValidateProduct(t *testing.T) {
	tests := []struct {
		name    string
		product *CanonicalProduct
		dim     int
		wantErr error
	}{
		{
			name: "valid product",
			product: &CanonicalProduct{
				PlatformID:  "b1c2",
				Platform:    PlatformStockX,
				DisplayName: "AIR MAX 90",
			},
			wantErr: nil,
		},
		{
			name: "valid product with internal id 0 and no embedding",
			product: &CanonicalProduct{
				PlatformID:  "123",
				Platform:    PlatformAlias,
				DisplayName: "DUNK LOW",
				Embedding:   nil,
			},
			dim:     1536,
			wantErr: nil,
		},
		{
			name:    "nil product",
			product: nil,
			wantErr: ErrInvalidProduct,
		},
		{
			name: "unknown platform",
			product: &CanonicalProduct{
				PlatformID:  "1",
				Platform:    Platform("goat"),
				DisplayName: "X",
			},
			wantErr: ErrUnknownPlatform,
		},
		{
			name: "empty platform id",
			product: &CanonicalProduct{
				Platform:    PlatformStockX,
				DisplayName: "X",
			},
			wantErr: ErrEmptyPlatformID,
		},
		{
			name: "empty display name",
			product: &CanonicalProduct{
				PlatformID: "1",
				Platform:   PlatformStockX,
			},
			wantErr: ErrEmptyDisplayName,
		},
		{
			name: "wrong dimension",
			product: &CanonicalProduct{
				PlatformID:  "1",
				Platform:    PlatformStockX,
				DisplayName: "X",
				Embedding:   []float32{1, 2, 3},
			},
			dim:     4,
			wantErr: ErrDimensionMismatch,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateProduct(tt.product, tt.dim)
			if tt.wantErr == nil {
				if err != nil {
					t.Errorf("ValidateProduct() unexpected error = %v", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("ValidateProduct() error = %v, want %v", err, tt.wantErr)
			}
			if !errors.Is(err, ErrInvalidProduct) {
				t.Errorf("ValidateProduct() error should wrap ErrInvalidProduct")
			}
		})
	}
}

func TestValidateMapping(t *testing.T) {
	tests := []struct {
		name    string
		mapping *ProductMapping
		wantErr error
	}{
		{
			name:    "valid exact mapping",
			mapping: &ProductMapping{SourceProductID: 2, TargetProductID: 1, ConfidenceScore: 1.0, Method: MethodExactKey},
		},
		{
			name:    "valid similarity mapping",
			mapping: &ProductMapping{SourceProductID: 2, TargetProductID: 1, ConfidenceScore: 0.87, Method: MethodEmbeddingSimilarity},
		},
		{
			name:    "exact mapping below 1.0",
			mapping: &ProductMapping{SourceProductID: 2, TargetProductID: 1, ConfidenceScore: 0.99, Method: MethodExactKey},
			wantErr: ErrExactKeyConfidence,
		},
		{
			name:    "score above 1",
			mapping: &ProductMapping{SourceProductID: 2, TargetProductID: 1, ConfidenceScore: 1.2, Method: MethodEmbeddingSimilarity},
			wantErr: ErrConfidenceOutOfRange,
		},
		{
			name:    "self mapping",
			mapping: &ProductMapping{SourceProductID: 1, TargetProductID: 1, ConfidenceScore: 1.0, Method: MethodExactKey},
			wantErr: ErrSelfMapping,
		},
		{
			name:    "nil mapping",
			wantErr: ErrInvalidMapping,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateMapping(tt.mapping)
			if tt.wantErr == nil {
				if err != nil {
					t.Errorf("ValidateMapping() unexpected error = %v", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("ValidateMapping() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidateInventoryUnit(t *testing.T) {
	if err := ValidateInventoryUnit(&InventoryUnit{SKU: "SKU-1"}); err != nil {
		t.Errorf("ValidateInventoryUnit() unexpected error = %v", err)
	}
	if err := ValidateInventoryUnit(&InventoryUnit{}); !errors.Is(err, ErrEmptySKU) {
		t.Errorf("ValidateInventoryUnit() error = %v, want %v", err, ErrEmptySKU)
	}
	if err := ValidateInventoryUnit(nil); !errors.Is(err, ErrInvalidInventoryUnit) {
		t.Errorf("ValidateInventoryUnit(nil) error = %v, want %v", err, ErrInvalidInventoryUnit)
	}
}
