// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package core

import (
	"fmt"
)

// ValidateProduct validates a CanonicalProduct according to domain rules.
//
// Validation rules:
//   - Platform must be known
//   - PlatformID must not be empty
//   - DisplayName must not be empty
//   - Embedding, when present, must have dim entries (dim <= 0 skips the check)
//
// NOT validated (assigned or derived later):
//   - InternalID (0 until the destination assigns one)
//   - StyleKeyRaw / StyleKeyNormalized (nullable)
func ValidateProduct(p *CanonicalProduct, dim int) error {
	if p == nil {
		return fmt.Errorf("%w: product is nil", ErrInvalidProduct)
	}

	if _, err := ParsePlatform(string(p.Platform)); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidProduct, err)
	}

	if p.PlatformID == "" {
		return fmt.Errorf("%w: %w", ErrInvalidProduct, ErrEmptyPlatformID)
	}

	if p.DisplayName == "" {
		return fmt.Errorf("%w: %w", ErrInvalidProduct, ErrEmptyDisplayName)
	}

	if dim > 0 && p.Embedding != nil && len(p.Embedding) != dim {
		return fmt.Errorf("%w: %w: got %d, want %d", ErrInvalidProduct, ErrDimensionMismatch, len(p.Embedding), dim)
	}

	return nil
}

// ValidateMapping validates a ProductMapping according to domain rules.
func ValidateMapping(m *ProductMapping) error {
	if m == nil {
		return fmt.Errorf("%w: mapping is nil", ErrInvalidMapping)
	}

	if m.SourceProductID == m.TargetProductID {
		return fmt.Errorf("%w: %w", ErrInvalidMapping, ErrSelfMapping)
	}

	if m.ConfidenceScore < 0 || m.ConfidenceScore > 1 {
		return fmt.Errorf("%w: %w", ErrInvalidMapping, ErrConfidenceOutOfRange)
	}

	if m.Method == MethodExactKey && m.ConfidenceScore != 1.0 {
		return fmt.Errorf("%w: %w", ErrInvalidMapping, ErrExactKeyConfidence)
	}

	return nil
}

// ValidateInventoryUnit validates an InventoryUnit.
func ValidateInventoryUnit(u *InventoryUnit) error {
	if u == nil {
		return fmt.Errorf("%w: unit is nil", ErrInvalidInventoryUnit)
	}
	if u.SKU == "" {
		return fmt.Errorf("%w: %w", ErrInvalidInventoryUnit, ErrEmptySKU)
	}
	return nil
}
