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

import "errors"

// Domain validation errors
var (
	// ErrInvalidProduct indicates a CanonicalProduct failed validation.
	ErrInvalidProduct = errors.New("invalid product")

	// ErrInvalidMapping indicates a ProductMapping failed validation.
	ErrInvalidMapping = errors.New("invalid product mapping")

	// ErrInvalidInventoryUnit indicates an InventoryUnit failed validation.
	ErrInvalidInventoryUnit = errors.New("invalid inventory unit")

	// ErrUnknownPlatform indicates a platform value outside the supported set.
	ErrUnknownPlatform = errors.New("unknown platform")

	// ErrEmptyPlatformID indicates the platform_id natural key part is empty.
	ErrEmptyPlatformID = errors.New("platform id cannot be empty")

	// ErrEmptyDisplayName indicates the display name is empty.
	ErrEmptyDisplayName = errors.New("display name cannot be empty")

	// ErrEmptySKU indicates an inventory unit without a SKU.
	ErrEmptySKU = errors.New("sku cannot be empty")

	// ErrConfidenceOutOfRange indicates a confidence score outside [0, 1].
	ErrConfidenceOutOfRange = errors.New("confidence score must be between 0 and 1")

	// ErrExactKeyConfidence indicates an exact_key mapping whose score is not 1.0.
	ErrExactKeyConfidence = errors.New("exact key mappings must have confidence 1.0")

	// ErrSelfMapping indicates a mapping whose source and target are the same product.
	ErrSelfMapping = errors.New("mapping source and target must differ")

	// ErrDimensionMismatch indicates an embedding with unexpected dimensionality.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")
)
