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

package reembed

import (
	"context"

	"github.com/poiesic/catalogsync/core"
	"github.com/poiesic/catalogsync/storage"
)

const (
	// DefaultBatchSize is the default number of products to fetch in each batch
	DefaultBatchSize = 100
)

// StaleIterator pages through products whose embedding version differs from
// a target version, in internal id order.
type StaleIterator struct {
	products  storage.ProductRepository
	version   string
	batchSize int
}

// NewStaleIterator creates a new iterator.
// batchSize: number of products to fetch in each batch (must be > 0)
func NewStaleIterator(products storage.ProductRepository, version string, batchSize int) *StaleIterator {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &StaleIterator{
		products:  products,
		version:   version,
		batchSize: batchSize,
	}
}

// ForEach calls fn for each page of stale products. Paging is keyed on the
// last internal id seen, so products fn fails to update are not revisited.
// Iteration stops on the first error from fn; ctx is checked between pages.
func (it *StaleIterator) ForEach(ctx context.Context, fn func([]*core.CanonicalProduct) error) error {
	var afterID int64
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		page, err := it.products.StaleProducts(ctx, it.version, afterID, it.batchSize)
		if err != nil {
			return err
		}
		if len(page) == 0 {
			return nil
		}

		if err := fn(page); err != nil {
			return err
		}
		afterID = page[len(page)-1].InternalID

		if len(page) < it.batchSize {
			return nil
		}
	}
}
