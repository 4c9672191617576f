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

// Package search finds catalog products by meaning.
//
// The Searcher embeds a free-text query with the same text rules used for
// product embedding text and asks the destination store for the nearest
// products by cosine similarity. Results whose display name contains every
// query word receive a verbatim boost, so an exact model name outranks a
// merely similar one.
//
// Probe samples secondary products and reports, per candidate threshold, how
// often the best primary match above it shares the product's style key. It
// is the tool for choosing the matching threshold.
package search
