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


// Package batchjob coordinates asynchronous embedding generation through the
// provider's batch API.
//
// The products needing vectors are ordered by internal id and cut into shards
// no larger than the provider's per-job request cap. Each shard moves through
//
//	pending ──submit──▶ submitted ──poll──▶ completed ──apply──▶ applied
//	                         │
//	                         └──▶ failed ──submit──▶ submitted
//
// Shard state is persisted before any call returns, so the process may be
// killed at any point and re-run. Every run first polls every persisted shard,
// then applies completed shards, resubmits failed ones and submits pending
// ones. It never waits for the provider's completion window: the operator
// runs it again later. Result streams are stored locally once per shard, so a
// shard's results are downloaded at most once.
package batchjob
