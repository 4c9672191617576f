// Package migrate moves source products and inventory into the destination store.
//
// Products migrate in three phases (inventory-referenced, styled, remainder),
// each excluding natural keys already present in the destination or migrated
// earlier in the run, so an interrupted run resumes by simply running again.
//
// Within a phase, records are cut into chunks. A bounded ants pool embeds
// chunks in parallel and hands them over a bounded queue to a single writer,
// which upserts each chunk in its own transaction:
//
//	dispatcher ──▶ ants pool (Workers) ──▶ queue (QueueSize) ──▶ writer
//
// Workers block on a full queue, so embedding cannot outrun writes. On
// cancellation the dispatcher stops, in-flight embedding calls finish on a
// detached context bounded by EmbedTimeout, and the writer drains the queue
// before the phase reports.
package migrate
