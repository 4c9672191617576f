package progress

import (
	"fmt"
	"io"
	"sync/atomic"
)

// Stats is a set of run counters safe for concurrent use.
type Stats struct {
	generated atomic.Int64
	inserted  atomic.Int64
	failed    atomic.Int64
	skipped   atomic.Int64
}

// Snapshot is a point-in-time copy of Stats.
type Snapshot struct {
	Generated int64
	Inserted  int64
	Failed    int64
	Skipped   int64
}

func (s *Stats) AddGenerated(n int) { s.generated.Add(int64(n)) }
func (s *Stats) AddInserted(n int)  { s.inserted.Add(int64(n)) }
func (s *Stats) AddFailed(n int)    { s.failed.Add(int64(n)) }
func (s *Stats) AddSkipped(n int)   { s.skipped.Add(int64(n)) }

// Snapshot reads every counter.
func (s *Stats) Snapshot() Snapshot {
	return Snapshot{
		Generated: s.generated.Load(),
		Inserted:  s.inserted.Load(),
		Failed:    s.failed.Load(),
		Skipped:   s.skipped.Load(),
	}
}

// Add returns the sum of two snapshots.
func (a Snapshot) Add(b Snapshot) Snapshot {
	return Snapshot{
		Generated: a.Generated + b.Generated,
		Inserted:  a.Inserted + b.Inserted,
		Failed:    a.Failed + b.Failed,
		Skipped:   a.Skipped + b.Skipped,
	}
}

func (a Snapshot) String() string {
	return fmt.Sprintf("generated=%d inserted=%d failed=%d skipped=%d",
		a.Generated, a.Inserted, a.Failed, a.Skipped)
}

// WriteSummary prints a labelled summary block.
func WriteSummary(w io.Writer, title string, rows [][2]string) {
	fmt.Fprintf(w, "\n%s\n", title)
	for _, row := range rows {
		fmt.Fprintf(w, "  %-24s %s\n", row[0]+":", row[1])
	}
}
