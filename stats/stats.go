/*
Package stats counts read, written and excluded elements and reports the
progress of an import.
*/
package stats

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/omniscale/osmshape/log"
)

type kindCount struct {
	kind string
	n    int
}

type counter struct {
	read     int64
	written  map[string]int64
	excluded map[string]int64

	lastReport time.Time
	lastRead   int64
}

// Summary contains the final counts of an import.
type Summary struct {
	Read int64
	// Written counts records by element type.
	Written map[string]int64
	// Excluded counts dropped elements by reason.
	Excluded map[string]int64
}

// Statistics collects counts from concurrent workers. All methods block
// until the reporter goroutine received the count, so they must not be
// called after Stop.
type Statistics struct {
	read     chan int
	written  chan kindCount
	excluded chan kindCount
	messages chan string
	stop     chan chan Summary
}

func (s *Statistics) AddRead(n int) {
	ElementsRead.Add(float64(n))
	s.read <- n
}

func (s *Statistics) AddWritten(kind string, n int) {
	RecordsWritten.WithLabelValues(kind).Add(float64(n))
	s.written <- kindCount{kind, n}
}

func (s *Statistics) AddExcluded(reason string, n int) {
	ElementsExcluded.WithLabelValues(reason).Add(float64(n))
	s.excluded <- kindCount{reason, n}
}

// Message logs msg after the current progress.
func (s *Statistics) Message(msg string) { s.messages <- msg }

// Stop terminates the reporter and returns the final counts.
func (s *Statistics) Stop() Summary {
	result := make(chan Summary)
	s.stop <- result
	return <-result
}

// StatsReporter starts a reporter that logs the progress every second.
func StatsReporter() *Statistics {
	return newReporter(time.Second)
}

func newReporter(interval time.Duration) *Statistics {
	c := counter{
		written:    make(map[string]int64),
		excluded:   make(map[string]int64),
		lastReport: time.Now(),
	}
	s := Statistics{
		read:     make(chan int),
		written:  make(chan kindCount),
		excluded: make(chan kindCount),
		messages: make(chan string),
		stop:     make(chan chan Summary),
	}

	go func() {
		tick := time.NewTicker(interval)
		defer tick.Stop()
		for {
			select {
			case n := <-s.read:
				c.read += int64(n)
			case kc := <-s.written:
				c.written[kc.kind] += int64(kc.n)
			case kc := <-s.excluded:
				c.excluded[kc.kind] += int64(kc.n)
			case msg := <-s.messages:
				c.Print()
				log.Println(msg)
			case <-tick.C:
				if c.read != c.lastRead {
					c.Print()
				}
			case result := <-s.stop:
				result <- c.Summary()
				return
			}
		}
	}()
	return &s
}

func (c *counter) Summary() Summary {
	sum := Summary{
		Read:     c.read,
		Written:  make(map[string]int64, len(c.written)),
		Excluded: make(map[string]int64, len(c.excluded)),
	}
	for k, v := range c.written {
		sum.Written[k] = v
	}
	for k, v := range c.excluded {
		sum.Excluded[k] = v
	}
	return sum
}

func (c *counter) Print() {
	dur := time.Since(c.lastReport)
	readPS := int64(float64(c.read-c.lastRead)/dur.Seconds()/100) * 100

	log.Printf("[progress] Read: %7d/s (%10d) Nodes: %9d Ways: %8d Excluded: %8d",
		readPS,
		c.read,
		c.written["node"],
		c.written["way"],
		sum(c.excluded),
	)
	c.lastRead = c.read
	c.lastReport = time.Now()
}

// TotalWritten returns the number of all written records.
func (s Summary) TotalWritten() int64 {
	return sum(s.Written)
}

// TotalExcluded returns the number of all excluded elements.
func (s Summary) TotalExcluded() int64 {
	return sum(s.Excluded)
}

func (s Summary) String() string {
	return fmt.Sprintf("read %d, written %d (%s), excluded %d (%s)",
		s.Read,
		s.TotalWritten(), formatCounts(s.Written),
		s.TotalExcluded(), formatCounts(s.Excluded),
	)
}

func sum(counts map[string]int64) int64 {
	var total int64
	for _, n := range counts {
		total += n
	}
	return total
}

// formatCounts returns "a: 1, b: 2" sorted by key.
func formatCounts(counts map[string]int64) string {
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%s: %d", k, counts[k])
	}
	return strings.Join(parts, ", ")
}
