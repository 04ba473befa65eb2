package logging

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"regexp"
	"sort"
	"strings"
	"time"
)

// LogEntry is one parsed line from the JSON log file. Lines that fail to
// parse are kept with IsValid false so they can still be shown verbatim.
type LogEntry struct {
	Time    time.Time
	Level   string
	Msg     string
	Attrs   map[string]any
	Raw     string
	IsValid bool
}

// ViewerConfig controls which entries a Viewer keeps and how it renders them.
type ViewerConfig struct {
	Level   string         // minimum level, empty keeps everything
	Pattern *regexp.Regexp // matched against the raw line, nil keeps everything
	NoColor bool
}

// Viewer reads, filters and formats log files written by Setup.
type Viewer struct {
	cfg ViewerConfig
	out io.Writer
}

func NewViewer(cfg ViewerConfig, out io.Writer) *Viewer {
	return &Viewer{cfg: cfg, out: out}
}

// Tail returns the last n entries of the file that pass the configured
// filters. The whole file is scanned; log files are capped by rotation so
// this stays cheap.
func (v *Viewer) Tail(path string, n int) ([]LogEntry, error) {
	if n <= 0 {
		return nil, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}
	defer f.Close()

	// Ring buffer over the matching entries so memory stays bounded by n.
	ring := make([]LogEntry, n)
	total := 0

	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		entry, ok := v.accept(sc.Text())
		if !ok {
			continue
		}
		ring[total%n] = entry
		total++
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read log file: %w", err)
	}

	if total <= n {
		return ring[:total], nil
	}
	ordered := make([]LogEntry, 0, n)
	for i := total - n; i < total; i++ {
		ordered = append(ordered, ring[i%n])
	}
	return ordered, nil
}

// Follow streams new entries appended to the file until ctx is cancelled.
// Existing content is skipped so only lines written after the call show up.
func (v *Viewer) Follow(ctx context.Context, path string, out chan<- LogEntry) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	defer f.Close()

	if _, err := f.Seek(0, io.SeekEnd); err != nil {
		return fmt.Errorf("seek log file: %w", err)
	}

	r := bufio.NewReader(f)
	poll := time.NewTicker(100 * time.Millisecond)
	defer poll.Stop()

	for {
		line, err := r.ReadString('\n')
		if err == nil {
			if entry, ok := v.accept(strings.TrimRight(line, "\n")); ok {
				select {
				case out <- entry:
				case <-ctx.Done():
					return ctx.Err()
				}
			}
			continue
		}
		if err != io.EOF {
			return fmt.Errorf("read log file: %w", err)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-poll.C:
		}
	}
}

// Print renders entries to the viewer's writer, one per line.
func (v *Viewer) Print(entries []LogEntry) {
	for _, e := range entries {
		fmt.Fprintln(v.out, v.FormatEntry(e))
	}
}

// FormatEntry renders an entry as "15:04:05.000 LEVEL msg k=v". Unparseable
// lines come back untouched.
func (v *Viewer) FormatEntry(e LogEntry) string {
	if !e.IsValid {
		return e.Raw
	}

	var b strings.Builder
	b.WriteString(e.Time.Format("15:04:05.000"))
	b.WriteByte(' ')
	b.WriteString(v.paintLevel(e.Level))
	b.WriteByte(' ')
	b.WriteString(e.Msg)

	if len(e.Attrs) > 0 {
		keys := make([]string, 0, len(e.Attrs))
		for k := range e.Attrs {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(&b, " %s=%v", k, e.Attrs[k])
		}
	}
	return b.String()
}

// accept parses a line and applies the level and pattern filters.
func (v *Viewer) accept(line string) (LogEntry, bool) {
	entry := v.parseLine(line)
	if v.cfg.Level != "" && entry.IsValid {
		if LevelFromString(entry.Level) < LevelFromString(v.cfg.Level) {
			return entry, false
		}
	}
	if v.cfg.Pattern != nil && !v.cfg.Pattern.MatchString(entry.Raw) {
		return entry, false
	}
	return entry, true
}

func (v *Viewer) parseLine(line string) LogEntry {
	entry := LogEntry{Raw: line}

	var fields map[string]any
	if err := json.Unmarshal([]byte(line), &fields); err != nil {
		return entry
	}
	entry.IsValid = true

	if s, ok := fields["time"].(string); ok {
		if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
			entry.Time = t
		}
	}
	entry.Level, _ = fields["level"].(string)
	entry.Msg, _ = fields["msg"].(string)

	for k, val := range fields {
		switch k {
		case "time", "level", "msg":
		default:
			if entry.Attrs == nil {
				entry.Attrs = map[string]any{}
			}
			entry.Attrs[k] = val
		}
	}
	return entry
}

var levelColors = map[string]string{
	"DEBUG": "\033[36m", // cyan
	"INFO":  "\033[32m", // green
	"WARN":  "\033[33m", // yellow
	"ERROR": "\033[31m", // red
}

func (v *Viewer) paintLevel(level string) string {
	padded := fmt.Sprintf("%-5s", strings.ToUpper(level))
	if v.cfg.NoColor {
		return padded
	}
	color, ok := levelColors[strings.ToUpper(level)]
	if !ok {
		return padded
	}
	return color + padded + "\033[0m"
}
