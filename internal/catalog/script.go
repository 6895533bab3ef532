package catalog

import (
	"bufio"
	"bytes"
	"errors"
	"regexp"
	"strings"
)

// Script is the parsed body of one migration file: the forward and reverse
// statement lists plus the per-migration transaction policy.
type Script struct {
	Up             []string
	Down           []string
	UseTransaction bool
}

var markerRe = regexp.MustCompile(`^--\s*\+(up|down|no-transaction)\s*$`)

// parseScript splits a migration file into up and down statement lists.
// Sections are introduced by "-- +up" and "-- +down" marker comments; the
// optional "-- +no-transaction" directive must appear before the first
// section marker.
func parseScript(b []byte) (*Script, error) {
	script := &Script{UseTransaction: true}
	var up, down strings.Builder
	var cur *strings.Builder

	scanner := bufio.NewScanner(bytes.NewReader(b))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if m := markerRe.FindStringSubmatch(line); m != nil {
			switch m[1] {
			case "up":
				cur = &up
			case "down":
				cur = &down
			case "no-transaction":
				if cur != nil {
					return nil, errors.New("no-transaction directive must precede the first section marker")
				}
				script.UseTransaction = false
			}
			continue
		}
		if line == "" || strings.HasPrefix(line, "--") {
			continue
		}
		if cur == nil {
			return nil, errors.New("statement before any section marker")
		}
		cur.WriteString(line)
		cur.WriteByte('\n')
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	script.Up = splitStatements(up.String())
	script.Down = splitStatements(down.String())
	if len(script.Up) == 0 {
		return nil, errors.New("no up section")
	}
	return script, nil
}

// splitStatements cuts a section body on ';' terminators. Each returned
// statement is one executable sub-step; its index is the position used for
// partial reruns.
func splitStatements(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ";") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		out = append(out, part)
	}
	return out
}
