package record

import (
	"bufio"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"
)

var formationEventPattern = regexp.MustCompile(`^\s*time:([0-9.]+)\s+outFormation:([0-9]+)\s+totalsize:([0-9]+)\s*$`)

// ParseFormationEventLine parses one line of the formation-event log. The
// whole line must match.
func ParseFormationEventLine(line string) (FormationEvent, error) {
	m := formationEventPattern.FindStringSubmatch(line)
	if m == nil {
		return FormationEvent{}, &MalformedLineError{Text: line}
	}

	t, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return FormationEvent{}, &MalformedLineError{Text: line}
	}
	out, err := strconv.Atoi(m[2])
	if err != nil {
		return FormationEvent{}, &MalformedLineError{Text: line}
	}
	total, err := strconv.Atoi(m[3])
	if err != nil {
		return FormationEvent{}, &MalformedLineError{Text: line}
	}

	return FormationEvent{Time: t, OutFormation: out, TotalSize: total}, nil
}

// ReadFormationEvents parses every line of r in file order. Any line that
// does not match, blank lines included, fails the whole read.
func ReadFormationEvents(r io.Reader) ([]FormationEvent, error) {
	var events []FormationEvent

	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())

		event, err := ParseFormationEventLine(line)
		if err != nil {
			return nil, &MalformedLineError{Line: lineNo, Text: line}
		}
		events = append(events, event)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading formation events: %w", err)
	}

	return events, nil
}
