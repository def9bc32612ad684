// Package protocol tokenizes MobWrite-style sync requests into an ordered
// action list the sync engine can apply. A request is a sequence of
// "C:REST" lines terminated by a blank line.
package protocol

import (
	"strconv"
	"strings"
)

// Mode identifies what an Action does to a view.
type Mode int

const (
	ModeNull Mode = iota
	ModeDelta
	ModeRaw
)

// Action is one unit of work against a (username, filename) view, produced
// by Parse in request order.
type Action struct {
	Username      string
	Filename      string
	Mode          Mode
	Force         bool // uppercase command letter: client asserts authoritative overwrite
	ServerVersion int  // from the most recent f:/F: line seen before this action
	ClientVersion int  // version prefix on d:/D:/r:/R: lines
	Data          string
}

// BufferFragment is a pending b:/B: line: one slot of a multi-slot request
// the buffer registry must assemble before it can be parsed.
type BufferFragment struct {
	Name  string
	Size  int
	Index int
	Text  string
}

// Result is the output of Parse: the ordered actions, whether the client
// asked to have usernames echoed back, and any buffer fragments encountered
// (in line order — these are resolved by the caller before the actions are
// applied).
type Result struct {
	Actions      []Action
	EchoUsername bool
	BufferEvents []BufferFragment
}

// hasBlankLineTerminator reports whether raw ends with one of the four
// accepted blank-line terminators.
func hasBlankLineTerminator(raw string) bool {
	for _, suffix := range []string{"\n\n", "\r\r", "\n\r\n\r", "\r\n\r\n"} {
		if strings.HasSuffix(raw, suffix) {
			return true
		}
	}
	return false
}

// splitLines splits a request on any of \n, \r\n or \r, the way the original
// daemon's str.splitlines() does, without losing empty-line markers (an
// empty split element terminates parsing below).
func splitLines(raw string) []string {
	normalized := strings.ReplaceAll(raw, "\r\n", "\n")
	normalized = strings.ReplaceAll(normalized, "\r", "\n")
	return strings.Split(normalized, "\n")
}

// Parse tokenizes a single terminated request. ok is false if raw lacks a
// valid blank-line terminator — callers must respond with an empty string
// in that case.
func Parse(raw string) (result Result, ok bool) {
	if !hasBlankLineTerminator(raw) {
		return Result{}, false
	}

	var username, filename string
	var serverVersion int

	for _, line := range splitLines(raw) {
		if line == "" {
			break
		}
		if len(line) < 2 || line[1] != ':' {
			// MalformedLine: skip.
			continue
		}
		cmd := line[0]
		value := line[2:]

		switch cmd {
		case 'u', 'U':
			username = value
			if cmd == 'U' {
				result.EchoUsername = true
			}

		case 'f', 'F':
			v, name, ok := splitVersionPrefix(value)
			if !ok {
				continue
			}
			filename = name
			serverVersion = v

		case 'n', 'N':
			filename = value
			if username != "" && filename != "" {
				result.Actions = append(result.Actions, Action{
					Username: username,
					Filename: filename,
					Mode:     ModeNull,
				})
			}

		case 'd', 'D', 'r', 'R':
			clientVersion, data, ok := splitVersionPrefix(value)
			if !ok {
				continue
			}
			mode := ModeDelta
			if cmd == 'r' || cmd == 'R' {
				mode = ModeRaw
			}
			if username != "" && filename != "" {
				result.Actions = append(result.Actions, Action{
					Username:      username,
					Filename:      filename,
					Mode:          mode,
					Force:         cmd == 'D' || cmd == 'R',
					ServerVersion: serverVersion,
					ClientVersion: clientVersion,
					Data:          data,
				})
			}

		case 'b', 'B':
			frag, ok := parseBufferLine(value)
			if ok {
				result.BufferEvents = append(result.BufferEvents, frag)
			}

		default:
			// Unrecognized command letter: skip.
		}
	}

	return result, true
}

// splitVersionPrefix parses the "V:REST" shape shared by f:/F:/d:/D:/r:/R:
// lines. The version must be a non-empty integer prefix before the first
// colon.
func splitVersionPrefix(value string) (version int, rest string, ok bool) {
	div := strings.IndexByte(value, ':')
	if div <= 0 {
		return 0, "", false
	}
	v, err := strconv.Atoi(value[:div])
	if err != nil {
		return 0, "", false
	}
	return v, value[div+1:], true
}

// parseBufferLine parses "NAME SIZE INDEX TEXT" (space-separated, TEXT may
// itself contain spaces, so it is only split into 4 fields).
func parseBufferLine(value string) (BufferFragment, bool) {
	parts := strings.SplitN(value, " ", 4)
	if len(parts) != 4 {
		return BufferFragment{}, false
	}
	size, err := strconv.Atoi(parts[1])
	if err != nil || size < 1 {
		return BufferFragment{}, false
	}
	index, err := strconv.Atoi(parts[2])
	if err != nil {
		return BufferFragment{}, false
	}
	return BufferFragment{Name: parts[0], Size: size, Index: index, Text: parts[3]}, true
}
