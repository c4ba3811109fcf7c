package usage

import (
	"bytes"
	"encoding/json"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"
)

// Result carries the events decoded from one read pass plus the offset
// of the first byte not yet consumed. Malformed counts complete lines
// that were not valid JSON; their bytes are consumed like any other
// line, and the caller decides how loudly to report them.
type Result struct {
	Events    []Event
	NewOffset int64
	Malformed int
}

// Extract reads path from offset onward and decodes complete lines into
// events. NewOffset advances only over fully terminated lines, so a
// partially written tail is left for the next pass. Blank lines consume
// their bytes silently and malformed lines are consumed and counted; a
// read error leaves the offset unchanged.
func Extract(path string, offset int64) (Result, error) {
	if offset < 0 {
		offset = 0
	}
	res := Result{NewOffset: offset}

	f, err := os.Open(path)
	if err != nil {
		return res, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return res, err
	}
	if info.Size() <= offset {
		return res, nil
	}
	if _, err := f.Seek(offset, io.SeekStart); err != nil {
		return res, err
	}

	data, err := io.ReadAll(f)
	if err != nil {
		return res, err
	}

	for {
		nl := bytes.IndexByte(data, '\n')
		if nl < 0 {
			// Incomplete trailing line: not consumed.
			break
		}
		line := data[:nl]
		data = data[nl+1:]
		res.NewOffset += int64(nl) + 1

		line = bytes.TrimSpace(line)
		if len(line) == 0 {
			continue
		}
		var rec logLine
		if err := json.Unmarshal(line, &rec); err != nil {
			res.Malformed++
			continue
		}
		if ev, ok := eventFromRecord(rec, path); ok {
			res.Events = append(res.Events, ev)
		}
	}
	return res, nil
}

// eventFromRecord turns one decoded log record into an Event. Returns
// false for records that carry no usage payload.
func eventFromRecord(rec logLine, path string) (Event, bool) {
	if rec.Type != TypeAssistant || rec.Message == nil || rec.Message.Usage == nil {
		return Event{}, false
	}

	u := rec.Message.Usage
	ev := Event{
		SessionID:           rec.SessionID,
		Project:             rec.Project,
		Timestamp:           rec.Timestamp,
		Type:                rec.Type,
		Model:               rec.Message.Model,
		InputTokens:         u.InputTokens,
		OutputTokens:        u.OutputTokens,
		CacheCreationTokens: u.CacheCreationTokens,
		CacheReadTokens:     u.CacheReadTokens,
		CostUSD:             rec.CostUSD,
	}
	if ev.SessionID == "" {
		ev.SessionID = sessionFromPath(path)
	}
	if ev.Project == "" {
		ev.Project = projectFromPath(path)
	}
	return ev, true
}

// sessionFromPath recovers the session id from the file name:
// <root>/<project>/<sessionId>.jsonl.
func sessionFromPath(path string) string {
	return strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
}

// projectFromPath recovers the project from the parent directory name,
// URL-decoded.
func projectFromPath(path string) string {
	dir := filepath.Base(filepath.Dir(path))
	if decoded, err := url.PathUnescape(dir); err == nil {
		return decoded
	}
	return dir
}
