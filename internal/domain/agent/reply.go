package agent

import (
	"strings"

	"github.com/parleyhq/parley/internal/domain/board"
)

// Separator splits one completion into multiple board messages. The agent's
// output-format contract (see briefing.go) instructs the model to emit it on
// its own line between messages.
const Separator = "---NEXT---"

// Segment is one parsed piece of a completion reply. Header parsing of free
// text is best-effort, so the result is an explicit tagged union instead of
// silently defaulted fields.
type Segment interface {
	isSegment()
}

// Structured is a segment that carried at least one recognized header line.
type Structured struct {
	To      string
	Type    string
	Subject string
	Body    string
}

func (Structured) isSegment() {}

// Unstructured is a segment with no recognized headers; it is posted whole
// as a broadcast.
type Unstructured struct {
	Body string
}

func (Unstructured) isSegment() {}

// ParseReply splits completion text on the literal separator and parses each
// segment's optional TO:/TYPE:/SUBJECT: header lines (case-insensitive).
// Empty segments are dropped.
func ParseReply(text string) []Segment {
	var segments []Segment
	for _, part := range strings.Split(text, Separator) {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		segments = append(segments, parseSegment(part))
	}
	return segments
}

func parseSegment(text string) Segment {
	lines := strings.Split(text, "\n")

	var s Structured
	matched := false
	i := 0
	for ; i < len(lines); i++ {
		name, value, ok := headerLine(lines[i])
		if !ok {
			break
		}
		matched = true
		switch name {
		case "to":
			s.To = value
		case "type":
			s.Type = value
		case "subject":
			s.Subject = value
		}
	}

	if !matched {
		return Unstructured{Body: text}
	}
	s.Body = strings.TrimSpace(strings.Join(lines[i:], "\n"))
	return s
}

// headerLine parses "NAME: value" where NAME is to/type/subject, any case.
func headerLine(line string) (name, value string, ok bool) {
	head, rest, found := strings.Cut(line, ":")
	if !found {
		return "", "", false
	}
	switch strings.ToLower(strings.TrimSpace(head)) {
	case "to", "type", "subject":
		return strings.ToLower(strings.TrimSpace(head)), strings.TrimSpace(rest), true
	}
	return "", "", false
}

// ToPosts converts parsed segments into board post requests for the given
// identity. Unstructured segments become broadcasts; structured segments with
// missing fields pick up the usual post defaults. Segments whose body came out
// empty (headers with nothing after them) are skipped so one malformed piece
// cannot sink the whole batch.
func ToPosts(segments []Segment, projectID, fromRole string) []board.PostRequest {
	posts := make([]board.PostRequest, 0, len(segments))
	for _, seg := range segments {
		req := board.PostRequest{ProjectID: projectID, FromRole: fromRole}
		switch s := seg.(type) {
		case Structured:
			req.ToRole = s.To
			req.Type = s.Type
			req.Subject = s.Subject
			req.Body = s.Body
		case Unstructured:
			req.Body = s.Body
		}
		if req.Body == "" {
			continue
		}
		req.Normalize()
		posts = append(posts, req)
	}
	return posts
}
