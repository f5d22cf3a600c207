package dialogue

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/samber/lo"

	"github.com/rcliao/companion-brain/internal/model"
	"github.com/rcliao/companion-brain/internal/prompt"
)

// ErrParse is returned for model output that holds no usable reply.
var ErrParse = errors.New("unparseable model reply")

// ParsedReply is the model reply in canonical shape. Empty fields were
// missing from the reply and fall back to defaults.
type ParsedReply struct {
	Text       string
	Emotion    string
	Actions    []string
	Expression string
}

// ParseReply decodes the JSON object in raw. Surrounding prose or code
// fences are ignored. action/actions and expression/expressions may each be
// a string or a list; actions normalize to a list of known codes and
// expressions to known codes joined with "|".
func ParseReply(raw string) (ParsedReply, error) {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start == -1 || end <= start {
		return ParsedReply{}, fmt.Errorf("%w: no JSON object", ErrParse)
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal([]byte(raw[start:end+1]), &fields); err != nil {
		return ParsedReply{}, fmt.Errorf("%w: %w", ErrParse, err)
	}

	var r ParsedReply
	var found bool
	if v, ok := fields["text"]; ok {
		found = true
		r.Text = strings.TrimSpace(stringField(v))
	}
	if v, ok := fields["emotion"]; ok {
		found = true
		r.Emotion = strings.ToLower(strings.TrimSpace(stringField(v)))
	}
	if v, ok := firstOf(fields, "action", "actions"); ok {
		found = true
		r.Actions = knownCodes(codeList(v), func(c string) bool { _, ok := model.LookupAction(c); return ok })
	}
	if v, ok := firstOf(fields, "expression", "expressions"); ok {
		found = true
		codes := knownCodes(codeList(v), func(c string) bool { _, ok := model.LookupExpression(c); return ok })
		r.Expression = strings.Join(codes, "|")
	}
	if !found {
		return ParsedReply{}, fmt.Errorf("%w: none of text, emotion, action, expression present", ErrParse)
	}
	r.Text = truncate(r.Text, prompt.MaxReplyChars)
	return r, nil
}

func firstOf(fields map[string]json.RawMessage, keys ...string) (json.RawMessage, bool) {
	for _, k := range keys {
		if v, ok := fields[k]; ok {
			return v, true
		}
	}
	return nil, false
}

func stringField(v json.RawMessage) string {
	var s string
	if err := json.Unmarshal(v, &s); err == nil {
		return s
	}
	return ""
}

// codeList accepts "A001", "A001|A002", "A001:nod" or ["A001", "A002"].
func codeList(v json.RawMessage) []string {
	var parts []string
	var list []string
	if err := json.Unmarshal(v, &list); err == nil {
		parts = list
	} else {
		var s string
		if err := json.Unmarshal(v, &s); err != nil {
			return nil
		}
		parts = strings.FieldsFunc(s, func(r rune) bool { return r == '|' || r == ',' })
	}

	out := make([]string, 0, len(parts))
	for _, p := range parts {
		code, _, _ := strings.Cut(strings.TrimSpace(p), ":")
		if code = strings.ToUpper(strings.TrimSpace(code)); code != "" {
			out = append(out, code)
		}
	}
	return out
}

func knownCodes(codes []string, known func(string) bool) []string {
	return lo.Uniq(lo.Filter(codes, func(c string, _ int) bool { return known(c) }))
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
