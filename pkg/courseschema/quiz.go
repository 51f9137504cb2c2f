package courseschema

import (
	"fmt"
	"strconv"
	"strings"
)

var questionKeys = keySet(
	"id", "text", "question", "prompt", "title", "options", "choices", "answers",
	"correctAnswer", "correctAnswerIndex", "correctOptionIds", "explanation",
)

// CanonicalizeQuestions canonicalizes a raw question list. Entries that are
// not objects are dropped.
func CanonicalizeQuestions(raw []any) []QuizQuestion {
	out := make([]QuizQuestion, 0, len(raw))
	for _, item := range raw {
		m, ok := asMap(item)
		if !ok {
			continue
		}
		out = append(out, CanonicalizeQuestion(m, len(out)))
	}
	return out
}

// CanonicalizeQuestion builds the canonical form of one question. index is
// the question's position and only feeds the fallback id "q_<index+1>".
//
// Per option, correctness is resolved from, in order: the option's own
// correct/isCorrect flag, the question's correctOptionIds, the legacy
// correctAnswer (accepted values, an index, or the option text), and
// finally correctAnswerIndex.
func CanonicalizeQuestion(raw map[string]any, index int) QuizQuestion {
	q := QuizQuestion{
		Extensions: extensionsFrom(raw, questionKeys),
	}
	if id, ok := identifier(raw["id"]); ok {
		q.ID = id
	} else {
		q.ID = fmt.Sprintf("q_%d", index+1)
	}
	q.Text, _ = nonEmptyString(raw, "text", "question", "prompt", "title")
	q.Prompt, _ = nonEmptyString(raw, "prompt", "text", "question", "title")
	q.Explanation, _ = nonEmptyString(raw, "explanation")

	resolver := newCorrectnessResolver(raw)

	var rawOptions []any
	for _, key := range []string{"options", "choices", "answers"} {
		if list, ok := asSlice(raw[key]); ok {
			rawOptions = list
			break
		}
	}

	q.Options = make([]QuizOption, 0, len(rawOptions))
	for _, item := range rawOptions {
		option, explicit, ok := readOption(item, q.ID, len(q.Options))
		if !ok {
			continue
		}
		correct := resolver.resolve(explicit, option, len(q.Options))
		option.Correct = correct
		option.IsCorrect = correct
		q.Options = append(q.Options, option)
	}

	q.CorrectOptionIDs = make([]string, 0, 1)
	for i, option := range q.Options {
		if !option.Correct {
			continue
		}
		q.CorrectOptionIDs = append(q.CorrectOptionIDs, option.ID)
		if q.CorrectAnswerIndex == nil {
			q.CorrectAnswerIndex = intPtr(i)
		}
	}
	if resolver.hasIndex && resolver.index < len(q.Options) {
		q.CorrectAnswerIndex = intPtr(resolver.index)
	}

	return q
}

// readOption turns a string or object entry into an option. explicit is nil
// when the entry carries no correctness flag of its own.
func readOption(item any, questionID string, position int) (QuizOption, *bool, bool) {
	fallbackID := fmt.Sprintf("%s_opt_%d", questionID, position)

	if s, ok := item.(string); ok {
		return QuizOption{ID: fallbackID, Text: s}, nil, true
	}

	m, ok := asMap(item)
	if !ok {
		return QuizOption{}, nil, false
	}

	option := QuizOption{ID: fallbackID}
	if id, ok := identifier(m["id"]); ok {
		option.ID = id
	}
	option.Text = optionText(m)

	var explicit *bool
	if b, ok := asBool(m["correct"]); ok {
		explicit = &b
	} else if b, ok := asBool(m["isCorrect"]); ok {
		explicit = &b
	}
	return option, explicit, true
}

func optionText(m map[string]any) string {
	for _, key := range []string{"text", "label", "value", "title"} {
		switch v := m[key].(type) {
		case string:
			if strings.TrimSpace(v) != "" {
				return v
			}
		case nil, bool, map[string]any, []any:
		default:
			if f, ok := asFloat(v); ok {
				return strconv.FormatFloat(f, 'f', -1, 64)
			}
		}
	}
	return ""
}

type correctnessResolver struct {
	ids    map[string]struct{}
	hasIDs bool

	answer    any
	hasAnswer bool

	index    int
	hasIndex bool
}

func newCorrectnessResolver(raw map[string]any) correctnessResolver {
	r := correctnessResolver{}
	if list, ok := asSlice(raw["correctOptionIds"]); ok {
		r.hasIDs = true
		r.ids = make(map[string]struct{}, len(list))
		for _, item := range list {
			if id, ok := identifier(item); ok {
				r.ids[id] = struct{}{}
			}
		}
	}
	if has(raw, "correctAnswer") {
		r.answer = raw["correctAnswer"]
		r.hasAnswer = true
	}
	if idx, ok := asInt(raw["correctAnswerIndex"]); ok && idx >= 0 {
		r.index = idx
		r.hasIndex = true
	}
	return r
}

func (r correctnessResolver) resolve(explicit *bool, option QuizOption, position int) bool {
	switch {
	case explicit != nil:
		return *explicit
	case r.hasIDs:
		_, ok := r.ids[option.ID]
		return ok
	case r.hasAnswer:
		return answerMatches(r.answer, option, position)
	case r.hasIndex:
		return r.index == position
	default:
		return false
	}
}

// answerMatches covers the legacy correctAnswer forms: a list of accepted
// values, a single index, or a string equal to the option text or id.
func answerMatches(answer any, option QuizOption, position int) bool {
	if list, ok := asSlice(answer); ok {
		for _, item := range list {
			if answerMatches(item, option, position) {
				return true
			}
		}
		return false
	}
	if s, ok := asString(answer); ok {
		s = strings.TrimSpace(s)
		return s != "" && (s == strings.TrimSpace(option.Text) || s == option.ID)
	}
	if idx, ok := asInt(answer); ok {
		return idx == position
	}
	return false
}
