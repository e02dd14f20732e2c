package battle

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"
)

// PointsPerCorrect is awarded per correct answer. No time bonus.
const PointsPerCorrect = 10

// AnswerRecord is written once per player per question.
type AnswerRecord struct {
	Value     any       `json:"answer"`
	TimeSpent float64   `json:"timeSpent"`
	Timestamp time.Time `json:"timestamp"`
	TimedOut  bool      `json:"timedOut"`
}

// ResolveOption maps a submitted answer to an option index. Accepted shapes,
// in order: a numeric index, a string matching an option text
// (case-insensitive), a numeric string.
func ResolveOption(value any, options []string) (int, bool) {
	if idx, ok := numericIndex(value); ok {
		return inRange(idx, options)
	}

	s, ok := value.(string)
	if !ok {
		return -1, false
	}
	s = strings.TrimSpace(s)
	for i, opt := range options {
		if strings.EqualFold(strings.TrimSpace(opt), s) {
			return i, true
		}
	}
	if idx, err := strconv.Atoi(s); err == nil {
		return inRange(idx, options)
	}
	return -1, false
}

func numericIndex(value any) (int, bool) {
	switch v := value.(type) {
	case int:
		return v, true
	case int32:
		return int(v), true
	case int64:
		return int(v), true
	case float64:
		if v != math.Trunc(v) || math.IsInf(v, 0) {
			return 0, false
		}
		return int(v), true
	case json.Number:
		i, err := v.Int64()
		if err != nil {
			return 0, false
		}
		return int(i), true
	}
	return 0, false
}

func inRange(idx int, options []string) (int, bool) {
	if idx < 0 || idx >= len(options) {
		return -1, false
	}
	return idx, true
}

// IsCorrect evaluates a record against its question. Timeouts never score.
func IsCorrect(rec AnswerRecord, q Question) bool {
	if rec.TimedOut {
		return false
	}
	idx, ok := ResolveOption(rec.Value, q.Options)
	return ok && idx == q.CorrectIndex
}

// Score replays correctness over every recorded answer.
func Score(answers map[int]AnswerRecord, qs []Question) int {
	score := 0
	for i, q := range qs {
		if rec, ok := answers[i]; ok && IsCorrect(rec, q) {
			score += PointsPerCorrect
		}
	}
	return score
}
