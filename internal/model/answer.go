package model

// Answer is the tagged union of per-type answer payloads. Exactly one of the
// value fields is meaningful, selected by Type:
//
//	MCQ, TRUE_FALSE, SHORT_ANSWER, ESSAY → Value
//	MATCHING                            → Pairs
//	ORDERING                            → Order (item IDs in chosen order)
//
// The answer store and the wire treat it as opaque; only the scoring engine
// switches on Type.
type Answer struct {
	Type  QuestionType     `json:"type"`
	Value string           `json:"value,omitempty"`
	Pairs []MatchSelection `json:"pairs,omitempty"`
	Order []string         `json:"order,omitempty"`
}

// MatchSelection is the student's chosen right-hand value for one left.
type MatchSelection struct {
	Left          string `json:"left"`
	SelectedRight string `json:"selected_right"`
}

// IsEmpty reports whether the answer carries no payload at all. An empty
// answer is treated as missing by the scoring engine.
func (a Answer) IsEmpty() bool {
	return a.Value == "" && len(a.Pairs) == 0 && len(a.Order) == 0
}
