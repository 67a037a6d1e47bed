package models

// RequestSpec describes one attempt against one provider. It is passed by
// value; a retry produces a copy with Attempt incremented.
type RequestSpec struct {
	Provider  string `json:"provider"`
	Operation string `json:"operation"`
	Payload   []byte `json:"payload"`
	Attempt   int    `json:"attempt"`
}

// Next returns the spec for the following attempt.
func (s RequestSpec) Next() RequestSpec {
	s.Attempt++
	return s
}
