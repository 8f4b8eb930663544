package model

// ResponseSet is one event frame: mentions asserted to describe the same event instance.
type ResponseSet struct {
	ID       string            `json:"id,omitempty" yaml:"id,omitempty"`
	Mentions []ArgumentMention `json:"mentions" yaml:"mentions"`
}

// ResponseLinking partitions a document's mentions into event frames. Incomplete holds
// mentions not yet placed in any frame and must be empty before scoring.
type ResponseLinking struct {
	DocID      DocumentID        `json:"doc_id" yaml:"doc_id"`
	Sets       []ResponseSet     `json:"sets" yaml:"sets"`
	Incomplete []ArgumentMention `json:"incomplete,omitempty" yaml:"incomplete,omitempty"`
}
