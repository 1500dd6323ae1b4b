// Package ast defines the syntax tree that crosses the engine boundary.
//
// The engine serializes its parse result into these types and the host
// decodes them back. Every value is created fresh per call and is owned by
// the caller once returned; the tree is strictly hierarchical and nodes
// never reference their ancestors.
package ast

// Pos is a position within the source text.
type Pos struct {
	Offset uint `json:"Offset"`
	Line   uint `json:"Line"`
	Col    uint `json:"Col"`

	// Recovered marks a position synthesized by error recovery rather
	// than found in the source.
	Recovered bool `json:"Recovered,omitempty"`
}

// IsValid reports whether the position points into the source.
func (p Pos) IsValid() bool { return p.Line > 0 }

// After reports whether p is strictly after q.
func (p Pos) After(q Pos) bool { return p.Offset > q.Offset }

// Node is the base shape embedded by every syntax entity.
type Node struct {
	Pos Pos `json:"Pos"`
	End Pos `json:"End"`
}

// Span returns the node's start and end positions.
func (n Node) Span() (Pos, Pos) { return n.Pos, n.End }

// Comment is a single "#" comment.
type Comment struct {
	Hash Pos    `json:"Hash"`
	Text string `json:"Text"`
	Node
}

// Lit is a literal token.
type Lit struct {
	ValuePos Pos    `json:"ValuePos"`
	ValueEnd Pos    `json:"ValueEnd"`
	Value    string `json:"Value"`
	Node
}

// Word is a sequence of parts, such as literals and substitutions, along
// with its flattened literal rendering. Lit is empty unless every part is
// a literal.
type Word struct {
	Parts []Node `json:"Parts"`
	Lit   string `json:"Lit"`
	Node
}

// Redirect is an input/output redirection such as "2>&1" or "<<EOF".
type Redirect struct {
	OpPos Pos    `json:"OpPos"`
	Op    string `json:"Op"`
	N     *Lit   `json:"N"`
	Word  *Word  `json:"Word"`
	Hdoc  *Word  `json:"Hdoc"`
	Node
}

// Stmt is a command with its modifiers, redirections and comments.
type Stmt struct {
	Comments   []Comment  `json:"Comments"`
	Cmd        *Node      `json:"Cmd"`
	Position   Pos        `json:"Position"`
	Semicolon  Pos        `json:"Semicolon"`
	Negated    bool       `json:"Negated"`
	Background bool       `json:"Background"`
	Coprocess  bool       `json:"Coprocess"`
	Redirs     []Redirect `json:"Redirs"`
	Node
}

// File is the root of a parsed script.
type File struct {
	Name  string    `json:"Name"`
	Stmts []Stmt    `json:"Stmt"`
	Last  []Comment `json:"Last"`
	Node
}

// ParseError is the engine's structured diagnostic.
type ParseError struct {
	Filename   string `json:"Filename"`
	Incomplete bool   `json:"Incomplete"`
	Text       string `json:"Text"`
	Pos        *Pos   `json:"Pos"`
}

// Envelope is the result of one engine call. On success exactly one of
// File or Text is set, depending on whether the call parsed or printed.
type Envelope struct {
	File       *File       `json:"file"`
	Text       *string     `json:"text"`
	ParseError *ParseError `json:"parseError"`
	Message    *string     `json:"message"`
}

// Failed reports whether the envelope carries an error.
func (e *Envelope) Failed() bool {
	return e.ParseError != nil || e.Message != nil
}
