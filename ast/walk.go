package ast

// Visitor is called for every node reached by Walk. Returning false stops
// the descent into that node's children.
type Visitor func(n any) bool

// Walk traverses the tree rooted at f depth-first, in source order.
func Walk(f *File, v Visitor) {
	if f == nil || !v(f) {
		return
	}
	for i := range f.Stmts {
		walkStmt(&f.Stmts[i], v)
	}
	for i := range f.Last {
		v(&f.Last[i])
	}
}

func walkStmt(s *Stmt, v Visitor) {
	if !v(s) {
		return
	}
	for i := range s.Comments {
		v(&s.Comments[i])
	}
	if s.Cmd != nil {
		v(s.Cmd)
	}
	for i := range s.Redirs {
		walkRedirect(&s.Redirs[i], v)
	}
}

func walkRedirect(r *Redirect, v Visitor) {
	if !v(r) {
		return
	}
	if r.N != nil {
		v(r.N)
	}
	walkWord(r.Word, v)
	walkWord(r.Hdoc, v)
}

func walkWord(w *Word, v Visitor) {
	if w == nil || !v(w) {
		return
	}
	for i := range w.Parts {
		v(&w.Parts[i])
	}
}

// Spans collects the start and end positions of every node in the tree,
// in visiting order.
func Spans(f *File) [][2]Pos {
	var out [][2]Pos
	Walk(f, func(n any) bool {
		switch n := n.(type) {
		case *File:
			out = append(out, [2]Pos{n.Pos, n.End})
		case *Stmt:
			out = append(out, [2]Pos{n.Pos, n.End})
		case *Comment:
			out = append(out, [2]Pos{n.Pos, n.End})
		case *Node:
			out = append(out, [2]Pos{n.Pos, n.End})
		case *Redirect:
			out = append(out, [2]Pos{n.Pos, n.End})
		case *Lit:
			out = append(out, [2]Pos{n.Pos, n.End})
		case *Word:
			out = append(out, [2]Pos{n.Pos, n.End})
		}
		return true
	})
	return out
}
