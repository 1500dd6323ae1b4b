package engine

import (
	"mvdan.cc/sh/v3/syntax"

	"github.com/un-ts/sh-syntax/ast"
)

func mapPos(pos syntax.Pos) ast.Pos {
	return ast.Pos{
		Offset:    pos.Offset(),
		Line:      pos.Line(),
		Col:       pos.Col(),
		Recovered: pos.IsRecovered(),
	}
}

func mapNode(node syntax.Node) *ast.Node {
	if node == nil {
		return nil
	}
	return &ast.Node{
		Pos: mapPos(node.Pos()),
		End: mapPos(node.End()),
	}
}

func mapComments(comments []syntax.Comment) []ast.Comment {
	out := make([]ast.Comment, len(comments))
	for i := range comments {
		c := &comments[i]
		out[i] = ast.Comment{
			Hash: mapPos(c.Hash),
			Text: c.Text,
			Node: *mapNode(c),
		}
	}
	return out
}

func mapWord(word *syntax.Word) *ast.Word {
	if word == nil {
		return nil
	}

	parts := make([]ast.Node, len(word.Parts))
	for i, part := range word.Parts {
		parts[i] = *mapNode(part)
	}

	return &ast.Word{
		Parts: parts,
		Lit:   word.Lit(),
		Node:  *mapNode(word),
	}
}

func mapLit(lit *syntax.Lit) *ast.Lit {
	if lit == nil {
		return nil
	}
	return &ast.Lit{
		ValuePos: mapPos(lit.ValuePos),
		ValueEnd: mapPos(lit.ValueEnd),
		Value:    lit.Value,
		Node:     *mapNode(lit),
	}
}

func mapRedirects(redirects []*syntax.Redirect) []ast.Redirect {
	out := make([]ast.Redirect, len(redirects))
	for i, r := range redirects {
		out[i] = ast.Redirect{
			OpPos: mapPos(r.OpPos),
			Op:    r.Op.String(),
			N:     mapLit(r.N),
			Word:  mapWord(r.Word),
			Hdoc:  mapWord(r.Hdoc),
			Node:  *mapNode(r),
		}
	}
	return out
}

func mapStmts(stmts []*syntax.Stmt) []ast.Stmt {
	out := make([]ast.Stmt, len(stmts))
	for i, s := range stmts {
		out[i] = ast.Stmt{
			Comments:   mapComments(s.Comments),
			Cmd:        mapNode(s.Cmd),
			Position:   mapPos(s.Position),
			Semicolon:  mapPos(s.Semicolon),
			Negated:    s.Negated,
			Background: s.Background,
			Coprocess:  s.Coprocess,
			Redirs:     mapRedirects(s.Redirs),
			Node:       *mapNode(s),
		}
	}
	return out
}

func mapFile(file *syntax.File) *ast.File {
	return &ast.File{
		Name:  file.Name,
		Stmts: mapStmts(file.Stmts),
		Last:  mapComments(file.Last),
		Node:  *mapNode(file),
	}
}
