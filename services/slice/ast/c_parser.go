// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package ast parses C source files with tree-sitter and extracts the
// function and call-site records the call graph is built from.
//
// Line numbers in all extracted records are 1-based positions in the
// original file. Scoring compares raw line numbers, so the parser never
// renumbers anything.
package ast

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/c"
)

// DefaultMaxFileSize is the largest source file the parser will accept (10MB).
const DefaultMaxFileSize = 10 * 1024 * 1024

// ErrFileTooLarge is returned when content exceeds the configured size limit.
var ErrFileTooLarge = fmt.Errorf("file exceeds maximum size")

// ErrInvalidContent is returned when content is not valid UTF-8.
var ErrInvalidContent = fmt.Errorf("content is not valid UTF-8")

// LineEntry is one numbered source line of a function body.
type LineEntry struct {
	// Number is the 1-based line number in the file.
	Number int `json:"number"`

	// Text is the source text without the trailing newline.
	Text string `json:"text"`
}

// FunctionDecl is a function definition extracted from a C file.
type FunctionDecl struct {
	// Name is the function identifier.
	Name string `json:"name"`

	// File is the path the function was parsed from.
	File string `json:"file"`

	// StartLine and EndLine delimit the definition, 1-based inclusive.
	StartLine int `json:"start_line"`
	EndLine   int `json:"end_line"`

	// Params is the ordered list of formal parameter names.
	Params []string `json:"params"`

	// ReturnLine is the line of the last value-carrying return statement,
	// 0 when the function returns nothing.
	ReturnLine int `json:"return_line,omitempty"`

	// ReturnExpr is the text of the returned expression, "" if none.
	ReturnExpr string `json:"return_expr,omitempty"`

	// Body holds every line of the definition, numbered as in the file.
	Body []LineEntry `json:"body"`
}

// CallExpr is a call expression extracted from a function body.
type CallExpr struct {
	// CallerName is the enclosing function.
	CallerName string `json:"caller_name"`

	// Line is the 1-based line of the call.
	Line int `json:"line"`

	// Callee is the called function identifier.
	Callee string `json:"callee"`

	// Args is the ordered list of actual-argument expression texts.
	Args []string `json:"args"`

	// Result is the variable receiving the return value via an enclosing
	// assignment or initialized declaration, "" if the result is discarded
	// or consumed inside a larger expression.
	Result string `json:"result,omitempty"`
}

// ParseError records a non-fatal extraction problem for one construct.
type ParseError struct {
	Line    int    `json:"line"`
	Message string `json:"message"`
}

// ParseResult is the outcome of parsing one C file.
type ParseResult struct {
	FilePath  string         `json:"file_path"`
	Functions []FunctionDecl `json:"functions"`
	Calls     []CallExpr     `json:"calls"`
	Errors    []ParseError   `json:"errors,omitempty"`
}

// CParserOption configures a CParser instance.
type CParserOption func(*CParser)

// WithCMaxFileSize sets the maximum file size the parser will accept.
func WithCMaxFileSize(bytes int64) CParserOption {
	return func(p *CParser) {
		if bytes > 0 {
			p.maxFileSize = bytes
		}
	}
}

// CParser extracts function and call records from C source code.
//
// Description:
//
//	Uses tree-sitter's C grammar. Each Parse call creates its own
//	tree-sitter parser instance, so a single CParser may be shared.
//	The parser is error-tolerant: syntactically broken regions produce
//	ParseError entries, not a failed parse.
//
// Thread Safety: Safe for concurrent use.
type CParser struct {
	maxFileSize int64
}

// NewCParser creates a CParser with the given options.
func NewCParser(opts ...CParserOption) *CParser {
	p := &CParser{maxFileSize: DefaultMaxFileSize}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Parse extracts functions and calls from C source code.
//
// Inputs:
//   - ctx: Context for cancellation. Checked before parsing; tree-sitter
//     itself cannot be interrupted mid-parse.
//   - content: Raw C source bytes. Must be valid UTF-8.
//   - filePath: Path for record attribution and error reporting.
//
// Outputs:
//   - *ParseResult: Extracted records. Never nil on success.
//   - error: ErrFileTooLarge, ErrInvalidContent, context errors, or a
//     wrapped tree-sitter failure.
func (p *CParser) Parse(ctx context.Context, content []byte, filePath string) (*ParseResult, error) {
	if int64(len(content)) > p.maxFileSize {
		return nil, fmt.Errorf("%w: %s is %d bytes (limit %d)", ErrFileTooLarge, filePath, len(content), p.maxFileSize)
	}
	if !utf8.Valid(content) {
		return nil, fmt.Errorf("%w: %s", ErrInvalidContent, filePath)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	parser := sitter.NewParser()
	parser.SetLanguage(c.GetLanguage())

	tree, err := parser.ParseCtx(ctx, nil, content)
	if err != nil {
		return nil, fmt.Errorf("tree-sitter parse of %s: %w", filePath, err)
	}
	defer tree.Close()

	lines := strings.Split(string(content), "\n")
	result := &ParseResult{FilePath: filePath}

	root := tree.RootNode()
	for i := 0; i < int(root.NamedChildCount()); i++ {
		node := root.NamedChild(i)
		if node.Type() != "function_definition" {
			continue
		}
		p.processFunction(node, content, lines, filePath, result)
	}

	return result, nil
}

// processFunction extracts one function_definition node and the calls
// inside it.
func (p *CParser) processFunction(node *sitter.Node, content []byte, lines []string, filePath string, result *ParseResult) {
	name, params, ok := p.extractSignature(node, content)
	if !ok {
		result.Errors = append(result.Errors, ParseError{
			Line:    int(node.StartPoint().Row + 1),
			Message: "could not resolve function declarator",
		})
		return
	}

	startLine := int(node.StartPoint().Row + 1)
	endLine := int(node.EndPoint().Row + 1)

	decl := FunctionDecl{
		Name:      name,
		File:      filePath,
		StartLine: startLine,
		EndLine:   endLine,
		Params:    params,
	}

	for ln := startLine; ln <= endLine && ln <= len(lines); ln++ {
		decl.Body = append(decl.Body, LineEntry{Number: ln, Text: lines[ln-1]})
	}

	body := node.ChildByFieldName("body")
	if body != nil {
		p.extractReturn(body, content, &decl)
		p.extractCalls(body, content, name, result)
	}

	result.Functions = append(result.Functions, decl)
}

// extractSignature resolves the function name and formal parameter names
// from the declarator, unwrapping pointer declarators.
func (p *CParser) extractSignature(node *sitter.Node, content []byte) (string, []string, bool) {
	declarator := node.ChildByFieldName("declarator")
	for declarator != nil && declarator.Type() == "pointer_declarator" {
		declarator = declarator.ChildByFieldName("declarator")
	}
	if declarator == nil || declarator.Type() != "function_declarator" {
		return "", nil, false
	}

	nameNode := declarator.ChildByFieldName("declarator")
	if nameNode == nil {
		return "", nil, false
	}
	name := nameNode.Content(content)

	var params []string
	paramList := declarator.ChildByFieldName("parameters")
	if paramList != nil {
		for i := 0; i < int(paramList.NamedChildCount()); i++ {
			pd := paramList.NamedChild(i)
			if pd.Type() != "parameter_declaration" {
				continue
			}
			if pname := parameterName(pd, content); pname != "" {
				params = append(params, pname)
			}
		}
	}
	return name, params, true
}

// parameterName digs the identifier out of a parameter_declaration,
// unwrapping pointer and array declarators.
func parameterName(pd *sitter.Node, content []byte) string {
	d := pd.ChildByFieldName("declarator")
	for d != nil {
		switch d.Type() {
		case "identifier":
			return d.Content(content)
		case "pointer_declarator", "array_declarator", "parenthesized_declarator":
			d = d.ChildByFieldName("declarator")
		default:
			return ""
		}
	}
	return ""
}

// extractReturn records the last value-carrying return statement. The
// binding resolver seeds backward return slices at this line.
func (p *CParser) extractReturn(body *sitter.Node, content []byte, decl *FunctionDecl) {
	var walk func(n *sitter.Node)
	walk = func(n *sitter.Node) {
		if n.Type() == "return_statement" && n.NamedChildCount() > 0 {
			decl.ReturnLine = int(n.StartPoint().Row + 1)
			decl.ReturnExpr = n.NamedChild(0).Content(content)
		}
		for i := 0; i < int(n.NamedChildCount()); i++ {
			walk(n.NamedChild(i))
		}
	}
	walk(body)
}

// extractCalls records every call_expression in the body, capturing the
// receiving variable when the call sits under an assignment or an
// initialized declaration.
func (p *CParser) extractCalls(body *sitter.Node, content []byte, callerName string, result *ParseResult) {
	var walk func(n *sitter.Node)
	walk = func(n *sitter.Node) {
		if n.Type() == "call_expression" {
			if call, ok := p.processCall(n, content, callerName); ok {
				result.Calls = append(result.Calls, call)
			}
		}
		for i := 0; i < int(n.NamedChildCount()); i++ {
			walk(n.NamedChild(i))
		}
	}
	walk(body)
}

// processCall extracts one call_expression.
func (p *CParser) processCall(n *sitter.Node, content []byte, callerName string) (CallExpr, bool) {
	fn := n.ChildByFieldName("function")
	if fn == nil || fn.Type() != "identifier" {
		// Function-pointer and member calls are outside the no-alias domain.
		return CallExpr{}, false
	}

	call := CallExpr{
		CallerName: callerName,
		Line:       int(n.StartPoint().Row + 1),
		Callee:     fn.Content(content),
		Result:     resultVariable(n, content),
	}

	if args := n.ChildByFieldName("arguments"); args != nil {
		for i := 0; i < int(args.NamedChildCount()); i++ {
			call.Args = append(call.Args, args.NamedChild(i).Content(content))
		}
	}
	return call, true
}

// resultVariable finds the variable receiving the call's return value:
// the left side of a direct assignment, or the declarator of an
// init_declarator. Nested uses (arguments, arithmetic) yield "".
func resultVariable(call *sitter.Node, content []byte) string {
	parent := call.Parent()
	if parent == nil {
		return ""
	}
	switch parent.Type() {
	case "assignment_expression":
		left := parent.ChildByFieldName("left")
		if left != nil && left.Type() == "identifier" {
			return left.Content(content)
		}
	case "init_declarator":
		d := parent.ChildByFieldName("declarator")
		for d != nil {
			if d.Type() == "identifier" {
				return d.Content(content)
			}
			d = d.ChildByFieldName("declarator")
		}
	}
	return ""
}
