// This file is part of embervm.
//
// Copyright 2024 The EmberVM Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package asm

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/scanner"

	"github.com/emberlang/embervm/vm"
)

const maxErrors = 10

// ErrAsm collects every parse error found in one Assemble call, the
// same "report everything, not just the first" idiom the teacher's
// asm package uses.
type ErrAsm []struct {
	Pos scanner.Position
	Msg string
}

func (e ErrAsm) Error() string {
	l := make([]string, 0, len(e))
	for _, err := range e {
		l = append(l, fmt.Sprintf("%s: %s", err.Pos, err.Msg))
	}
	return strings.Join(l, "\n")
}

// labelSite records where a label was defined or referenced, for
// error messages and for resolving jmp offsets once every label's
// address is known.
type labelSite struct {
	pos     scanner.Position
	address int
}

type label struct {
	labelSite
	defined bool
	uses    []labelSite
}

// pendingInstr is one not-yet-encoded line of assembly: its mnemonic,
// raw operand tokens, and source position. Every pendingInstr occupies
// exactly one Instruction word — this ISA's mnemonics never need an
// EXTRA continuation.
type pendingInstr struct {
	pos     scanner.Position
	address int
	mnem    string
	m       mnemonic
	cond    uint8
	tokens  []string // one per operand, in A,B,C order
	line    int
}

type parser struct {
	s      scanner.Scanner
	name   string
	errs   ErrAsm
	labels map[string]*label
	consts map[string]int64

	pending      []pendingInstr
	instructions []vm.Instruction
	lineMap      []int32
	constants    []vm.Value
	address      int
}

func newParser(name string) *parser {
	return &parser{
		name:   name,
		labels: make(map[string]*label),
		consts: make(map[string]int64),
	}
}

func (p *parser) error(pos scanner.Position, format string, args ...interface{}) {
	p.errs = append(p.errs, struct {
		Pos scanner.Position
		Msg string
	}{pos, fmt.Sprintf(format, args...)})
}

func (p *parser) abort() bool { return len(p.errs) >= maxErrors }

// parse runs both passes: tokenize into pendingInstr/labels/constpool
// entries, then encode each pendingInstr now that every label address
// is known.
func (p *parser) parse(r io.Reader) error {
	p.s.Init(r)
	p.s.Filename = p.name
	p.s.Mode = scanner.ScanIdents | scanner.ScanInts | scanner.ScanFloats | scanner.ScanStrings | scanner.ScanComments
	p.s.Whitespace = 1<<'\t' | 1<<' ' | 1<<'\n' | 1<<'\r'

	if err := p.firstPass(); err != nil {
		return err
	}
	p.secondPass()
	if len(p.errs) > 0 {
		return p.errs
	}
	return nil
}

// firstPass tokenizes the whole source. ':' and '.' are scanned as
// their own single-rune tokens by text/scanner (they aren't valid
// identifier characters), so a label ":loop" or directive ".const"
// arrives as two tokens; this pass glues the following identifier
// back onto its prefix before dispatching.
func (p *parser) firstPass() error {
	for {
		tok := p.s.Scan()
		if tok == scanner.EOF {
			break
		}
		switch tok {
		case '-':
			if p.s.Peek() != '-' {
				p.error(p.s.Position, "unexpected '-'")
				continue
			}
			p.s.Next() // consume the second '-'
			for p.s.Peek() != '\n' && p.s.Peek() != scanner.EOF {
				p.s.Next()
			}
		case ':':
			p.defineLabel(p.expectRawIdent())
		case '.':
			switch name := p.expectRawIdent(); name {
			case "const":
				p.parseConstDirective()
			case "constpool":
				p.parseConstpoolDirective()
			default:
				p.error(p.s.Position, "unknown directive %q", "."+name)
			}
		default:
			mnemText := p.s.TokenText()
			if p.s.Peek() == '.' {
				p.s.Next() // consume '.'
				mnemText = mnemText + "." + p.expectRawIdent()
			}
			p.parseInstruction(mnemText)
		}
		if p.abort() {
			break
		}
	}
	return nil
}

// expectRawIdent scans the token glued to a just-consumed prefix rune
// ('.' or ':') and returns it verbatim.
func (p *parser) expectRawIdent() string {
	tok := p.s.Scan()
	if tok != scanner.Ident {
		p.error(p.s.Position, "expected identifier, got %q", p.s.TokenText())
		return ""
	}
	return p.s.TokenText()
}

func (p *parser) defineLabel(name string) {
	pos := p.s.Position
	l := p.labels[name]
	if l == nil {
		l = &label{}
		p.labels[name] = l
	}
	if l.defined {
		p.error(pos, "label %q redefined", name)
		return
	}
	l.defined = true
	l.labelSite = labelSite{pos: pos, address: p.address}
}

func (p *parser) parseConstDirective() {
	name := p.expectIdent()
	val := p.expectInt()
	if name != "" {
		p.consts[name] = val
	}
}

func (p *parser) parseConstpoolDirective() {
	kind := p.expectIdent()
	switch kind {
	case "long":
		p.constants = append(p.constants, vm.Long(p.expectInt()))
	case "double":
		p.constants = append(p.constants, vm.Double(p.expectFloat()))
	case "string":
		p.constants = append(p.constants, vm.String(p.expectString()))
	default:
		p.error(p.s.Position, "unknown .constpool kind %q", kind)
	}
}

func (p *parser) parseInstruction(mnemText string) {
	pos := p.s.Position
	base := mnemText
	cond := uint8(0)
	if i := strings.IndexByte(mnemText, '.'); i >= 0 {
		base = mnemText[:i]
		suffix := mnemText[i+1:]
		c, ok := condSuffixes[suffix]
		if !ok {
			p.error(pos, "unknown conditional suffix %q", suffix)
		}
		cond = c
	}
	m, ok := mnemonics[base]
	if !ok {
		p.error(pos, "unknown mnemonic %q", base)
		return
	}
	tokens := make([]string, 0, len(m.operands))
	for range m.operands {
		tokens = append(tokens, p.expectOperandToken())
	}
	instr := pendingInstr{pos: pos, address: p.address, mnem: base, m: m, cond: cond, tokens: tokens, line: pos.Line}
	p.pending = append(p.pending, instr)
	p.address++
}

// expectOperandToken scans the next operand, skipping over any comma
// separators (text/scanner tokenizes ',' on its own).
func (p *parser) expectOperandToken() string {
	tok := p.s.Scan()
	for tok == ',' {
		tok = p.s.Scan()
	}
	if tok == scanner.EOF {
		p.error(p.s.Position, "unexpected end of input, expected operand")
		return ""
	}
	return p.s.TokenText()
}

func (p *parser) expectIdent() string {
	tok := p.s.Scan()
	if tok != scanner.Ident {
		p.error(p.s.Position, "expected identifier, got %q", p.s.TokenText())
		return ""
	}
	return p.s.TokenText()
}

func (p *parser) expectInt() int64 {
	text := p.expectOperandToken()
	n, err := strconv.ParseInt(text, 0, 64)
	if err != nil {
		if v, ok := p.consts[text]; ok {
			return v
		}
		p.error(p.s.Position, "expected integer, got %q", text)
		return 0
	}
	return n
}

func (p *parser) expectFloat() float64 {
	text := p.expectOperandToken()
	f, err := strconv.ParseFloat(text, 64)
	if err != nil {
		p.error(p.s.Position, "expected float, got %q", text)
		return 0
	}
	return f
}

func (p *parser) expectString() string {
	text := p.expectOperandToken()
	s, err := strconv.Unquote(text)
	if err != nil {
		return strings.Trim(text, `"`)
	}
	return s
}

// secondPass encodes every pendingInstr now that all labels are
// defined, resolving register names, named constants, and jmp label
// operands into a concrete forward/backward jump with its offset.
func (p *parser) secondPass() {
	p.instructions = make([]vm.Instruction, len(p.pending))
	p.lineMap = make([]int32, len(p.pending))
	for i, pi := range p.pending {
		p.lineMap[i] = int32(pi.line)
		p.instructions[i] = p.encode(pi)
	}
}

func (p *parser) encode(pi pendingInstr) vm.Instruction {
	if pi.mnem == "jmp" {
		return p.encodeJump(pi)
	}
	var fields [3]uint16
	for i, kind := range pi.m.operands {
		fields[i] = p.resolveOperand(pi, kind, pi.tokens[i])
	}
	return vm.EncodeInstruction(pi.m.op, pi.cond, fields[0], fields[1], fields[2])
}

func (p *parser) encodeJump(pi pendingInstr) vm.Instruction {
	name := pi.tokens[0]
	l := p.labels[name]
	if l == nil || !l.defined {
		p.error(pi.pos, "undefined label %q", name)
		return vm.EncodeInstruction(vm.OpJmpForward, 0, 0, 0, 0)
	}
	if l.address >= pi.address {
		offset := l.address - pi.address
		return vm.EncodeInstruction(vm.OpJmpForward, pi.cond, uint16(offset), 0, 0)
	}
	offset := pi.address - l.address
	return vm.EncodeInstruction(vm.OpJmpBackward, pi.cond, uint16(offset), 0, 0)
}

func (p *parser) resolveOperand(pi pendingInstr, kind operandKind, text string) uint16 {
	switch kind {
	case kindReg:
		return p.resolveRegister(pi, text)
	case kindImm:
		return p.resolveImm(pi, text)
	case kindCount:
		if text == "all" {
			return 1
		}
		return p.resolveImm(pi, text) + 1
	default:
		p.error(pi.pos, "internal: unexpected operand kind for %q", text)
		return 0
	}
}

func (p *parser) resolveRegister(pi pendingInstr, text string) uint16 {
	if idx, ok := namedRegisters[text]; ok {
		return idx
	}
	if len(text) > 1 && (text[0] == 'r' || text[0] == 'R') {
		n, err := strconv.Atoi(text[1:])
		if err == nil && n >= 0 && n < vm.NumRegisters {
			return uint16(n)
		}
	}
	p.error(pi.pos, "invalid register operand %q", text)
	return 0
}

func (p *parser) resolveImm(pi pendingInstr, text string) uint16 {
	if v, ok := p.consts[text]; ok {
		return uint16(v)
	}
	n, err := strconv.ParseInt(text, 0, 32)
	if err != nil {
		p.error(pi.pos, "invalid integer operand %q", text)
		return 0
	}
	return uint16(n)
}
