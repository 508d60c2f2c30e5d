// Package qasm exports circuits as OpenQASM 2.0.
package qasm

import (
	"fmt"
	"math"
	"strings"

	"github.com/fumin/qcirc/circuit"
	"github.com/fumin/qcirc/gate"
)

type kind struct {
	name     string
	controls int
}

// qelib1 maps gates to the instructions of qelib1.inc.
var qelib1 = map[kind]string{
	{"H", 0}:    "h",
	{"H", 1}:    "ch",
	{"X", 0}:    "x",
	{"X", 1}:    "cx",
	{"X", 2}:    "ccx",
	{"Y", 0}:    "y",
	{"Y", 1}:    "cy",
	{"Z", 0}:    "z",
	{"Z", 1}:    "cz",
	{"S", 0}:    "s",
	{"T", 0}:    "t",
	{"SWAP", 0}: "swap",
	{"SWAP", 1}: "cswap",
	{"Rx", 0}:   "rx",
	{"Ry", 0}:   "ry",
	{"Rz", 0}:   "rz",
	{"Rz", 1}:   "crz",
	{"P", 0}:    "u1",
	{"P", 1}:    "cu1",
}

// Session is a single export run.
// Gates without a qelib1 instruction are declared as empty macros the first time they appear in a session, and only referenced afterwards.
type Session struct {
	declared map[string]bool
}

// NewSession returns a session with no declared macros.
func NewSession() *Session {
	return &Session{declared: make(map[string]bool)}
}

// Export returns the OpenQASM program of c.
func (s *Session) Export(c *circuit.Circuit) string {
	var sb strings.Builder
	sb.WriteString("OPENQASM 2.0;\n")
	sb.WriteString("include \"qelib1.inc\";\n")
	fmt.Fprintf(&sb, "qreg q[%d];\n", c.NumQubits())
	for _, op := range c.Ops() {
		sb.WriteString(s.Statement(op))
	}
	return sb.String()
}

// Statement returns the instruction of op, preceded by its macro declaration if op is the first of its kind in s.
func (s *Session) Statement(op *gate.Gate) string {
	controls := op.Controls()
	operands := make([]string, 0, len(controls)+len(op.Wires()))
	for _, q := range append(controls, op.Wires()...) {
		operands = append(operands, fmt.Sprintf("q[%d]", q))
	}
	args := formatParams(op.Params())

	if name, ok := qelib1[kind{op.Name(), len(controls)}]; ok {
		return fmt.Sprintf("%s%s %s;\n", name, args, strings.Join(operands, ","))
	}

	name := op.Identity()
	var sb strings.Builder
	if !s.declared[name] {
		s.declared[name] = true
		formal := make([]string, 0, len(operands))
		for i := range operands {
			formal = append(formal, fmt.Sprintf("q%d", i))
		}
		var ps string
		if n := len(op.Params()); n > 0 {
			pnames := make([]string, 0, n)
			for i := range n {
				pnames = append(pnames, fmt.Sprintf("p%d", i))
			}
			ps = "(" + strings.Join(pnames, ",") + ")"
		}
		fmt.Fprintf(&sb, "gate %s%s %s { }\n", name, ps, strings.Join(formal, ","))
	}
	fmt.Fprintf(&sb, "%s%s %s;\n", name, args, strings.Join(operands, ","))
	return sb.String()
}

func formatParams(params []*gate.Param) string {
	if len(params) == 0 {
		return ""
	}
	ss := make([]string, 0, len(params))
	for _, p := range params {
		ss = append(ss, formatParam(p.Value()))
	}
	return "(" + strings.Join(ss, ",") + ")"
}

// formatParam formats val in pi notation when it is a common fraction of pi.
func formatParam(val float64) string {
	type piForm struct {
		value   float64
		display string
	}
	piForms := []piForm{
		{2 * math.Pi, "2*pi"},
		{math.Pi, "pi"},
		{math.Pi / 2, "pi/2"},
		{math.Pi / 3, "pi/3"},
		{math.Pi / 4, "pi/4"},
		{math.Pi / 6, "pi/6"},
		{math.Pi / 8, "pi/8"},
		{3 * math.Pi / 4, "3*pi/4"},
		{3 * math.Pi / 2, "3*pi/2"},
		{2 * math.Pi / 3, "2*pi/3"},
	}
	for _, pf := range piForms {
		if math.Abs(val-pf.value) < 1e-10 {
			return pf.display
		}
		if math.Abs(val+pf.value) < 1e-10 {
			return "-" + pf.display
		}
	}
	return fmt.Sprintf("%g", val)
}
