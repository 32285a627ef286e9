// pkg/bridge/code.go
package bridge

import "fmt"

// ControlCode is what a dispatch entry point hands back to the host.
type ControlCode int

const (
	NoAction ControlCode = iota
	Proceed
	Aborted
	Exit
)

func (c ControlCode) String() string {
	switch c {
	case NoAction:
		return "NO_ACTION"
	case Proceed:
		return "PROCEED"
	case Aborted:
		return "ABORTED"
	case Exit:
		return "EXIT"
	default:
		return fmt.Sprintf("ControlCode(%d)", int(c))
	}
}

// Translate maps a textual result token to a control code. Matching is exact;
// anything unrecognized, ABORTED included, yields Aborted.
func Translate(token string) ControlCode {
	c, _ := translate(token)
	return c
}

func translate(token string) (ControlCode, bool) {
	switch token {
	case "NO_ACTION":
		return NoAction, true
	case "PROCEED":
		return Proceed, true
	case "EXIT":
		return Exit, true
	}
	return Aborted, false
}

// Token is the value a callback produced. Runtimes that can return things other
// than strings report them with NonText.
type Token struct {
	text   string
	isText bool
	kind   string
}

// Text wraps a textual token.
func Text(s string) Token { return Token{text: s, isText: true} }

// NonText records a non-string result; kind describes it for diagnostics ("nil", "number"...).
func NonText(kind string) Token { return Token{kind: kind} }

// IsText reports whether the callback returned a string.
func (t Token) IsText() bool { return t.isText }

func (t Token) String() string {
	if t.isText {
		return t.text
	}
	if t.kind == "" {
		return "<non-text>"
	}
	return "<" + t.kind + ">"
}
