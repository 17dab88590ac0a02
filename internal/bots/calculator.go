package bots

import (
	"go/ast"
	"go/parser"
	"go/token"
	"math"
	"strconv"

	"github.com/C4AI/blab-controller/internal/types"
)

// CalculatorBot evaluates simple arithmetic expressions sent by humans.
type CalculatorBot struct {
	info ConversationInfo
}

// NewCalculatorBot is the registry factory for the calculator bot.
func NewCalculatorBot(info ConversationInfo) Bot {
	return &CalculatorBot{info: info}
}

// ReceiveMessage replies to human text messages with the evaluated
// result, quoting the original. Messages from bots are ignored.
func (b *CalculatorBot) ReceiveMessage(msg *types.Message) {
	if !msg.SentByHuman() {
		return
	}
	result := "?"
	if msg.Type == types.MessageText {
		result = Evaluate(msg.Text)
	}
	_, _ = b.info.Send(&types.MessageData{
		Type:            types.MessageText,
		Text:            result,
		QuotedMessageID: msg.ID.String(),
	})
}

// UpdateStatus is a no-op; the calculator does not track participants.
func (b *CalculatorBot) UpdateStatus(status *types.StateUpdate) {}

const invalidOutput = "?"

// Evaluate computes the result of a simple arithmetic expression.
// The expression is parsed into an AST and only numeric literals, unary
// and binary arithmetic operators and parentheses are allowed; anything
// else yields "?".
func Evaluate(expression string) string {
	expr, err := parser.ParseExpr(expression)
	if err != nil {
		return invalidOutput
	}
	v, ok := eval(expr)
	if !ok || math.IsInf(v, 0) || math.IsNaN(v) {
		return invalidOutput
	}
	if v == math.Trunc(v) && math.Abs(v) < 1e15 {
		return strconv.FormatInt(int64(v), 10)
	}
	return strconv.FormatFloat(v, 'g', -1, 64)
}

func eval(node ast.Expr) (float64, bool) {
	switch e := node.(type) {
	case *ast.BasicLit:
		if e.Kind != token.INT && e.Kind != token.FLOAT {
			return 0, false
		}
		v, err := strconv.ParseFloat(e.Value, 64)
		if err != nil {
			return 0, false
		}
		return v, true
	case *ast.ParenExpr:
		return eval(e.X)
	case *ast.UnaryExpr:
		v, ok := eval(e.X)
		if !ok {
			return 0, false
		}
		switch e.Op {
		case token.SUB:
			return -v, true
		case token.ADD:
			return v, true
		default:
			return 0, false
		}
	case *ast.BinaryExpr:
		x, ok := eval(e.X)
		if !ok {
			return 0, false
		}
		y, ok := eval(e.Y)
		if !ok {
			return 0, false
		}
		switch e.Op {
		case token.ADD:
			return x + y, true
		case token.SUB:
			return x - y, true
		case token.MUL:
			return x * y, true
		case token.QUO:
			if y == 0 {
				return 0, false
			}
			return x / y, true
		case token.REM:
			if y == 0 {
				return 0, false
			}
			return math.Mod(x, y), true
		default:
			return 0, false
		}
	default:
		return 0, false
	}
}
