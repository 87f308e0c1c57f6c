package biscuit

import "github.com/dalek-auth/biscuit/v2/datalog"

// Expression is a postfix op sequence at the builder level, mirroring
// datalog.Expression; Value wraps a builder Term so symbols are
// interned the same way predicate terms are.
type Expression []Op

func (e Expression) convert(symbols *datalog.SymbolTable) datalog.Expression {
	out := make(datalog.Expression, len(e))
	for i, op := range e {
		out[i] = op.convert(symbols)
	}
	return out
}

type Op interface {
	convert(symbols *datalog.SymbolTable) datalog.Op
}

type Value struct{ Term Term }

func (v Value) convert(symbols *datalog.SymbolTable) datalog.Op {
	return datalog.Value{Term: v.Term.convert(symbols)}
}

type UnaryOp struct{ Func datalog.UnaryOpFunc }

func (u UnaryOp) convert(*datalog.SymbolTable) datalog.Op { return datalog.UnaryOp{Func: u.Func} }

type BinaryOp struct{ Func datalog.BinaryOpFunc }

func (b BinaryOp) convert(*datalog.SymbolTable) datalog.Op { return datalog.BinaryOp{Func: b.Func} }

// Convenience constructors matching the unary/binary operator set in
// §4.C5/C6.
func Negate(t Term) Expression   { return Expression{Value{t}, UnaryOp{datalog.Negate{}}} }
func Length(t Term) Expression   { return Expression{Value{t}, UnaryOp{datalog.Length{}}} }

func binary(left, right Term, f datalog.BinaryOpFunc) Expression {
	return Expression{Value{left}, Value{right}, BinaryOp{f}}
}

func LessThan(l, r Term) Expression      { return binary(l, r, datalog.LessThan{}) }
func LessOrEqual(l, r Term) Expression   { return binary(l, r, datalog.LessOrEqual{}) }
func GreaterThan(l, r Term) Expression   { return binary(l, r, datalog.GreaterThan{}) }
func GreaterOrEqual(l, r Term) Expression { return binary(l, r, datalog.GreaterOrEqual{}) }
func Equal(l, r Term) Expression          { return binary(l, r, datalog.Equal{}) }
func NotEqual(l, r Term) Expression       { return binary(l, r, datalog.NotEqual{}) }
func Contains(l, r Term) Expression       { return binary(l, r, datalog.Contains{}) }
func Prefix(l, r Term) Expression         { return binary(l, r, datalog.Prefix{}) }
func Suffix(l, r Term) Expression         { return binary(l, r, datalog.Suffix{}) }
func Matches(l, r Term) Expression        { return binary(l, r, datalog.Regex{}) }
func Add(l, r Term) Expression            { return binary(l, r, datalog.Add{}) }
func Sub(l, r Term) Expression            { return binary(l, r, datalog.Sub{}) }
func Mul(l, r Term) Expression            { return binary(l, r, datalog.Mul{}) }
func Div(l, r Term) Expression            { return binary(l, r, datalog.Div{}) }
func And(l, r Term) Expression            { return binary(l, r, datalog.And{}) }
func Or(l, r Term) Expression             { return binary(l, r, datalog.Or{}) }
func Intersection(l, r Term) Expression   { return binary(l, r, datalog.Intersection{}) }
func Union(l, r Term) Expression          { return binary(l, r, datalog.Union{}) }
func Subset(l, r Term) Expression         { return binary(l, r, datalog.Subset{}) }
