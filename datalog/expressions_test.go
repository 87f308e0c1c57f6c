package datalog

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestExpressionArithmetic(t *testing.T) {
	e := Expression{
		Value{Term: Integer(1)},
		Value{Term: Integer(2)},
		BinaryOp{Func: Add{}},
		Value{Term: Integer(3)},
		BinaryOp{Func: Mul{}},
	}
	res, err := e.Evaluate(nil)
	require.NoError(t, err)
	require.Equal(t, Integer(9), res)
}

func TestExpressionOverflow(t *testing.T) {
	e := Expression{
		Value{Term: Integer(1<<62)},
		Value{Term: Integer(1 << 62)},
		BinaryOp{Func: Add{}},
	}
	_, err := e.Evaluate(nil)
	require.ErrorIs(t, err, ErrInt64Overflow)
}

func TestExpressionDivByZero(t *testing.T) {
	e := Expression{
		Value{Term: Integer(1)},
		Value{Term: Integer(0)},
		BinaryOp{Func: Div{}},
	}
	_, err := e.Evaluate(nil)
	require.ErrorIs(t, err, ErrExprDivByZero)
}

func TestExpressionSetContains(t *testing.T) {
	e := Expression{
		Value{Term: Set{String("read"), String("write")}},
		Value{Term: String("read")},
		BinaryOp{Func: Contains{}},
	}
	res, err := e.Evaluate(nil)
	require.NoError(t, err)
	require.Equal(t, Bool(true), res)
}

func TestExpressionLength(t *testing.T) {
	e := Expression{
		Value{Term: String("hello")},
		UnaryOp{Func: Length{}},
	}
	res, err := e.Evaluate(nil)
	require.NoError(t, err)
	require.Equal(t, Integer(5), res)
}

func TestExpressionVariableBinding(t *testing.T) {
	v := Integer(42)
	values := map[Variable]*Term{0: ptr(Term(v))}
	e := Expression{
		Value{Term: Variable(0)},
		Value{Term: Integer(42)},
		BinaryOp{Func: Equal{}},
	}
	res, err := e.Evaluate(values)
	require.NoError(t, err)
	require.Equal(t, Bool(true), res)
}

func ptr[T any](v T) *T { return &v }

func TestUnionIntersection(t *testing.T) {
	a := Set{Integer(1), Integer(2)}
	b := Set{Integer(2), Integer(3)}

	u, err := (Union{}).Eval(a, b)
	require.NoError(t, err)
	require.Len(t, u.(Set), 3)

	i, err := (Intersection{}).Eval(a, b)
	require.NoError(t, err)
	require.Len(t, i.(Set), 1)
}
