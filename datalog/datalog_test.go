package datalog

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestFamilyRule(t *testing.T) {
	syms := NewSymbolTable()
	parent := syms.Insert("parent")
	grandparent := syms.Insert("grandparent")
	alice := syms.Insert("alice")
	bob := syms.Insert("bob")
	carol := syms.Insert("carol")

	w := NewWorld()
	w.AddFact(Fact{Predicate: Predicate{Name: parent, Terms: []Term{alice, bob}}, Origin: NewOrigin(0)})
	w.AddFact(Fact{Predicate: Predicate{Name: parent, Terms: []Term{bob, carol}}, Origin: NewOrigin(0)})

	x, y, z := Variable(0), Variable(1), Variable(2)
	w.AddRule(Rule{
		Head: Predicate{Name: grandparent, Terms: []Term{x, z}},
		Body: []Predicate{
			{Name: parent, Terms: []Term{x, y}},
			{Name: parent, Terms: []Term{y, z}},
		},
	}, 0)

	require.NoError(t, w.Run())

	res := w.Query(Predicate{Name: grandparent, Terms: []Term{Variable(9), Variable(10)}})
	require.Len(t, *res, 1)
	require.True(t, (*res)[0].Predicate.Equal(Predicate{Name: grandparent, Terms: []Term{alice, carol}}))
}

func TestWorldRunLimitMaxFacts(t *testing.T) {
	syms := NewSymbolTable()
	a := syms.Insert("a")
	b := syms.Insert("b")

	w := NewWorld(WithMaxFacts(5), WithMaxDuration(time.Second))
	for i := 0; i < 10; i++ {
		w.AddFact(Fact{Predicate: Predicate{Name: a, Terms: []Term{Integer(i)}}, Origin: NewOrigin(0)})
	}

	x := Variable(0)
	w.AddRule(Rule{
		Head: Predicate{Name: b, Terms: []Term{x}},
		Body: []Predicate{{Name: a, Terms: []Term{x}}},
	}, 0)

	err := w.Run()
	require.ErrorIs(t, err, ErrWorldRunLimitMaxFacts)
}

func TestDefaultScopeRestrictsToAuthorityAndSelf(t *testing.T) {
	syms := NewSymbolTable()
	secret := syms.Insert("secret")
	derived := syms.Insert("derived")

	w := NewWorld()
	// fact only visible in block 2, rule defined in block 1 with implicit scope
	w.AddFact(Fact{Predicate: Predicate{Name: secret, Terms: []Term{Integer(1)}}, Origin: NewOrigin(2)})

	x := Variable(0)
	w.AddRule(Rule{
		Head: Predicate{Name: derived, Terms: []Term{x}},
		Body: []Predicate{{Name: secret, Terms: []Term{x}}},
	}, 1)

	require.NoError(t, w.Run())
	require.Len(t, *w.Facts(), 1, "rule in block 1 must not see a fact only originating in block 2")
}

func TestExplicitScopeGrantsVisibility(t *testing.T) {
	syms := NewSymbolTable()
	secret := syms.Insert("secret")
	derived := syms.Insert("derived")

	w := NewWorld()
	w.AddFact(Fact{Predicate: Predicate{Name: secret, Terms: []Term{Integer(1)}}, Origin: NewOrigin(2)})

	x := Variable(0)
	w.AddRule(Rule{
		Head:  Predicate{Name: derived, Terms: []Term{x}},
		Body:  []Predicate{{Name: secret, Terms: []Term{x}}},
		Scope: Scope{Explicit: true, Blocks: []uint32{2}},
	}, 1)

	require.NoError(t, w.Run())
	require.Len(t, *w.Facts(), 2)
}

func TestRuleValidateMissingHeadVariable(t *testing.T) {
	r := Rule{
		Head: Predicate{Name: Symbol(1), Terms: []Term{Variable(0)}},
		Body: []Predicate{{Name: Symbol(2), Terms: []Term{Variable(1)}}},
	}
	err := r.Validate()
	require.Error(t, err)
	var invalid InvalidRuleError
	require.ErrorAs(t, err, &invalid)
	require.Equal(t, Variable(0), invalid.MissingVariable)
}

func TestCombinatorJoinRequiresAllPredicates(t *testing.T) {
	syms := NewSymbolTable()
	a := syms.Insert("a")
	b := syms.Insert("b")
	foo := syms.Insert("foo")

	w := NewWorld()
	w.AddFact(Fact{Predicate: Predicate{Name: a, Terms: []Term{Integer(3)}}, Origin: NewOrigin(0)})
	w.AddFact(Fact{Predicate: Predicate{Name: a, Terms: []Term{Integer(1)}}, Origin: NewOrigin(0)})
	w.AddFact(Fact{Predicate: Predicate{Name: b, Terms: []Term{Integer(1)}}, Origin: NewOrigin(0)})

	x := Variable(0)
	w.AddRule(Rule{
		Head: Predicate{Name: foo, Terms: []Term{x}},
		Body: []Predicate{
			{Name: a, Terms: []Term{x}},
			{Name: b, Terms: []Term{x}},
		},
	}, 0)

	require.NoError(t, w.Run())

	res := w.Query(Predicate{Name: foo, Terms: []Term{Variable(9)}})
	require.Len(t, *res, 1, "foo(3) must not be derived: no b(3) fact exists")
	require.True(t, (*res)[0].Predicate.Equal(Predicate{Name: foo, Terms: []Term{Integer(1)}}))
}

func TestFactSetInsertMergesOrigins(t *testing.T) {
	fs := &FactSet{}
	p := Predicate{Name: Symbol(1), Terms: []Term{Integer(1)}}
	fs.Insert(Fact{Predicate: p, Origin: NewOrigin(0)})
	fs.Insert(Fact{Predicate: p, Origin: NewOrigin(1)})

	require.Len(t, *fs, 1)
	require.True(t, (*fs)[0].Origin.Contains(0))
	require.True(t, (*fs)[0].Origin.Contains(1))
}
