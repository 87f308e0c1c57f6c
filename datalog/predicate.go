package datalog

// Predicate is a symbol id applied to an ordered list of terms. Arity
// is fixed per predicate name across a given evaluation.
type Predicate struct {
	Name  Symbol
	Terms []Term
}

func (p Predicate) Equal(p2 Predicate) bool {
	if p.Name != p2.Name || len(p.Terms) != len(p2.Terms) {
		return false
	}
	for i, t := range p.Terms {
		if !t.Equal(p2.Terms[i]) {
			return false
		}
	}
	return true
}

// Match reports whether p and p2 could describe the same fact once
// variables are bound: same name, same arity, and every pair of
// non-variable terms at the same position is equal.
func (p Predicate) Match(p2 Predicate) bool {
	if p.Name != p2.Name || len(p.Terms) != len(p2.Terms) {
		return false
	}
	for i, t := range p.Terms {
		_, v1 := t.(Variable)
		_, v2 := p2.Terms[i].(Variable)
		if v1 || v2 {
			continue
		}
		if !t.Equal(p2.Terms[i]) {
			return false
		}
	}
	return true
}

func (p Predicate) Clone() Predicate {
	res := Predicate{Name: p.Name, Terms: make([]Term, len(p.Terms))}
	copy(res.Terms, p.Terms)
	return res
}

// Fact is a ground predicate, tagged with the set of block (and/or
// authorizer) origins that justify it.
type Fact struct {
	Predicate
	Origin Origin
}

func (f Fact) Clone() Fact {
	return Fact{Predicate: f.Predicate.Clone(), Origin: f.Origin.Clone()}
}

// FactSet is an unordered, duplicate-free collection of facts. Two
// facts with the same predicate but different origins are merged:
// the stored fact's origin becomes the union of both, matching the
// spec's "a fact's origin is the union of contributing origins."
type FactSet []Fact

func (s *FactSet) Insert(f Fact) bool {
	for i, v := range *s {
		if v.Predicate.Equal(f.Predicate) {
			if f.Origin.IsSubset(v.Origin) {
				return false
			}
			(*s)[i].Origin = v.Origin.Union(f.Origin)
			return true
		}
	}
	*s = append(*s, f)
	return true
}

func (s *FactSet) InsertAll(facts []Fact) int {
	n := 0
	for _, f := range facts {
		if s.Insert(f) {
			n++
		}
	}
	return n
}

// InOrigin returns the subset of facts whose origin is a subset of
// trusted.
func (s *FactSet) InOrigin(trusted Origin) *FactSet {
	res := make(FactSet, 0, len(*s))
	for _, f := range *s {
		if f.Origin.IsSubset(trusted) {
			res = append(res, f)
		}
	}
	return &res
}

func (s *FactSet) Equal(x *FactSet) bool {
	if len(*s) != len(*x) {
		return false
	}
	for _, f1 := range *x {
		found := false
		for _, f2 := range *s {
			if f1.Predicate.Equal(f2.Predicate) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}
