package ir

// Value is a sealed interface for scalar values stored in the index catalog
// and compared against by catalog queries.
// Only Null, String, Int and Bool implement it. There is no float variant:
// numeric literal text is stored as String.
type Value interface {
	catalogValue() // Sealed - only these types implement it
}

// Null is the absent value.
type Null struct{}

func (Null) catalogValue() {}

// String is a text value.
type String string

func (String) catalogValue() {}

// Int is an integer value.
type Int int64

func (Int) catalogValue() {}

// Bool is a boolean value.
type Bool bool

func (Bool) catalogValue() {}
