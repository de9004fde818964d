package vault

// Field binds a plaintext type to one Record slot on a parent entity.
// Reads fall back to a default when the slot is absent or undecryptable;
// writes replace the whole slot.
type Field[T any] struct {
	aad      string
	fallback func() T
	empty    func(T) bool
}

func NewField[T any](aad string, fallback func() T, empty func(T) bool) Field[T] {
	return Field[T]{aad: aad, fallback: fallback, empty: empty}
}

// StringField reads as "" when absent. Writing "" clears the slot.
func StringField(aad string) Field[string] {
	return NewField(aad,
		func() string { return "" },
		func(s string) bool { return s == "" },
	)
}

// ListField reads as an empty, non-nil slice when absent. Writing a nil
// slice clears the slot; an empty non-nil slice is stored.
func ListField[E any](aad string) Field[[]E] {
	return NewField(aad,
		func() []E { return []E{} },
		func(v []E) bool { return v == nil },
	)
}

func (f Field[T]) AAD() string {
	return f.aad
}

func (f Field[T]) Get(c *Codec, slot *Record) T {
	v, _ := f.Lookup(c, slot)
	return v
}

// Lookup is Get that also reports whether the slot held a readable value.
func (f Field[T]) Lookup(c *Codec, slot *Record) (T, bool) {
	if slot == nil {
		return f.fallback(), false
	}
	v, ok := Decrypt[T](c, slot, f.aad)
	if !ok {
		return f.fallback(), false
	}
	return v, true
}

func (f Field[T]) Set(c *Codec, slot **Record, value T) error {
	if f.empty != nil && f.empty(value) {
		*slot = nil
		return nil
	}
	rec, err := Encrypt(c, value, f.aad)
	if err != nil {
		return err
	}
	*slot = rec
	return nil
}

func (f Field[T]) Clear(slot **Record) {
	*slot = nil
}

// Rewrap moves the slot onto the active key. changed is false when the
// slot is empty or already current.
func (f Field[T]) Rewrap(c *Codec, slot **Record) (changed bool, err error) {
	rec, changed, err := c.Rewrap(*slot, f.aad)
	if err != nil || !changed {
		return false, err
	}
	*slot = rec
	return true, nil
}
