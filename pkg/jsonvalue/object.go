package jsonvalue

// Member is one key/value pair of an Object.
type Member struct {
	Key   string
	Value Value
}

// Object is an insertion-ordered JSON object. Keys are case-sensitive and
// unique; setting an existing key replaces its value in place.
type Object struct {
	members []Member
	index   map[string]int
}

// NewObject returns an empty object.
func NewObject() *Object {
	return &Object{index: make(map[string]int)}
}

// ObjectOf builds an object from members in order.
func ObjectOf(members ...Member) *Object {
	obj := NewObject()
	for _, m := range members {
		obj.Set(m.Key, m.Value)
	}
	return obj
}

// Len returns the number of members.
func (o *Object) Len() int {
	if o == nil {
		return 0
	}
	return len(o.members)
}

// Get returns the value stored under key.
func (o *Object) Get(key string) (Value, bool) {
	if o == nil {
		return Value{}, false
	}
	i, ok := o.index[key]
	if !ok {
		return Value{}, false
	}
	return o.members[i].Value, true
}

// Has reports whether key is present.
func (o *Object) Has(key string) bool {
	_, ok := o.Get(key)
	return ok
}

// Set stores value under key, keeping the position of an existing key or
// appending a new one.
func (o *Object) Set(key string, value Value) {
	if o.index == nil {
		o.index = make(map[string]int)
	}
	if i, ok := o.index[key]; ok {
		o.members[i].Value = value
		return
	}
	o.index[key] = len(o.members)
	o.members = append(o.members, Member{Key: key, Value: value})
}

// Insert stores value under key at position pos. An existing key is moved.
func (o *Object) Insert(pos int, key string, value Value) {
	o.Delete(key)
	if pos < 0 {
		pos = 0
	}
	if pos > len(o.members) {
		pos = len(o.members)
	}
	o.members = append(o.members, Member{})
	copy(o.members[pos+1:], o.members[pos:])
	o.members[pos] = Member{Key: key, Value: value}
	o.reindex()
}

// Delete removes key and reports whether it was present.
func (o *Object) Delete(key string) bool {
	if o == nil {
		return false
	}
	i, ok := o.index[key]
	if !ok {
		return false
	}
	o.members = append(o.members[:i], o.members[i+1:]...)
	o.reindex()
	return true
}

// Keys returns the keys in order.
func (o *Object) Keys() []string {
	if o == nil {
		return nil
	}
	keys := make([]string, len(o.members))
	for i, m := range o.members {
		keys[i] = m.Key
	}
	return keys
}

// Members returns the members in order. The slice must not be modified.
func (o *Object) Members() []Member {
	if o == nil {
		return nil
	}
	return o.members
}

// Clone returns a deep copy of o.
func (o *Object) Clone() *Object {
	out := &Object{
		members: make([]Member, len(o.Members())),
		index:   make(map[string]int, o.Len()),
	}
	for i, m := range o.Members() {
		out.members[i] = Member{Key: m.Key, Value: m.Value.Clone()}
		out.index[m.Key] = i
	}
	return out
}

func (o *Object) reindex() {
	o.index = make(map[string]int, len(o.members))
	for i, m := range o.members {
		o.index[m.Key] = i
	}
}
