package json

import "strconv"

// Copy-on-write helpers used by the delta/update machinery (delta.go,
// update.go). They never mutate the receiver, matching Value's
// immutable-after-construction contract.

// withSet returns a copy of o with name's value set to val, appending a new
// member if name is not already present.
func (o Object) withSet(name string, val Value) Object {
	members := make([]Member, len(o.members))
	copy(members, o.members)
	for i, m := range members {
		if m.Name == name {
			members[i] = Member{Name: name, Value: val}
			return Object{members: members}
		}
	}
	return Object{members: append(members, Member{Name: name, Value: val})}
}

// withRemoved returns a copy of o with the first member named name removed.
func (o Object) withRemoved(name string) Object {
	members := make([]Member, 0, len(o.members))
	for _, m := range o.members {
		if m.Name == name {
			continue
		}
		members = append(members, m)
	}
	return Object{members: members}
}

// withReplacedAt returns a copy of a with the element at idx replaced by val.
func (a Array) withReplacedAt(idx int, val Value) Array {
	items := make([]Value, len(a.items))
	copy(items, a.items)
	if idx >= 0 && idx < len(items) {
		items[idx] = val
	}
	return Array{items: items}
}

// withRemovedAt returns a copy of a with the element at idx removed.
func (a Array) withRemovedAt(idx int) Array {
	if idx < 0 || idx >= len(a.items) {
		return a
	}
	items := make([]Value, 0, len(a.items)-1)
	items = append(items, a.items[:idx]...)
	items = append(items, a.items[idx+1:]...)
	return Array{items: items}
}

// withInsertedAt returns a copy of a with val inserted before idx (idx may
// equal len(a.items) to append). An idx outside [0, len(a.items)] leaves a
// unchanged.
func (a Array) withInsertedAt(idx int, val Value) Array {
	if idx < 0 || idx > len(a.items) {
		return a
	}
	items := make([]Value, 0, len(a.items)+1)
	items = append(items, a.items[:idx]...)
	items = append(items, val)
	items = append(items, a.items[idx:]...)
	return Array{items: items}
}

func numberToInt(n Number) int {
	v, _ := strconv.Atoi(string(n.raw))
	return v
}
