package component

import (
	"fmt"
	"iter"
	"strings"

	"github.com/san-kum/simtree/internal/engine"
)

// Handle identifies a node within the tree it was finalized in.
type Handle int

const (
	NoHandle   Handle = -1
	rootHandle Handle = 0
)

// tree is the arena shared by every node of one finalized tree. Nodes refer to
// each other through handles into it, never through retained pointers.
type tree struct {
	nodes      []Component
	finalizing bool
	building   bool
	traversal  bool
	system     *engine.System
}

func newTree(root Component) *tree {
	t := &tree{}
	t.add(root, NoHandle)
	return t
}

func (t *tree) get(h Handle) Component {
	if h < 0 || int(h) >= len(t.nodes) {
		return nil
	}
	return t.nodes[h]
}

func (t *tree) base(h Handle) *Base {
	c := t.get(h)
	if c == nil {
		return nil
	}
	return c.ComponentBase()
}

func (t *tree) add(c Component, parent Handle) Handle {
	h := Handle(len(t.nodes))
	t.nodes = append(t.nodes, c)
	b := c.ComponentBase()
	b.tree = t
	b.id = h
	b.parent = parent
	b.children = b.children[:0]
	b.next = NoHandle
	b.pathName = ""
	return h
}

// AddComponent makes sub a child of this node. It is only permitted while the
// tree is finalizing properties; sibling names must be unique.
func (b *Base) AddComponent(sub Component) error {
	if sub == nil {
		return b.errorf("add component", "", fmt.Errorf("%w: nil subcomponent", ErrConfiguration))
	}
	sb := sub.ComponentBase()
	if sb.self == nil {
		return b.errorf("add component", sb.name, fmt.Errorf("%w: subcomponent was not initialized", ErrConfiguration))
	}
	if b.tree == nil || !b.tree.finalizing {
		return b.errorf("add component", sb.EffectiveName(), fmt.Errorf("%w: subcomponents are added while finalizing properties", ErrNotReady))
	}
	if sb.tree == b.tree && sb.id != NoHandle {
		return b.errorf("add component", sb.EffectiveName(), fmt.Errorf("%w: already part of this tree", ErrConfiguration))
	}
	for _, h := range b.children {
		if b.tree.base(h).EffectiveName() == sb.EffectiveName() {
			return b.errorf("add component", sb.EffectiveName(), ErrDuplicateName)
		}
	}
	h := b.tree.add(sub, b.id)
	b.children = append(b.children, h)
	return nil
}

// populatePathNames assigns every node parent path + "/" + effective name.
// Arena order places every parent before its children.
func (t *tree) populatePathNames() {
	for i := range t.nodes {
		b := t.base(Handle(i))
		if b.parent == NoHandle {
			b.pathName = "/" + b.EffectiveName()
			continue
		}
		b.pathName = t.base(b.parent).pathName + "/" + b.EffectiveName()
	}
}

// initTraversal links every node to its preorder successor: the first child
// if it has one, otherwise whatever follows its parent's subtree.
func (t *tree) initTraversal() {
	t.link(rootHandle, NoHandle)
	t.traversal = true
}

func (t *tree) link(h, successor Handle) {
	b := t.base(h)
	if len(b.children) == 0 {
		b.next = successor
		return
	}
	b.next = b.children[0]
	for i, c := range b.children {
		succ := successor
		if i+1 < len(b.children) {
			succ = b.children[i+1]
		}
		t.link(c, succ)
	}
}

func (t *tree) subtreeEnd(b *Base) Handle {
	last := b
	for len(last.children) > 0 {
		last = t.base(last.children[len(last.children)-1])
	}
	return last.next
}

// descendants follows the preorder links below b, excluding b.
func (t *tree) descendants(b *Base) iter.Seq[*Base] {
	return func(yield func(*Base) bool) {
		end := t.subtreeEnd(b)
		for h := b.next; h != end && h != NoHandle; h = t.base(h).next {
			if !yield(t.base(h)) {
				return
			}
		}
	}
}

// all visits the root followed by every other node in preorder.
func (t *tree) all() iter.Seq[*Base] {
	return func(yield func(*Base) bool) {
		root := t.base(rootHandle)
		if !yield(root) {
			return
		}
		for b := range t.descendants(root) {
			if !yield(b) {
				return
			}
		}
	}
}

// List iterates the subtree below root in preorder, yielding the nodes of
// type T accepted by every filter. root itself is never yielded. Nothing is
// yielded before the tree's traversal has been initialized.
func List[T any](root Component, filters ...func(T) bool) iter.Seq[T] {
	return func(yield func(T) bool) {
		b := root.ComponentBase()
		if b.tree == nil || !b.tree.traversal {
			return
		}
	nodes:
		for n := range b.tree.descendants(b) {
			c, ok := n.self.(T)
			if !ok {
				continue
			}
			for _, f := range filters {
				if !f(c) {
					continue nodes
				}
			}
			if !yield(c) {
				return
			}
		}
	}
}

// Count reports how many nodes List would yield.
func Count[T any](root Component, filters ...func(T) bool) int {
	n := 0
	for range List[T](root, filters...) {
		n++
	}
	return n
}

func (t *tree) walk(from *Base, segs []string) (*Base, bool) {
	cur := from
	for _, seg := range segs {
		switch seg {
		case "", ".":
			continue
		case "..":
			if cur.parent == NoHandle {
				return nil, false
			}
			cur = t.base(cur.parent)
			continue
		}
		var next *Base
		for _, h := range cur.children {
			if c := t.base(h); c.EffectiveName() == seg {
				next = c
				break
			}
		}
		if next == nil {
			return nil, false
		}
		cur = next
	}
	return cur, true
}

// findPath resolves an absolute path, which must begin with the root's name,
// or a path relative to from.
func (t *tree) findPath(from *Base, path string) (*Base, bool) {
	if path == "" {
		return nil, false
	}
	segs := strings.Split(strings.Trim(path, "/"), "/")
	if strings.HasPrefix(path, "/") {
		root := t.base(rootHandle)
		if segs[0] != root.EffectiveName() {
			return nil, false
		}
		return t.walk(root, segs[1:])
	}
	return t.walk(from, segs)
}

// resolve looks path up from `from`, then falls back to a tree wide search for
// a unique node with that bare name accepted by match. Nodes rejected by
// match never make a name ambiguous.
func (t *tree) resolve(from *Base, path string, scope *Base, match func(Component) bool) (*Base, error) {
	if n, ok := t.findPath(from, path); ok && match(n.self) {
		return n, nil
	}
	name := strings.Trim(path, "/")
	if name == "" || strings.Contains(name, "/") {
		return nil, ErrNotFound
	}
	var found *Base
	count := 0
	consider := func(n *Base) {
		if n.EffectiveName() == name && match(n.self) {
			if found == nil {
				found = n
			}
			count++
		}
	}
	consider(scope)
	for n := range t.descendants(scope) {
		consider(n)
	}
	switch count {
	case 0:
		return nil, ErrNotFound
	case 1:
		return found, nil
	}
	return nil, fmt.Errorf("%w: %d components named %q", ErrAmbiguous, count, name)
}

// FindComponent looks up a node of type T by path relative to from (or an
// absolute path), falling back to a unique bare-name match of type T within
// from's subtree.
func FindComponent[T any](from Component, path string) (T, error) {
	var zero T
	b := from.ComponentBase()
	if b.tree == nil || !b.tree.traversal {
		return zero, b.notReady("find component", path, PhasePropertiesFinalized)
	}
	match := func(c Component) bool {
		_, ok := c.(T)
		return ok
	}
	n, err := b.tree.resolve(b, path, b, match)
	if err != nil {
		return zero, b.errorf("find component", path, err)
	}
	return n.self.(T), nil
}

// GetComponent is FindComponent for any node type.
func (b *Base) GetComponent(path string) (Component, error) {
	return FindComponent[Component](b.self, path)
}

// HasComponent reports whether path names a node.
func (b *Base) HasComponent(path string) bool {
	_, err := b.GetComponent(path)
	return err == nil
}

// RelativePathName renders this node's path relative to ancestor.
func (b *Base) RelativePathName(ancestor Component) string {
	prefix := ancestor.ComponentBase().pathName + "/"
	return strings.TrimPrefix(b.pathName, prefix)
}
