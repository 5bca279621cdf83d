package orderbook

import "github.com/rishav/order-matching-engine/internal/orders"

// priceLevelTree is the per-side price ladder: a red-black tree keyed by
// price that gives a book O(log P) insert/delete over P distinct price
// levels and O(1) access to the best price via a cached pointer. Each
// OrderBook owns two of these — one for bids, one for asks — rather than
// a single tree ordered by side, because bids want the highest price
// first and asks want the lowest, and a cached "best" pointer only pays
// off when each tree only ever walks in one direction.
//
// The node value is a *PriceLevel, not a resting order: orders at the
// same price share one node and queue up inside it (see pricelevel.go).
// So this tree never grows past the number of distinct prices quoted on
// its side, which for a liquid book is far smaller than the number of
// resting orders.
type nodeColor bool

const (
	red   nodeColor = true
	black nodeColor = false
)

// levelNode is one price's slot in the ladder.
type levelNode struct {
	price  orders.Price
	level  *PriceLevel
	color  nodeColor
	left   *levelNode
	right  *levelNode
	parent *levelNode
}

// priceLevelTree is a red-black tree keyed by price.
type priceLevelTree struct {
	root    *levelNode
	size    int
	lowest  *levelNode // cached in-order minimum, O(1) lookup
	highest *levelNode // cached in-order maximum, O(1) lookup

	// descending flips which cached node Best() returns: bids want their
	// highest price treated as best, asks want their lowest.
	descending bool
}

// newPriceLevelTree builds an empty ladder. descending selects which end
// of the price range Best() serves: true for a bid side (best = highest
// price), false for an ask side (best = lowest price).
func newPriceLevelTree(descending bool) *priceLevelTree {
	return &priceLevelTree{
		descending: descending,
	}
}

// Size returns the number of distinct price levels in the ladder.
func (t *priceLevelTree) Size() int {
	return t.size
}

// IsEmpty reports whether the ladder has no price levels at all.
func (t *priceLevelTree) IsEmpty() bool {
	return t.size == 0
}

// Best returns the price level an aggressor on the opposite side would
// match against first: the lowest ask, or the highest bid. O(1), served
// from the cached lowest/highest pointer rather than a tree walk.
func (t *priceLevelTree) Best() *PriceLevel {
	node := t.lowest
	if t.descending {
		node = t.highest
	}
	if node == nil {
		return nil
	}
	return node.level
}

// Get returns the price level sitting at price, or nil if the ladder has
// no orders resting at that exact price. O(log P).
func (t *priceLevelTree) Get(price orders.Price) *PriceLevel {
	node := t.search(price)
	if node == nil {
		return nil
	}
	return node.level
}

// Insert adds a new price level to the ladder, or replaces the level
// already resident at that price if one exists. O(log P).
func (t *priceLevelTree) Insert(level *PriceLevel) {
	newNode := &levelNode{
		price: level.Price,
		level: level,
		color: red,
	}

	if t.root == nil {
		newNode.color = black
		t.root = newNode
		t.lowest = newNode
		t.highest = newNode
		t.size = 1
		return
	}

	var parent *levelNode
	current := t.root
	for current != nil {
		parent = current
		switch {
		case level.Price < current.price:
			current = current.left
		case level.Price > current.price:
			current = current.right
		default:
			// A level already exists at this exact price: the caller
			// (OrderBook.Enqueue) only calls Insert for a price it just
			// confirmed was missing, so this path is unreachable in
			// practice, but replacing rather than ignoring keeps the
			// tree consistent with whatever level object is live.
			current.level = level
			return
		}
	}

	newNode.parent = parent
	if level.Price < parent.price {
		parent.left = newNode
	} else {
		parent.right = newNode
	}
	t.size++

	if t.lowest == nil || level.Price < t.lowest.price {
		t.lowest = newNode
	}
	if t.highest == nil || level.Price > t.highest.price {
		t.highest = newNode
	}

	t.insertFixup(newNode)
}

// Delete removes the price level at price, if one is resident. O(log P).
func (t *priceLevelTree) Delete(price orders.Price) {
	node := t.search(price)
	if node == nil {
		return
	}

	t.size--

	if node == t.lowest {
		t.lowest = t.successor(node)
	}
	if node == t.highest {
		t.highest = t.predecessor(node)
	}

	t.deleteNode(node)
}

// ForEach walks every price level from best to worst and calls fn with
// each one, stopping early the first time fn returns false. Ascending
// trees (asks) walk low to high; descending trees (bids) walk high to
// low — either way the caller sees best-first order.
func (t *priceLevelTree) ForEach(fn func(*PriceLevel) bool) {
	if t.descending {
		t.reverseInOrder(t.root, fn)
	} else {
		t.inOrder(t.root, fn)
	}
}

// search walks down from the root comparing against price, the standard
// BST lookup that every other operation here builds on.
func (t *priceLevelTree) search(price orders.Price) *levelNode {
	current := t.root
	for current != nil {
		switch {
		case price < current.price:
			current = current.left
		case price > current.price:
			current = current.right
		default:
			return current
		}
	}
	return nil
}

func (t *priceLevelTree) inOrder(node *levelNode, fn func(*PriceLevel) bool) bool {
	if node == nil {
		return true
	}
	if !t.inOrder(node.left, fn) {
		return false
	}
	if !fn(node.level) {
		return false
	}
	return t.inOrder(node.right, fn)
}

func (t *priceLevelTree) reverseInOrder(node *levelNode, fn func(*PriceLevel) bool) bool {
	if node == nil {
		return true
	}
	if !t.reverseInOrder(node.right, fn) {
		return false
	}
	if !fn(node.level) {
		return false
	}
	return t.reverseInOrder(node.left, fn)
}

// successor returns node's in-order successor, used to refresh the
// lowest-price cache when the current lowest node is deleted.
func (t *priceLevelTree) successor(node *levelNode) *levelNode {
	if node.right != nil {
		current := node.right
		for current.left != nil {
			current = current.left
		}
		return current
	}
	parent := node.parent
	for parent != nil && node == parent.right {
		node = parent
		parent = parent.parent
	}
	return parent
}

// predecessor returns node's in-order predecessor, used to refresh the
// highest-price cache when the current highest node is deleted.
func (t *priceLevelTree) predecessor(node *levelNode) *levelNode {
	if node.left != nil {
		current := node.left
		for current.right != nil {
			current = current.right
		}
		return current
	}
	parent := node.parent
	for parent != nil && node == parent.left {
		node = parent
		parent = parent.parent
	}
	return parent
}

// --- balancing internals below: standard CLRS red-black rebalancing,
// unchanged by the price-level domain above it. ---

func (t *priceLevelTree) rotateLeft(x *levelNode) {
	y := x.right
	x.right = y.left
	if y.left != nil {
		y.left.parent = x
	}
	y.parent = x.parent
	if x.parent == nil {
		t.root = y
	} else if x == x.parent.left {
		x.parent.left = y
	} else {
		x.parent.right = y
	}
	y.left = x
	x.parent = y
}

func (t *priceLevelTree) rotateRight(x *levelNode) {
	y := x.left
	x.left = y.right
	if y.right != nil {
		y.right.parent = x
	}
	y.parent = x.parent
	if x.parent == nil {
		t.root = y
	} else if x == x.parent.right {
		x.parent.right = y
	} else {
		x.parent.left = y
	}
	y.right = x
	x.parent = y
}

// insertFixup restores the red-black invariants after a red leaf was
// spliced in by Insert, walking up toward the root at most O(log P)
// steps, recoloring where the uncle is red and rotating where it is not.
func (t *priceLevelTree) insertFixup(z *levelNode) {
	for z.parent != nil && z.parent.color == red {
		if z.parent == z.parent.parent.left {
			uncle := z.parent.parent.right
			if uncle != nil && uncle.color == red {
				z.parent.color = black
				uncle.color = black
				z.parent.parent.color = red
				z = z.parent.parent
			} else {
				if z == z.parent.right {
					z = z.parent
					t.rotateLeft(z)
				}
				z.parent.color = black
				z.parent.parent.color = red
				t.rotateRight(z.parent.parent)
			}
		} else {
			uncle := z.parent.parent.left
			if uncle != nil && uncle.color == red {
				z.parent.color = black
				uncle.color = black
				z.parent.parent.color = red
				z = z.parent.parent
			} else {
				if z == z.parent.left {
					z = z.parent
					t.rotateRight(z)
				}
				z.parent.color = black
				z.parent.parent.color = red
				t.rotateLeft(z.parent.parent)
			}
		}
	}
	t.root.color = black
}

// transplant splices the subtree rooted at v into u's place in the
// parent link structure, leaving u's own left/right pointers untouched
// (deleteNode is responsible for those).
func (t *priceLevelTree) transplant(u, v *levelNode) {
	if u.parent == nil {
		t.root = v
	} else if u == u.parent.left {
		u.parent.left = v
	} else {
		u.parent.right = v
	}
	if v != nil {
		v.parent = u.parent
	}
}

// deleteNode removes z from the ladder, handling the three standard BST
// deletion cases (no children, one child, two children) before restoring
// red-black balance if a black node was actually removed.
func (t *priceLevelTree) deleteNode(z *levelNode) {
	var x, xParent *levelNode
	y := z
	yOriginalColor := y.color

	switch {
	case z.left == nil:
		x = z.right
		xParent = z.parent
		t.transplant(z, z.right)
	case z.right == nil:
		x = z.left
		xParent = z.parent
		t.transplant(z, z.left)
	default:
		y = z.right
		for y.left != nil {
			y = y.left
		}
		yOriginalColor = y.color
		x = y.right
		if y.parent == z {
			xParent = y
		} else {
			xParent = y.parent
			t.transplant(y, y.right)
			y.right = z.right
			y.right.parent = y
		}
		t.transplant(z, y)
		y.left = z.left
		y.left.parent = y
		y.color = z.color
	}

	if yOriginalColor == black {
		t.deleteFixup(x, xParent)
	}
}

// deleteFixup restores the red-black invariants after deleteNode removed
// a black node, pushing the resulting "double black" up through rotations
// and recolorings until it reaches the root or a red node absorbs it.
// xParent is threaded through explicitly because x itself may be nil (a
// removed leaf has no node to hang the parent pointer off of).
func (t *priceLevelTree) deleteFixup(x *levelNode, xParent *levelNode) {
	for x != t.root && (x == nil || x.color == black) {
		if x == xParent.left {
			sibling := xParent.right
			if sibling != nil && sibling.color == red {
				sibling.color = black
				xParent.color = red
				t.rotateLeft(xParent)
				sibling = xParent.right
			}
			if sibling == nil || ((sibling.left == nil || sibling.left.color == black) && (sibling.right == nil || sibling.right.color == black)) {
				if sibling != nil {
					sibling.color = red
				}
				x = xParent
				xParent = x.parent
			} else {
				if sibling.right == nil || sibling.right.color == black {
					if sibling.left != nil {
						sibling.left.color = black
					}
					sibling.color = red
					t.rotateRight(sibling)
					sibling = xParent.right
				}
				sibling.color = xParent.color
				xParent.color = black
				if sibling.right != nil {
					sibling.right.color = black
				}
				t.rotateLeft(xParent)
				x = t.root
			}
		} else {
			sibling := xParent.left
			if sibling != nil && sibling.color == red {
				sibling.color = black
				xParent.color = red
				t.rotateRight(xParent)
				sibling = xParent.left
			}
			if sibling == nil || ((sibling.right == nil || sibling.right.color == black) && (sibling.left == nil || sibling.left.color == black)) {
				if sibling != nil {
					sibling.color = red
				}
				x = xParent
				xParent = x.parent
			} else {
				if sibling.left == nil || sibling.left.color == black {
					if sibling.right != nil {
						sibling.right.color = black
					}
					sibling.color = red
					t.rotateLeft(sibling)
					sibling = xParent.left
				}
				sibling.color = xParent.color
				xParent.color = black
				if sibling.left != nil {
					sibling.left.color = black
				}
				t.rotateRight(xParent)
				x = t.root
			}
		}
	}
	if x != nil {
		x.color = black
	}
}
