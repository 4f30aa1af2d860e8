package garm

// ErrorTreeNode is one level of an error tree. Errors holds the failures
// recorded exactly at this node; Descendants index deeper nodes by the next
// path segment.
type ErrorTreeNode struct {
	Errors      ErrorList
	Descendants map[any]*ErrorTreeNode
}

func newErrorTreeNode() *ErrorTreeNode {
	return &ErrorTreeNode{Descendants: map[any]*ErrorTreeNode{}}
}

// Fetch descends along path and returns the node there, or nil when no error
// was recorded beneath it.
func (n *ErrorTreeNode) Fetch(path ...any) *ErrorTreeNode {
	node := n
	for _, seg := range path {
		if node == nil {
			return nil
		}
		node = node.Descendants[seg]
	}
	return node
}

// FetchErrors returns the errors recorded exactly at path.
func (n *ErrorTreeNode) FetchErrors(path ...any) ErrorList {
	node := n.Fetch(path...)
	if node == nil {
		return nil
	}
	return node.Errors
}

func (n *ErrorTreeNode) add(path []any, err *ValidationError) {
	node := n
	for _, seg := range path {
		child, ok := node.Descendants[seg]
		if !ok {
			child = newErrorTreeNode()
			node.Descendants[seg] = child
		}
		node = child
	}
	node.Errors = append(node.Errors, err)
}

// ErrorTree projects a flat error list into a tree indexed by path. Group
// errors contribute their children at the children's own paths.
type ErrorTree struct {
	Root *ErrorTreeNode
}

// Fetch descends from the root along path.
func (t *ErrorTree) Fetch(path ...any) *ErrorTreeNode { return t.Root.Fetch(path...) }

// FetchErrors returns the errors recorded exactly at path.
func (t *ErrorTree) FetchErrors(path ...any) ErrorList { return t.Root.FetchErrors(path...) }

func buildErrorTree(errors ErrorList, pathOf func(*ValidationError) []any) *ErrorTree {
	tree := &ErrorTree{Root: newErrorTreeNode()}
	var insert func(ErrorList)
	insert = func(list ErrorList) {
		for _, err := range list {
			tree.Root.add(pathOf(err), err)
			if err.IsGroup() {
				insert(err.ChildErrors())
			}
		}
	}
	insert(errors)
	return tree
}

// newDocumentErrorTree indexes errors by their document paths.
func newDocumentErrorTree(errors ErrorList) *ErrorTree {
	return buildErrorTree(errors, func(e *ValidationError) []any { return e.DocumentPath })
}

// newSchemaErrorTree indexes errors by their schema paths.
func newSchemaErrorTree(errors ErrorList) *ErrorTree {
	return buildErrorTree(errors, func(e *ValidationError) []any { return e.SchemaPath })
}
