package scene

// DisposeStats counts the resources released by DisposeTree.
type DisposeStats struct {
	Geometries int
	Materials  int
	Textures   int
}

// DisposeTree disposes every geometry, material and texture reachable from
// root. Textures are found through the manifest slots of each material's kind.
// Resources shared between meshes are disposed once.
func DisposeTree(root *Node) DisposeStats {
	var st DisposeStats
	if root == nil {
		return st
	}
	seen := make(map[uint64]bool)
	once := func(r Disposable) bool {
		if r == nil || seen[r.ID()] {
			return false
		}
		seen[r.ID()] = true
		r.Dispose()
		return true
	}

	root.Traverse(func(n *Node) {
		if n.Mesh == nil {
			return
		}
		if g := n.Mesh.Geometry; g != nil && once(g) {
			st.Geometries++
		}
		for _, m := range n.Mesh.Materials {
			if m == nil || seen[m.ID()] {
				continue
			}
			seen[m.ID()] = true
			m.Dispose()
			st.Materials++
			for _, tex := range m.Textures() {
				if once(tex) {
					st.Textures++
				}
			}
		}
	})
	return st
}
