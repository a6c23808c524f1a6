package siteconfig

import "encoding/json"

// Tree is the merged document in generic JSON form. It is what the
// Synchronizer holds and writes back, so keys Document does not model
// survive every round trip; Document is only a typed view of it.
type Tree map[string]interface{}

// DefaultTree is Defaults in generic form.
func DefaultTree() Tree { return TreeOf(Defaults()) }

// TreeOf converts a typed document.
func TreeOf(d Document) Tree {
	v, err := toGeneric(d)
	if err != nil {
		return Tree{}
	}
	m, _ := v.(map[string]interface{})
	return Tree(m)
}

// Clone returns a deep copy.
func (t Tree) Clone() Tree {
	out := make(Tree, len(t))
	for k, v := range t {
		out[k] = deepCopy(v)
	}
	return out
}

// Document decodes the typed view.
func (t Tree) Document() (Document, error) {
	var d Document
	b, err := json.Marshal(t)
	if err != nil {
		return d, err
	}
	err = json.Unmarshal(b, &d)
	return d, err
}

func deepCopy(v interface{}) interface{} {
	switch v := v.(type) {
	case map[string]interface{}:
		out := make(map[string]interface{}, len(v))
		for k, e := range v {
			out[k] = deepCopy(e)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(v))
		for i, e := range v {
			out[i] = deepCopy(e)
		}
		return out
	}
	return v
}
