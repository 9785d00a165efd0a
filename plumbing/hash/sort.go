package hash

import (
	"bytes"
	"sort"
)

// Sort sorts a slice of ObjectIDs in increasing byte order.
func Sort(ids []ObjectID) {
	sort.Sort(ObjectIDs(ids))
}

// ObjectIDs attaches the methods of sort.Interface to []ObjectID, sorting
// in increasing order.
type ObjectIDs []ObjectID

func (p ObjectIDs) Len() int           { return len(p) }
func (p ObjectIDs) Less(i, j int) bool { return bytes.Compare(p[i].Bytes(), p[j].Bytes()) < 0 }
func (p ObjectIDs) Swap(i, j int)      { p[i], p[j] = p[j], p[i] }
