package store

import (
	rdata "github.com/goliatone/go-rendererdata"
	"github.com/google/uuid"
	"github.com/twmb/murmur3"
)

// ChildID derives the stable identifier of child within parent. The result
// is positive and never zero.
func ChildID(parent, child uuid.UUID) rdata.StableID {
	hasher := murmur3.New64()
	hasher.Write(parent[:])
	hasher.Write(child[:])
	id := int64(hasher.Sum64() &^ (1 << 63))
	if id == 0 {
		id = 1
	}
	return rdata.StableID(id)
}

// allocate returns ChildID unless another child already owns it, in which
// case the next free identifier is used.
func allocate(parent, child uuid.UUID, owner func(rdata.StableID) (uuid.UUID, bool)) rdata.StableID {
	id := ChildID(parent, child)
	for {
		existing, taken := owner(id)
		if !taken || existing == child {
			return id
		}
		id++
		if id <= 0 {
			id = 1
		}
	}
}
