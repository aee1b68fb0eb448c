package sync

import (
	"strconv"

	"github.com/emirpasic/gods/maps/treemap"
	"github.com/emirpasic/gods/utils"
	"github.com/spaolacci/murmur3"
)

// Virtual nodes per stripe on the hash ring
const defaultReplicas = 200

// ring consistently maps keys onto stripe indexes [0, stripes)
type ring struct {
	points *treemap.Map

	// Stripe at the lowest point, used when a key hashes past the last one
	first int
}

func newRing(stripes, replicas int) *ring {
	points := treemap.NewWith(utils.Int64Comparator)
	for stripe := 0; stripe < stripes; stripe++ {
		name := []byte("stripe" + strconv.Itoa(stripe))
		for replica := 0; replica < replicas; replica++ {
			point := murmur3.Sum64WithSeed(name, uint32(replica))
			points.Put(int64(point), stripe)
		}
	}

	r := &ring{points: points}
	if _, first := points.Min(); first != nil {
		r.first = first.(int)
	}
	return r
}

func (r *ring) stripe(key []byte) int {
	_, stripe := r.points.Ceiling(int64(murmur3.Sum64(key)))
	if stripe == nil {
		return r.first
	}
	return stripe.(int)
}
