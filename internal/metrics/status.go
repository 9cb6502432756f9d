package metrics

import (
	"sort"
	"strconv"

	"github.com/torosent/repeater/internal/repetition"
	"github.com/torosent/repeater/internal/request"
)

// StatusBucket is the number of iterations that ended with Code over Protocol.
// Code is an HTTP status for responses or a failure kind otherwise.
type StatusBucket struct {
	Protocol string
	Code     string
	Count    int
}

// Successful reports whether the bucket holds successful responses.
func (b StatusBucket) Successful() bool {
	n, err := strconv.Atoi(b.Code)
	return err == nil && repetition.IsSuccessful(request.Protocol(b.Protocol), n)
}

// FlattenStatusBuckets converts a protocol->code map into rows sorted by
// descending count, then protocol and code.
func FlattenStatusBuckets(buckets map[string]map[string]int) []StatusBucket {
	var rows []StatusBucket
	for protocol, codes := range buckets {
		for code, count := range codes {
			rows = append(rows, StatusBucket{Protocol: protocol, Code: code, Count: count})
		}
	}
	sort.Slice(rows, func(i, j int) bool {
		a, b := rows[i], rows[j]
		switch {
		case a.Count != b.Count:
			return a.Count > b.Count
		case a.Protocol != b.Protocol:
			return a.Protocol < b.Protocol
		default:
			return a.Code < b.Code
		}
	})
	return rows
}
