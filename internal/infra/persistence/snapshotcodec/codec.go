// Package snapshotcodec maps a memory.Snapshot onto the named buckets stored by
// the sqlite and postgres backends.
package snapshotcodec

import (
	"encoding/json"
	"fmt"

	"icetrace/internal/infra/persistence/memory"
)

// Buckets lists the bucket names in the order they are written.
var Buckets = []string{
	"companies",
	"machines",
	"recipes",
	"recipe_steps",
	"measure_constraints",
	"products",
	"phases",
	"measures",
	"counters",
	"journal",
}

func target(snapshot *memory.Snapshot, bucket string) (any, bool) {
	switch bucket {
	case "companies":
		return &snapshot.Companies, true
	case "machines":
		return &snapshot.Machines, true
	case "recipes":
		return &snapshot.Recipes, true
	case "recipe_steps":
		return &snapshot.RecipeSteps, true
	case "measure_constraints":
		return &snapshot.MeasureConstraints, true
	case "products":
		return &snapshot.Products, true
	case "phases":
		return &snapshot.Phases, true
	case "measures":
		return &snapshot.Measures, true
	case "counters":
		return &snapshot.Counters, true
	case "journal":
		return &snapshot.Journal, true
	default:
		return nil, false
	}
}

// Encode returns the JSON payload for every bucket.
func Encode(snapshot memory.Snapshot) (map[string][]byte, error) {
	out := make(map[string][]byte, len(Buckets))
	for _, bucket := range Buckets {
		src, _ := target(&snapshot, bucket)
		data, err := json.Marshal(src)
		if err != nil {
			return nil, fmt.Errorf("encode %s: %w", bucket, err)
		}
		out[bucket] = data
	}
	return out, nil
}

// Decode fills snapshot from a single bucket payload. Unknown buckets are ignored
// so older databases with extra rows still load.
func Decode(snapshot *memory.Snapshot, bucket string, payload []byte) error {
	if len(payload) == 0 {
		return nil
	}
	dst, ok := target(snapshot, bucket)
	if !ok {
		return nil
	}
	if err := json.Unmarshal(payload, dst); err != nil {
		return fmt.Errorf("decode %s: %w", bucket, err)
	}
	return nil
}
