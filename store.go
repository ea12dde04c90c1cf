package restive

import "context"

// Record is a single document stored in a Collection. Values follow
// encoding/json conventions (numbers are float64, nested objects are
// map[string]interface{}).
type Record map[string]interface{}

// Selector matches zero or more records in a Collection by exact field
// equality.
type Selector map[string]interface{}

// Collection is the data-store collaborator behind a resource. All
// operations are single-document atomic; the engine never coordinates
// multi-step transactions on top of them.
//
// FindOne returns (nil, nil) when no record matches.
type Collection interface {
	Name() string
	Find(ctx context.Context, sel Selector, fields ...string) ([]Record, error)
	FindOne(ctx context.Context, sel Selector, fields ...string) (Record, error)
	Insert(ctx context.Context, doc Record) (string, error)
	Update(ctx context.Context, sel Selector, doc Record) (int, error)
	Merge(ctx context.Context, sel Selector, doc Record) (int, error)
	Remove(ctx context.Context, sel Selector) (int, error)
}
