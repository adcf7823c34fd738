package sender

import "context"

// Item is one frame handed to the fragmenter.
type Item struct {
	Tag     uint32
	Payload []byte
}

// Source produces items on demand, one per Next call.
//
// Next returns ok == false with a nil error once the source is exhausted; any
// non-nil error aborts the stream. A Source is single-use and is never
// restarted by the fragmenter.
type Source interface {
	Next(ctx context.Context) (item Item, ok bool, err error)
}

// SourceFunc adapts a plain function to Source.
type SourceFunc func(ctx context.Context) (Item, bool, error)

func (f SourceFunc) Next(ctx context.Context) (Item, bool, error) {
	return f(ctx)
}

type sliceSource struct {
	items []Item
	next  int
}

// SliceSource yields items in order and then reports exhaustion.
func SliceSource(items ...Item) Source {
	return &sliceSource{items: items}
}

func (s *sliceSource) Next(ctx context.Context) (Item, bool, error) {
	if err := ctx.Err(); err != nil {
		return Item{}, false, err
	}
	if s.next >= len(s.items) {
		return Item{}, false, nil
	}
	item := s.items[s.next]
	s.next++
	return item, true, nil
}
