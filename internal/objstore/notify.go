package objstore

import "context"

// Event announces that an object was created. Notifications are delivered
// at least once; handlers must tolerate duplicates.
type Event struct {
	Bucket string
	Key    string
}

// Source delivers object-created events to a handler. A message is considered
// handled, and is removed from the source, only when the handler returns nil;
// otherwise it is redelivered per the source's retry policy.
type Source interface {
	Listen(ctx context.Context, handle func(context.Context, Event) error) error
}

// ChannelSource is an in-process Source for tests. Events pushed onto C are
// delivered in order; Listen returns when C is closed or the context ends.
type ChannelSource struct {
	C chan Event
}

func NewChannelSource() *ChannelSource {
	return &ChannelSource{C: make(chan Event, 16)}
}

func (s *ChannelSource) Listen(ctx context.Context, handle func(context.Context, Event) error) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-s.C:
			if !ok {
				return nil
			}
			if err := handle(ctx, ev); err != nil {
				return err
			}
		}
	}
}

var _ Source = (*ChannelSource)(nil)
