package bufferqueue

// Query returns a property of the queue.
//
// Width, height and format are the pool defaults. The consumer acquires
// buffers on its own and never runs behind, so min undequeued buffers,
// buffer age, consumer running behind and consumer usage bits are 0.
// Sticky transform, default dataspace and unknown keys fail with
// ErrInvalidArgument.
func (p *Producer) Query(key QueryKey) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	var value int
	switch key {
	case QueryMinUndequeuedBuffers, QueryBufferAge, QueryConsumerRunningBehind, QueryConsumerUsageBits:
		value = 0
	case QueryWidth:
		value = int(p.pool.Defaults().Width)
	case QueryHeight:
		value = int(p.pool.Defaults().Height)
	case QueryFormat:
		value = int(p.pool.Defaults().Format)
	default:
		return 0, invalidArgf("query: unsupported key %s", key)
	}

	Logger().Debug("bufferqueue: query", "key", key.String(), "value", value)
	return value, nil
}
