package analytics

// orderedMap remembers the order in which keys were first inserted.
type orderedMap[K comparable, V any] struct {
	keys   []K
	values map[K]V
}

func newOrderedMap[K comparable, V any]() *orderedMap[K, V] {
	return &orderedMap[K, V]{values: make(map[K]V)}
}

func (m *orderedMap[K, V]) Get(key K) (V, bool) {
	v, ok := m.values[key]
	return v, ok
}

// GetOrCreate returns the value for key, inserting the result of create when missing.
func (m *orderedMap[K, V]) GetOrCreate(key K, create func() V) V {
	if v, ok := m.values[key]; ok {
		return v
	}
	v := create()
	m.keys = append(m.keys, key)
	m.values[key] = v
	return v
}

func (m *orderedMap[K, V]) Set(key K, value V) {
	if _, ok := m.values[key]; !ok {
		m.keys = append(m.keys, key)
	}
	m.values[key] = value
}

func (m *orderedMap[K, V]) Len() int {
	return len(m.keys)
}

// Values returns the values in insertion order.
func (m *orderedMap[K, V]) Values() []V {
	out := make([]V, 0, len(m.keys))
	for _, k := range m.keys {
		out = append(out, m.values[k])
	}
	return out
}

func (m *orderedMap[K, V]) Keys() []K {
	out := make([]K, len(m.keys))
	copy(out, m.keys)
	return out
}
