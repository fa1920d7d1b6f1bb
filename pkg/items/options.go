package items

// Option customizes an item declaration at construction time.
type Option func(*Item)

// WithNeeds adds hard dependencies to the item.
func WithNeeds(ids ...ID) Option {
	return func(it *Item) {
		it.Needs = append(it.Needs, ids...)
	}
}

// WithTriggers registers canned actions to fire when the item changes.
func WithTriggers(ids ...ID) Option {
	return func(it *Item) {
		it.Triggers = append(it.Triggers, ids...)
	}
}

// WithInteractive requires confirmation before the item is fixed.
func WithInteractive() Option {
	return func(it *Item) {
		it.Interactive = true
	}
}
