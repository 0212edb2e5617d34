package addrspace

import "i2cgui/interfaces"

var _ interfaces.Observable = (*Cell)(nil)

// Cell is an observable text value: one pending register byte or one decoded field.
// Observers are notified only when the text actually changes.
type Cell struct {
	key string
	// address is -1 for decoded fields.
	address int
	text    string

	observers interfaces.ObserverList
}

func newCell(key string, address int, text string) *Cell {
	return &Cell{key: key, address: address, text: text}
}

func (c *Cell) Key() string  { return c.key }
func (c *Cell) Text() string { return c.text }
func (c *Cell) Address() int { return c.address }

// Set stores text and notifies observers; it reports whether the value changed.
func (c *Cell) Set(text string) bool {
	if c.text == text {
		return false
	}
	c.text = text
	c.observers.Notify(c)
	return true
}

func (c *Cell) Subscribe(observer interfaces.Observer)   { c.observers.Subscribe(observer) }
func (c *Cell) Unsubscribe(observer interfaces.Observer) { c.observers.Unsubscribe(observer) }
