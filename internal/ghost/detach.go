package ghost

// Detach holds an owned value that its owner can lend out for the duration
// of one nested call. While lent, the slot is empty and any access faults.
type Detach[T any] struct {
	name     string
	value    T
	detached bool
}

func NewDetach[T any](name string, value T) *Detach[T] {
	return &Detach[T]{name: name, value: value}
}

// Get returns the held value. Calling it while detached is a logic fault.
func (d *Detach[T]) Get() T {
	if d.detached {
		fault(d.name + " accessed while detached")
	}
	return d.value
}

// Set replaces the held value. Calling it while detached is a logic fault.
func (d *Detach[T]) Set(value T) {
	if d.detached {
		fault(d.name + " replaced while detached")
	}
	d.value = value
}

func (d *Detach[T]) Attached() bool {
	return !d.detached
}

// With detaches the value, runs fn with it, and reattaches before returning,
// including when fn panics.
func (d *Detach[T]) With(fn func(T) error) error {
	_, err := DetachCall(d, func(v T) (struct{}, error) {
		return struct{}{}, fn(v)
	})
	return err
}

// DetachCall is With for calls that produce a result.
func DetachCall[T, R any](d *Detach[T], fn func(T) (R, error)) (R, error) {
	if d.detached {
		fault(d.name + " detached twice")
	}
	v := d.value
	var zero T
	d.value = zero
	d.detached = true
	defer func() {
		d.value = v
		d.detached = false
	}()
	return fn(v)
}

// ProcessGuard faults when one node's process logic is entered while it is
// already running.
type ProcessGuard struct {
	name   string
	active bool
}

func NewProcessGuard(name string) ProcessGuard {
	return ProcessGuard{name: name}
}

// Enter marks the node as processing and returns the matching exit.
//
//	defer a.guard.Enter()()
func (g *ProcessGuard) Enter() func() {
	if g.active {
		name := g.name
		if name == "" {
			name = "actor"
		}
		fault(name + " process re-entered")
	}
	g.active = true
	return func() {
		g.active = false
	}
}

func (g *ProcessGuard) Active() bool {
	return g.active
}
