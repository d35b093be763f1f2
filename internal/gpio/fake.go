package gpio

// FakePin is a test double whose level is set directly by the test.
type FakePin struct {
	// High is the level returned by Read. A new FakePin idles high
	// like a pulled-up input.
	High bool

	// Reads counts calls to Read.
	Reads int

	// Closed tracks if Close was called
	Closed bool

	// ReadError, if set, will be returned by Read()
	ReadError error
}

// NewFakePin creates a FakePin at the released (high) level.
func NewFakePin() *FakePin {
	return &FakePin{High: true}
}

// Press drives the pin low.
func (f *FakePin) Press() { f.High = false }

// Release drives the pin high.
func (f *FakePin) Release() { f.High = true }

// Read returns the current level.
func (f *FakePin) Read() (bool, error) {
	f.Reads++
	if f.ReadError != nil {
		return false, f.ReadError
	}
	return f.High, nil
}

// Close marks the pin as closed.
func (f *FakePin) Close() error {
	f.Closed = true
	return nil
}
