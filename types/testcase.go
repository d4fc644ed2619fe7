package types

// TestCase is a named input/expected-output pair. A missing input and an empty
// input are different things, as are a missing and an empty expected output,
// so presence is tracked separately from the bytes.
type TestCase struct {
	Name      string
	Input     []byte
	HasInput  bool
	Output    []byte
	HasOutput bool
}

// NewTestCase returns a test case with both input and expected output present.
func NewTestCase(name string, input, output []byte) TestCase {
	return TestCase{
		Name:      name,
		Input:     input,
		HasInput:  true,
		Output:    output,
		HasOutput: true,
	}
}

// WithInput returns a copy of the test case with input set.
func (tc TestCase) WithInput(input []byte) TestCase {
	tc.Input = input
	tc.HasInput = true
	return tc
}

// WithOutput returns a copy of the test case with the expected output set.
func (tc TestCase) WithOutput(output []byte) TestCase {
	tc.Output = output
	tc.HasOutput = true
	return tc
}

// StdinBytes returns the bytes to feed the program, nil when the case has no input.
func (tc TestCase) StdinBytes() []byte {
	if !tc.HasInput {
		return nil
	}
	if tc.Input == nil {
		return []byte{}
	}
	return tc.Input
}
