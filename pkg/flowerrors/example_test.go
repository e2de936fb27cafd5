package flowerrors_test

import (
	"errors"
	"fmt"
	"io"

	"github.com/ajitpratap0/parquetflow/pkg/flowerrors"
)

// Example demonstrates basic error creation.
func Example() {
	err := flowerrors.New(flowerrors.CodeInvalidArgument, "batch_size must be positive").
		WithDetail("batch_size", 0)

	fmt.Println(err.Error())

	// Output:
	// invalid_argument: batch_size must be positive
}

// ExampleWrap shows how I/O failures are classified.
func ExampleWrap() {
	err := flowerrors.Wrap(io.ErrShortWrite, flowerrors.CodeIO, "write column chunk").
		WithDetail("column", "price")

	fmt.Println(flowerrors.CodeOf(err))
	fmt.Println(errors.Is(err, io.ErrShortWrite))

	// Output:
	// io
	// true
}

// ExampleIsRecoverable shows the backpressure check a producer performs.
func ExampleIsRecoverable() {
	fmt.Println(flowerrors.IsRecoverable(flowerrors.ErrFull))
	fmt.Println(flowerrors.IsRecoverable(flowerrors.New(flowerrors.CodeSchema, "schema not set")))

	// Output:
	// true
	// false
}
