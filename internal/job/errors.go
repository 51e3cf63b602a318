package job

import "fmt"

type ErrValidation struct {
	error
}

func NewErrValidation(format string, args ...any) *ErrValidation {
	return &ErrValidation{fmt.Errorf(format, args...)}
}

func NewErrNoFile() *ErrValidation {
	return NewErrValidation("Please select a file first")
}

func NewErrNoAnnotationType() *ErrValidation {
	return NewErrValidation("Please select an annotation type")
}

func NewErrInvalidFileType() *ErrValidation {
	return NewErrValidation("Invalid file type. Please upload a VCF or CSV file.")
}
