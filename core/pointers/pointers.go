// Package pointers helps with the optional fields of request and response bodies
package pointers

import "github.com/relabs-tech/plantparenthood/core/model"

// SafeString returns the value from ptr or "" if the pointer is nil
func SafeString(ptr *string) string {
	if ptr != nil {
		return *ptr
	}
	return ""
}

// StringPtr returns a pointer to the string passed as parameter
func StringPtr(str string) *string {
	return &str
}

// NonEmpty returns nil for nil pointers and pointers to the empty string
func NonEmpty(ptr *string) *string {
	if ptr == nil || *ptr == "" {
		return nil
	}
	return ptr
}

// DatePtr returns a pointer to a copy of d
func DatePtr(d model.Date) *model.Date {
	return &d
}
