package quiz

import "errors"

var (
	ErrEmptyCatalog     = errors.New("career catalog has no profiles")
	ErrInvalidProfile   = errors.New("career profile requires a title and an industry")
	ErrDuplicateProfile = errors.New("duplicate career profile title")
	ErrUnknownIndustry  = errors.New("no career profile for industry")
)
