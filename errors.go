/*
Copyright © 2024 the GeoCDL authors.
This file is part of GeoCDL.

GeoCDL is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

GeoCDL is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with GeoCDL.  If not, see <http://www.gnu.org/licenses/>.
*/

package geocdl

import "fmt"

// ErrorKind identifies the class of a validation failure so that callers
// (in particular an HTTP layer) can map it to the right response without
// string-matching messages.
type ErrorKind int

const (
	ErrUnknownDataset ErrorKind = iota
	ErrBadDateSpec
	ErrMixedGrain
	ErrEndBeforeStart
	ErrInvalidMonth
	ErrInvalidDay
	ErrNoMaxForN
	ErrUnsupportedGrain
	ErrRangeUnavailable
	ErrInvalidMethod
	ErrGeomKindMismatch
	ErrCRSMismatch
	ErrMultiPolyUnsupported
	ErrUploadTooLarge
	ErrUploadNotParseable
	ErrUploadNotFound
	ErrUploadNotUnique
	ErrNoTiles
	ErrInvalidOutputFormat
)

var errKindNames = map[ErrorKind]string{
	ErrUnknownDataset:       "ERR_UNKNOWN_DATASET",
	ErrBadDateSpec:          "ERR_BAD_DATESPEC",
	ErrMixedGrain:           "ERR_MIXED_GRAIN",
	ErrEndBeforeStart:       "ERR_END_BEFORE_START",
	ErrInvalidMonth:         "ERR_INVALID_MONTH",
	ErrInvalidDay:           "ERR_INVALID_DAY",
	ErrNoMaxForN:            "ERR_NO_MAX_FOR_N",
	ErrUnsupportedGrain:     "ERR_UNSUPPORTED_GRAIN",
	ErrRangeUnavailable:     "ERR_RANGE_UNAVAILABLE",
	ErrInvalidMethod:        "ERR_INVALID_METHOD",
	ErrGeomKindMismatch:     "ERR_GEOM_KIND_MISMATCH",
	ErrCRSMismatch:          "ERR_CRS_MISMATCH",
	ErrMultiPolyUnsupported: "ERR_MULTI_POLY_UNSUPPORTED",
	ErrUploadTooLarge:       "ERR_UPLOAD_TOO_LARGE",
	ErrUploadNotParseable:   "ERR_UPLOAD_NOT_PARSEABLE",
	ErrUploadNotFound:       "ERR_UPLOAD_NOT_FOUND",
	ErrUploadNotUnique:      "ERR_UPLOAD_NOT_UNIQUE",
	ErrNoTiles:              "ERR_NO_TILES",
	ErrInvalidOutputFormat:  "ERR_INVALID_OUTPUT_FORMAT",
}

func (k ErrorKind) String() string {
	if s, ok := errKindNames[k]; ok {
		return s
	}
	return "ERR_UNKNOWN"
}

// Error is the single typed sum used for every validation-class failure
// the core raises. All of these are 400-class failures for an HTTP caller;
// internal I/O failures are returned as plain wrapped errors instead.
type Error struct {
	Kind ErrorKind
	Msg  string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

// newErr builds an *Error with a formatted message.
func newErr(kind ErrorKind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// NewError is the exported form of newErr, for collaborators outside this
// package (e.g. cmd/geocdlserver's query-parameter parsing) that need to
// raise the same typed validation errors the core does.
func NewError(kind ErrorKind, format string, args ...interface{}) *Error {
	return newErr(kind, format, args...)
}

// IsKind reports whether err is a *geocdl.Error of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	e, ok := err.(*Error)
	return ok && e.Kind == kind
}
