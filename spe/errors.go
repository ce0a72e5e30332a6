package spe

import "errors"

// Structural errors abort the whole decode: there is no valid partial frame
// layout once the byte geometry is in doubt.
var (
	ErrBadMagic        = errors.New("header magic fields do not match an SPE file")
	ErrUnknownVersion  = errors.New("unrecognized file header version")
	ErrBadDimensions   = errors.New("invalid frame dimensions")
	ErrBadROITable     = errors.New("invalid ROI table")
	ErrBadPixelType    = errors.New("unsupported pixel datatype")
	ErrStrideMismatch  = errors.New("ROI byte sizes and tracking block do not add up to the frame stride")
	ErrBadFooterOffset = errors.New("xml footer offset points outside the data region")
	ErrTruncated       = errors.New("file shorter than the declared layout")
)
