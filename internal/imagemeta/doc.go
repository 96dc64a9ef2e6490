// Package imagemeta reads capture metadata from downloaded photos.
//
// Only a handful of EXIF tags matter for a photo library: the camera make
// and model and the original capture time. Everything else, including GPS
// coordinates, is ignored. Parsing is done with github.com/dsoprea/go-exif.
package imagemeta
