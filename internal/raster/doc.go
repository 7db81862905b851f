// Package raster converts document bytes into grayscale page images.
//
// PDF documents are rendered page by page through MuPDF (go-fitz) at a fixed
// resolution. Single images are decoded through OpenCV and keep their native
// resolution, reported from EXIF metadata when the file carries it. Nothing is
// written to disk.
package raster
