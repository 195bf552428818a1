// Package images selects, downloads and captions the images a site links to.
//
// Image links are same-origin links ending in .jpg, .jpeg or .png. They are
// downloaded once into a local directory keyed by file name, then described
// by a vision model. EXIF text tags found in a file are passed to the model
// as hints.
package images
