// Package transform maps source rows onto canonical products and links
// inventory units to products.
//
// Both operations are pure: they read only their arguments and always return
// the same result for the same input.
package transform
