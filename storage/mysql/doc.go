// Package mysql reads product and inventory rows from the MySQL source store.
//
// The source is never written. Product rows are returned as column maps keyed by
// the source column names (productId, title, styleId, catalogId, name, sku, ...);
// the transform package decides which columns matter.
package mysql
