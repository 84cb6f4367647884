// Package record defines the input records accepted by jsonlbuf buffers and
// the normalizer that rewrites them into output documents.
//
// Every output document carries two reserved columns, a random record id
// and the emission timestamp, followed by the record data. Without
// flattening the data sits under a third reserved column as a nested object;
// with root level flattening the data fields are merged into the document
// itself. In both modes object and array values are replaced by their
// compact JSON text, stored as a JSON string.
package record
